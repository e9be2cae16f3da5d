package recording

import "math"

// PreprocessedData mirrors GestureData with axes converted to floating point
// and the magnitude of every reading precomputed.
type PreprocessedData struct {
	StartTime        int64                       `json:"startTime"`
	EndTime          int64                       `json:"endTime"`
	DeviceID         string                      `json:"deviceId"`
	Label            string                      `json:"label"`
	Note             string                      `json:"note"`
	MarkedTimeStamps []int64                     `json:"markedTimeStamps"`
	Datas            []PreprocessedExtremityData `json:"datas"`
}

type PreprocessedExtremityData struct {
	DeviceMac   string                 `json:"deviceMac"`
	DeviceName  string                 `json:"deviceName"`
	DeviceDrift string                 `json:"deviceDrift"`
	AccData     PreprocessedSensorData `json:"accData"`
	GyroData    PreprocessedSensorData `json:"gyroData"`
}

type PreprocessedSensorData struct {
	XAxisData   []float64 `json:"xAxisData"`
	YAxisData   []float64 `json:"yAxisData"`
	ZAxisData   []float64 `json:"zAxisData"`
	TotalVector []float64 `json:"totalVector"`
	TimeStamp   []int64   `json:"timeStamp"`
}

// Preprocess converts a raw recording. The input is not modified.
func Preprocess(g *GestureData) *PreprocessedData {
	p := &PreprocessedData{
		StartTime:        g.StartTime,
		EndTime:          g.EndTime,
		DeviceID:         g.DeviceID,
		Label:            g.Label,
		Note:             g.Note,
		MarkedTimeStamps: append([]int64{}, g.MarkedTimeStamps...),
		Datas:            make([]PreprocessedExtremityData, 0, len(g.Datas)),
	}

	for _, e := range g.Datas {
		snap := e.Snapshot()
		p.Datas = append(p.Datas, PreprocessedExtremityData{
			DeviceMac:   snap.DeviceMac,
			DeviceName:  snap.DeviceName,
			DeviceDrift: snap.DeviceDrift,
			AccData:     preprocessSensor(snap.AccData),
			GyroData:    preprocessSensor(snap.GyroData),
		})
	}
	return p
}

func preprocessSensor(d SensorData) PreprocessedSensorData {
	n := d.Len()
	out := PreprocessedSensorData{
		XAxisData:   make([]float64, n),
		YAxisData:   make([]float64, n),
		ZAxisData:   make([]float64, n),
		TotalVector: make([]float64, n),
		TimeStamp:   append(make([]int64, 0, n), d.TimeStamp...),
	}
	for i := 0; i < n; i++ {
		x, y, z := float64(d.XAxisData[i]), float64(d.YAxisData[i]), float64(d.ZAxisData[i])
		out.XAxisData[i], out.YAxisData[i], out.ZAxisData[i] = x, y, z
		out.TotalVector[i] = math.Sqrt(x*x + y*y + z*z)
	}
	return out
}
