// Package recording holds the in-memory gesture records built while samples
// stream in, and the session that finalizes them for export.
package recording

import (
	"sync"

	"github.com/srg/imurec/internal/imu"
)

// DefaultLabel is used when a session is started without a label.
const DefaultLabel = "default_label"

// SensorData stores one sensor stream as parallel sequences. All four slices
// always have the same length.
type SensorData struct {
	XAxisData []int16 `json:"xAxisData"`
	YAxisData []int16 `json:"yAxisData"`
	ZAxisData []int16 `json:"zAxisData"`
	TimeStamp []int64 `json:"timeStamp"`
}

func newSensorData() SensorData {
	return SensorData{
		XAxisData: []int16{},
		YAxisData: []int16{},
		ZAxisData: []int16{},
		TimeStamp: []int64{},
	}
}

// Append adds one reading taken at the absolute time tsMs.
func (d *SensorData) Append(tsMs int64, t imu.Triple) {
	d.TimeStamp = append(d.TimeStamp, tsMs)
	d.XAxisData = append(d.XAxisData, t.X)
	d.YAxisData = append(d.YAxisData, t.Y)
	d.ZAxisData = append(d.ZAxisData, t.Z)
}

func (d *SensorData) Len() int {
	return len(d.TimeStamp)
}

func (d *SensorData) clone() SensorData {
	return SensorData{
		XAxisData: append([]int16{}, d.XAxisData...),
		YAxisData: append([]int16{}, d.YAxisData...),
		ZAxisData: append([]int16{}, d.ZAxisData...),
		TimeStamp: append([]int64{}, d.TimeStamp...),
	}
}

// ExtremityData accumulates everything one device reports during a recording.
// Appends may come from a hardware callback goroutine while the UI reads counts.
type ExtremityData struct {
	mu sync.Mutex

	DeviceMac   string     `json:"deviceMac"`
	DeviceName  string     `json:"deviceName"`
	DeviceDrift string     `json:"deviceDrift"`
	AccData     SensorData `json:"accData"`
	GyroData    SensorData `json:"gyroData"`
}

// NewExtremityData returns an empty buffer with placeholder device identity.
func NewExtremityData() *ExtremityData {
	return &ExtremityData{
		DeviceMac:   "none",
		DeviceName:  "none",
		DeviceDrift: "none",
		AccData:     newSensorData(),
		GyroData:    newSensorData(),
	}
}

// SetDevice stamps the device identity onto the buffer.
func (e *ExtremityData) SetDevice(mac, name, drift string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.DeviceMac, e.DeviceName, e.DeviceDrift = mac, name, drift
}

// AppendAccel records an accelerometer reading.
func (e *ExtremityData) AppendAccel(tsMs int64, t imu.Triple) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.AccData.Append(tsMs, t)
}

// AppendGyro records a gyroscope reading.
func (e *ExtremityData) AppendGyro(tsMs int64, t imu.Triple) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.GyroData.Append(tsMs, t)
}

// Counts returns the number of accel and gyro readings collected so far.
func (e *ExtremityData) Counts() (acc, gyro int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.AccData.Len(), e.GyroData.Len()
}

// Snapshot returns a deep copy safe to serialize while appends continue.
func (e *ExtremityData) Snapshot() *ExtremityData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &ExtremityData{
		DeviceMac:   e.DeviceMac,
		DeviceName:  e.DeviceName,
		DeviceDrift: e.DeviceDrift,
		AccData:     e.AccData.clone(),
		GyroData:    e.GyroData.clone(),
	}
}

// GestureData is one labeled recording across all tracked devices.
// StartTime and EndTime are wall-clock milliseconds since the Unix epoch.
type GestureData struct {
	StartTime        int64            `json:"startTime"`
	EndTime          int64            `json:"endTime"`
	DeviceID         string           `json:"deviceId"`
	Label            string           `json:"label"`
	Note             string           `json:"note"`
	MarkedTimeStamps []int64          `json:"markedTimeStamps"`
	Datas            []*ExtremityData `json:"datas"`
}
