// Package imu defines inertial samples as they arrive from wearable sensors and
// the binary frame format used to carry them over a notification stream.
package imu

import "fmt"

// Triple is one x/y/z reading in raw sensor units.
type Triple struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
	Z int16 `json:"z"`
}

func (t Triple) String() string {
	return fmt.Sprintf("(%d, %d, %d)", t.X, t.Y, t.Z)
}

// Sample is a single IMU notification. TimeMs is relative to the device clock;
// Accel or Gyro is nil when the device did not report that sensor.
type Sample struct {
	TimeMs int64   `json:"timeMs"`
	Accel  *Triple `json:"accel,omitempty"`
	Gyro   *Triple `json:"gyro,omitempty"`
}

// Config is the sensor configuration reported by a device after connecting.
type Config struct {
	AccelRange   int `json:"accelRange"`
	GyroRange    int `json:"gyroRange"`
	SampleRateHz int `json:"sampleRateHz"`
}
