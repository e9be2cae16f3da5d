package imu

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Simulator produces synthetic samples for a device at a fixed rate. It stands
// in for a wearable when no hardware is attached.
type Simulator struct {
	RateHz int
	// GyroEvery emits gyro data on every n-th sample only (1 = every sample).
	GyroEvery int

	rnd *rand.Rand
}

// NewSimulator returns a simulator emitting rateHz samples per second.
func NewSimulator(rateHz int, seed int64) *Simulator {
	if rateHz <= 0 {
		rateHz = 100
	}
	return &Simulator{
		RateHz:    rateHz,
		GyroEvery: 1,
		rnd:       rand.New(rand.NewSource(seed)),
	}
}

// Run emits samples into out until ctx is cancelled. Device time starts at 0.
func (s *Simulator) Run(ctx context.Context, out func(Sample)) {
	interval := time.Second / time.Duration(s.RateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	var n int
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			out(s.Next(now.Sub(start).Milliseconds(), n))
			n++
		}
	}
}

// Next builds the n-th sample at device time ms.
func (s *Simulator) Next(ms int64, n int) Sample {
	step := float64(n) / float64(s.RateHz)
	sample := Sample{
		TimeMs: ms,
		Accel: &Triple{
			X: int16(200*math.Sin(step) + s.jitter(20)),
			Y: int16(100*math.Cos(step) + s.jitter(20)),
			Z: int16(1000 + s.jitter(10)),
		},
	}
	if s.GyroEvery <= 1 || n%s.GyroEvery == 0 {
		sample.Gyro = &Triple{
			X: int16(50*math.Sin(2*step) + s.jitter(5)),
			Y: int16(50*math.Cos(2*step) + s.jitter(5)),
			Z: int16(s.jitter(3)),
		}
	}
	return sample
}

func (s *Simulator) jitter(amp float64) float64 {
	return (s.rnd.Float64()*2 - 1) * amp
}
