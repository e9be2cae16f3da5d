package devicemodel

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/imurec/internal/imu"
	"github.com/srg/imurec/internal/recording"
	"github.com/srg/imurec/internal/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.UnixMilli(ms)
}

type DeviceViewModelTestSuite struct {
	suite.Suite

	clock  *fakeClock
	vm     *DeviceViewModel
	mu     sync.Mutex
	stats  []RateStats
	logger *logrus.Logger
}

func (suite *DeviceViewModelTestSuite) SetupTest() {
	suite.clock = &fakeClock{}
	suite.stats = nil
	suite.logger = logrus.New()
	suite.logger.SetLevel(logrus.DebugLevel)

	suite.vm = New(
		DeviceInfo{Mac: "AA:BB:CC:DD:EE:FF", Name: "left wrist", Drift: "3"},
		suite.logger,
		WithClock(suite.clock.Now),
		WithStatsObserver(func(s RateStats) {
			suite.mu.Lock()
			suite.stats = append(suite.stats, s)
			suite.mu.Unlock()
		}),
	)
}

func (suite *DeviceViewModelTestSuite) TearDownTest() {
	suite.vm.Close()
}

// feedAt delivers a sample that arrived at wall-clock ms.
func (suite *DeviceViewModelTestSuite) feedAt(ms int64, sample imu.Sample) {
	suite.clock.Set(ms)
	suite.vm.ReadImuData(sample)
}

func (suite *DeviceViewModelTestSuite) publishedStats() []RateStats {
	suite.vm.Close()
	suite.mu.Lock()
	defer suite.mu.Unlock()
	return append([]RateStats{}, suite.stats...)
}

func accel(x int16) *imu.Triple { return &imu.Triple{X: x, Y: x + 1, Z: x + 2} }

func (suite *DeviceViewModelTestSuite) TestAbsoluteTimestampsUseFirstSampleOffset() {
	data := recording.NewExtremityData()
	suite.vm.Attach(data)

	suite.feedAt(1_700_000_000_500, imu.Sample{TimeMs: 100, Accel: accel(1)})
	suite.feedAt(1_700_000_000_900, imu.Sample{TimeMs: 110, Accel: accel(2), Gyro: accel(3)})
	suite.feedAt(1_700_000_005_000, imu.Sample{TimeMs: 130, Gyro: accel(4)})

	offset, ok := suite.vm.FirstEverRecordedTimestampMs()
	suite.Require().True(ok)
	suite.Equal(int64(1_700_000_000_400), offset)

	snap := suite.vm.Detach().Snapshot()
	suite.Equal([]int64{offset + 100, offset + 110}, snap.AccData.TimeStamp)
	suite.Equal([]int64{offset + 110, offset + 130}, snap.GyroData.TimeStamp)
	suite.Equal([]int16{1, 2}, snap.AccData.XAxisData)
	suite.Equal([]int16{4, 5}, snap.GyroData.YAxisData)
	suite.Equal("AA:BB:CC:DD:EE:FF", snap.DeviceMac)
	suite.Equal("left wrist", snap.DeviceName)
	suite.Equal("3", snap.DeviceDrift)
}

func (suite *DeviceViewModelTestSuite) TestDetachedSamplesAreNotRecorded() {
	data := recording.NewExtremityData()
	suite.vm.Attach(data)
	suite.feedAt(1_000_000, imu.Sample{TimeMs: 0, Accel: accel(1)})
	suite.vm.Detach()
	suite.feedAt(1_000_010, imu.Sample{TimeMs: 10, Accel: accel(2)})

	acc, _ := data.Counts()
	suite.Equal(1, acc)
}

func (suite *DeviceViewModelTestSuite) TestMissingSensorIsNoUpdate() {
	suite.feedAt(1_000_000, imu.Sample{TimeMs: 0, Accel: accel(1)})
	suite.feedAt(1_000_010, imu.Sample{TimeMs: 10})

	gyro, posted := suite.vm.Gyro.Get()
	suite.False(posted)
	suite.Nil(gyro)

	acc, _ := suite.vm.Accel.Get()
	suite.Equal([]imu.Triple{*accel(1)}, window.Values(acc))
	suite.Equal(int64(2), suite.vm.PacketsThisSecond(), "empty samples still count as packets")
}

func (suite *DeviceViewModelTestSuite) TestSampleWindowKeepsLatestTwo() {
	for i := int64(0); i < 5; i++ {
		suite.feedAt(1_000_000+i, imu.Sample{TimeMs: i, Accel: accel(int16(i))})
	}

	acc, _ := suite.vm.Accel.Get()
	suite.Equal([]int64{3, 4}, []int64{acc[0].Key, acc[1].Key})
}

func (suite *DeviceViewModelTestSuite) TestRolloverCountsPacketsPerSecond() {
	suite.feedAt(10_000, imu.Sample{TimeMs: 0, Accel: accel(0)})
	suite.feedAt(10_400, imu.Sample{TimeMs: 400, Accel: accel(0)})
	suite.feedAt(10_999, imu.Sample{TimeMs: 999, Accel: accel(0)})
	suite.Equal(int64(3), suite.vm.PacketsThisSecond())

	suite.feedAt(11_000, imu.Sample{TimeMs: 1000, Accel: accel(0)})
	suite.Equal(int64(1), suite.vm.PacketsThisSecond(), "counter MUST restart after rollover")

	suite.feedAt(12_500, imu.Sample{TimeMs: 2500, Accel: accel(0)})

	rates, _ := suite.vm.DataRate.Get()
	suite.Equal([]window.Entry[int64, int64]{{Key: 10, Value: 3}, {Key: 11, Value: 1}}, rates)
	suite.Equal(int64(1), suite.vm.LowestDataRate())

	stats := suite.publishedStats()
	suite.Require().Len(stats, 2)
	suite.Equal(RateStats{Valid: true, Mean: 3, Min: 3, Max: 3, Seconds: 1}, stats[0])
	suite.Equal(RateStats{Valid: true, Mean: 2, Min: 1, Max: 3, Seconds: 2}, stats[1])
}

func (suite *DeviceViewModelTestSuite) TestRateWindowIsBounded() {
	for sec := int64(1); sec <= 6; sec++ {
		suite.feedAt(sec*1000, imu.Sample{TimeMs: sec * 1000, Accel: accel(0)})
	}

	rates, _ := suite.vm.DataRate.Get()
	suite.Len(rates, DefaultRateWindowSize)
	suite.Equal(int64(3), rates[0].Key, "oldest seconds MUST be evicted first")
}

func (suite *DeviceViewModelTestSuite) TestDisconnectClearsExactlyOneRollover() {
	suite.feedAt(1_000, imu.Sample{TimeMs: 0, Accel: accel(0)})
	suite.feedAt(1_500, imu.Sample{TimeMs: 500, Accel: accel(0)})
	suite.feedAt(2_000, imu.Sample{TimeMs: 1000, Accel: accel(0)}) // rollover: (1, 2)

	suite.vm.AfterDisconnect()
	suite.True(suite.vm.clearScheduled.Armed())

	suite.feedAt(3_000, imu.Sample{TimeMs: 2000, Accel: accel(0)}) // rollover: (2, 1) cleared
	suite.False(suite.vm.clearScheduled.Armed(), "flag MUST disarm after one rollover")

	suite.feedAt(4_000, imu.Sample{TimeMs: 3000, Accel: accel(0)}) // rollover: (3, 1)

	disconnected, _ := suite.vm.Disconnected.Get()
	suite.True(disconnected)

	stats := suite.publishedStats()
	suite.Require().Len(stats, 3)
	suite.True(stats[0].Valid)
	suite.Equal(RateStats{}, stats[1], "first rollover after disconnect MUST publish a cleared value")
	suite.True(stats[2].Valid, "later rollovers MUST average normally")
	suite.InDelta(4.0/3.0, stats[2].Mean, 1e-9)

	avg, _ := suite.vm.DataRateAvg.Get()
	suite.Equal(stats[2], avg)
}

func (suite *DeviceViewModelTestSuite) TestDisconnectClearSurvivesSlowObserver() {
	gate := make(chan struct{})
	blocked := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var stats []RateStats

	vm := New(DeviceInfo{Mac: "11:22:33:44:55:66"}, suite.logger,
		WithClock(suite.clock.Now),
		WithStatsQueueSize(2),
		WithStatsObserver(func(s RateStats) {
			once.Do(func() { close(blocked) })
			<-gate
			mu.Lock()
			stats = append(stats, s)
			mu.Unlock()
		}),
	)
	defer vm.Close()

	feed := func(ms int64) {
		suite.clock.Set(ms)
		vm.ReadImuData(imu.Sample{TimeMs: ms, Accel: accel(0)})
	}

	feed(1_000)
	feed(2_000) // rollover: worker blocks publishing it
	<-blocked

	vm.AfterDisconnect()
	for sec := int64(3); sec <= 11; sec++ {
		feed(sec * 1_000)
	}
	close(gate)
	vm.Close()

	mu.Lock()
	defer mu.Unlock()

	cleared := 0
	for _, s := range stats {
		if !s.Valid {
			cleared++
		}
	}
	suite.Equal(1, cleared, "the cleared value MUST be published even when averages overflow")
	suite.Require().GreaterOrEqual(len(stats), 3)
	suite.True(stats[0].Valid)
	suite.Equal(RateStats{}, stats[1], "cleared value MUST follow the averages submitted before it")
	suite.True(stats[len(stats)-1].Valid)
}

func (suite *DeviceViewModelTestSuite) TestConnectionAndConfigCallbacks() {
	suite.vm.ReadMtu(247)
	suite.vm.ReadConnectionSpeed(80, 0, 500)
	suite.vm.ReadImuConfig(imu.Config{AccelRange: 16, GyroRange: 2000, SampleRateHz: 100})

	mtu, _ := suite.vm.Mtu.Get()
	interval, _ := suite.vm.Interval.Get()
	cfg, _ := suite.vm.ImuConfig.Get()

	suite.Equal(247, mtu)
	suite.Equal(PriorityLowPower, interval)
	suite.Equal(100, cfg.SampleRateHz)
}

func TestDeviceViewModelTestSuite(t *testing.T) {
	suite.Run(t, new(DeviceViewModelTestSuite))
}

func TestConnectionPriorityFor(t *testing.T) {
	tests := []struct {
		interval int
		want     ConnectionPriority
	}{
		{interval: 6, want: PriorityHigh},
		{interval: 22, want: PriorityHigh},
		{interval: 23, want: PriorityBalanced},
		{interval: 75, want: PriorityBalanced},
		{interval: 76, want: PriorityLowPower},
		{interval: 3200, want: PriorityLowPower},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ConnectionPriorityFor(tt.interval))
		})
	}
}

func TestClearFlag(t *testing.T) {
	var f ClearFlag

	assert.False(t, f.Disarm(), "unarmed flag MUST NOT report a pending clear")

	f.Arm()
	f.Arm()
	assert.True(t, f.Armed())
	assert.True(t, f.Disarm())
	assert.False(t, f.Disarm(), "flag MUST be one-shot")
}

func TestComputeRateStats(t *testing.T) {
	assert.Equal(t, RateStats{}, ComputeRateStats(nil))
	assert.Equal(t, "n/a", ComputeRateStats(nil).String())

	got := ComputeRateStats([]window.Entry[int64, int64]{{Key: 1, Value: 90}, {Key: 2, Value: 110}, {Key: 3, Value: 100}})
	assert.Equal(t, RateStats{Valid: true, Mean: 100, Min: 90, Max: 110, Seconds: 3}, got)
}

func TestStatsExecutor_PublishesInOrder(t *testing.T) {
	var got []float64
	done := make(chan struct{})
	exec := NewStatsExecutor("test", 0, func(s RateStats) {
		got = append(got, s.Mean)
		if len(got) == 3 {
			close(done)
		}
	}, nil)

	exec.Submit([]window.Entry[int64, int64]{{Key: 1, Value: 1}})
	exec.Submit([]window.Entry[int64, int64]{{Key: 1, Value: 2}})
	exec.Submit([]window.Entry[int64, int64]{{Key: 1, Value: 3}})
	<-done
	exec.Close()

	assert.Equal(t, []float64{1, 2, 3}, got)
}

func TestStatsExecutor_ClearIsNeverOverwritten(t *testing.T) {
	gate := make(chan struct{})
	blocked := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var got []RateStats

	exec := NewStatsExecutor("test", 2, func(s RateStats) {
		once.Do(func() { close(blocked) })
		<-gate
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}, nil)

	rate := func(v int64) []window.Entry[int64, int64] {
		return []window.Entry[int64, int64]{{Key: v, Value: v}}
	}

	exec.Submit(rate(1))
	<-blocked
	exec.Submit(rate(2))
	exec.Submit(rate(3))
	exec.Submit(nil)
	for v := int64(100); v < 108; v++ {
		exec.Submit(rate(v))
	}
	close(gate)
	exec.Close()

	mu.Lock()
	defer mu.Unlock()

	clearedAt := -1
	for i, s := range got {
		if !s.Valid {
			require.Equal(t, -1, clearedAt, "exactly one cleared value expected")
			clearedAt = i
		}
	}
	require.NotEqual(t, -1, clearedAt, "cleared value MUST NOT be dropped on overflow")

	for i, s := range got {
		switch {
		case i < clearedAt:
			assert.Less(t, s.Max, int64(100), "averages before the clear MUST come from earlier submissions")
		case i > clearedAt:
			assert.GreaterOrEqual(t, s.Min, int64(100), "averages after the clear MUST come from later submissions")
		}
	}
	assert.Equal(t, float64(1), got[0].Mean)
	assert.Equal(t, float64(107), got[len(got)-1].Mean, "newest average MUST survive overflow")
}
