// Package devicemodel turns hardware callbacks from one connected wearable
// into observable state for a view layer and routes samples into the active
// recording.
package devicemodel

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/imurec/internal/imu"
	"github.com/srg/imurec/internal/observable"
	"github.com/srg/imurec/internal/recording"
	"github.com/srg/imurec/internal/window"
)

// ReadFromDevice is the callback surface a hardware layer drives. Every
// method may be called from the hardware layer's own goroutine.
type ReadFromDevice interface {
	ReadImuData(sample imu.Sample)
	ReadImuConfig(config imu.Config)
	ReadMtu(mtu int)
	ReadConnectionSpeed(interval, latency, timeout int)
	AfterDisconnect()
}

// DeviceInfo identifies the device behind a model.
type DeviceInfo struct {
	Mac   string
	Name  string
	Drift string
}

const (
	DefaultSampleWindowSize = 2
	DefaultRateWindowSize   = 3
)

// Options tunes a DeviceViewModel.
type Options struct {
	SampleWindowSize int
	RateWindowSize   int
	StatsQueueSize   uint32
	Now              func() time.Time
	StatsObserver    func(RateStats)
}

type Option func(*Options)

// WithClock replaces the wall clock used to timestamp packet arrival.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

func WithWindowSizes(samples, rates int) Option {
	return func(o *Options) {
		o.SampleWindowSize = samples
		o.RateWindowSize = rates
	}
}

func WithStatsQueueSize(size uint32) Option {
	return func(o *Options) { o.StatsQueueSize = size }
}

// WithStatsObserver receives every computed rate average, in order, on the
// stats worker goroutine.
func WithStatsObserver(fn func(RateStats)) Option {
	return func(o *Options) { o.StatsObserver = fn }
}

// DeviceViewModel is the per-connection state of one wearable.
type DeviceViewModel struct {
	info   DeviceInfo
	now    func() time.Time
	logger *logrus.Logger

	Accel        *observable.Value[[]window.Entry[int64, imu.Triple]]
	Gyro         *observable.Value[[]window.Entry[int64, imu.Triple]]
	DataRate     *observable.Value[[]window.Entry[int64, int64]]
	DataRateAvg  *observable.Value[RateStats]
	Mtu          *observable.Value[int]
	Interval     *observable.Value[ConnectionPriority]
	ImuConfig    *observable.Value[imu.Config]
	Disconnected *observable.Value[bool]

	accelWindow *window.Window[int64, imu.Triple]
	gyroWindow  *window.Window[int64, imu.Triple]
	rateWindow  *window.Window[int64, int64]

	// ingestion state, guarded by mu
	mu                   sync.Mutex
	hasOffset            bool
	firstEverRecordedMs  int64
	currentTrackedSecond int64
	packetsThisSecond    int64
	lowestDataRate       int64
	extremity            *recording.ExtremityData

	clearScheduled ClearFlag
	stats          *StatsExecutor
	statsObserver  func(RateStats)
	closeOnce      sync.Once
}

var _ ReadFromDevice = (*DeviceViewModel)(nil)

// New creates the model for one device connection. Close releases its goroutines.
func New(info DeviceInfo, logger *logrus.Logger, opts ...Option) *DeviceViewModel {
	o := Options{
		SampleWindowSize: DefaultSampleWindowSize,
		RateWindowSize:   DefaultRateWindowSize,
		StatsQueueSize:   DefaultStatsQueueSize,
		Now:              time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.SampleWindowSize <= 0 {
		o.SampleWindowSize = DefaultSampleWindowSize
	}
	if o.RateWindowSize <= 0 {
		o.RateWindowSize = DefaultRateWindowSize
	}
	if logger == nil {
		logger = logrus.New()
	}

	vm := &DeviceViewModel{
		info:   info,
		now:    o.Now,
		logger: logger,

		Accel:        observable.New[[]window.Entry[int64, imu.Triple]](info.Mac+":accel", nil),
		Gyro:         observable.New[[]window.Entry[int64, imu.Triple]](info.Mac+":gyro", nil),
		DataRate:     observable.New[[]window.Entry[int64, int64]](info.Mac+":rate", nil),
		DataRateAvg:  observable.New(info.Mac+":rate-avg", RateStats{}),
		Mtu:          observable.New(info.Mac+":mtu", 0),
		Interval:     observable.New(info.Mac+":interval", PriorityBalanced),
		ImuConfig:    observable.New(info.Mac+":imu-config", imu.Config{}),
		Disconnected: observable.New(info.Mac+":disconnected", false),

		accelWindow: window.New[int64, imu.Triple](o.SampleWindowSize),
		gyroWindow:  window.New[int64, imu.Triple](o.SampleWindowSize),
		rateWindow:  window.New[int64, int64](o.RateWindowSize),

		lowestDataRate: initialLowestDataRate,
		statsObserver:  o.StatsObserver,
	}
	vm.stats = NewStatsExecutor(info.Mac, o.StatsQueueSize, vm.publishStats, logger)
	return vm
}

const initialLowestDataRate = 1_000_000

func (vm *DeviceViewModel) Info() DeviceInfo {
	return vm.info
}

func (vm *DeviceViewModel) DeviceMac() string {
	return vm.info.Mac
}

// Attach routes subsequent samples into data, stamping this device's identity on it.
func (vm *DeviceViewModel) Attach(data *recording.ExtremityData) {
	if data != nil {
		data.SetDevice(vm.info.Mac, vm.info.Name, vm.info.Drift)
	}
	vm.mu.Lock()
	vm.extremity = data
	vm.mu.Unlock()
}

// Detach stops recording and hands the buffer back to the caller.
func (vm *DeviceViewModel) Detach() *recording.ExtremityData {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	data := vm.extremity
	vm.extremity = nil
	return data
}

// ReadImuData ingests one sample. The first sample of the connection fixes the
// offset that turns device-relative times into wall-clock milliseconds.
func (vm *DeviceViewModel) ReadImuData(sample imu.Sample) {
	arrival := vm.now().UnixMilli()

	vm.mu.Lock()
	defer vm.mu.Unlock()

	if !vm.hasOffset {
		vm.firstEverRecordedMs = arrival - sample.TimeMs
		vm.hasOffset = true
		vm.logger.WithFields(logrus.Fields{
			"device": vm.info.Mac,
			"offset": vm.firstEverRecordedMs,
		}).Debug("Timestamp offset established")
	}
	absolute := sample.TimeMs + vm.firstEverRecordedMs

	if sample.Accel != nil {
		if vm.extremity != nil {
			vm.extremity.AppendAccel(absolute, *sample.Accel)
		}
		vm.Accel.Post(vm.accelWindow.Add(sample.TimeMs, *sample.Accel))
	}
	if sample.Gyro != nil {
		if vm.extremity != nil {
			vm.extremity.AppendGyro(absolute, *sample.Gyro)
		}
		vm.Gyro.Post(vm.gyroWindow.Add(sample.TimeMs, *sample.Gyro))
	}

	thisSecond := arrival / 1000
	if thisSecond != vm.currentTrackedSecond {
		if vm.currentTrackedSecond != 0 {
			vm.rollover()
		}
		vm.currentTrackedSecond = thisSecond
		vm.packetsThisSecond = 0
	}
	vm.packetsThisSecond++
}

// rollover closes the tracked second. Caller holds mu.
func (vm *DeviceViewModel) rollover() {
	rates := vm.rateWindow.Add(vm.currentTrackedSecond, vm.packetsThisSecond)
	vm.DataRate.Post(rates)

	if vm.packetsThisSecond < vm.lowestDataRate {
		vm.lowestDataRate = vm.packetsThisSecond
	}

	if vm.clearScheduled.Disarm() {
		vm.logger.WithField("device", vm.info.Mac).Debug("Rate window cleared after disconnect")
		vm.stats.Submit(nil)
		return
	}
	vm.stats.Submit(rates)
}

// AfterDisconnect publishes the disconnect and schedules the next rollover to
// report a cleared rate instead of a stale average.
func (vm *DeviceViewModel) AfterDisconnect() {
	vm.clearScheduled.Arm()
	vm.Disconnected.Post(true)
	vm.logger.WithField("device", vm.info.Mac).Info("Device disconnected")
}

func (vm *DeviceViewModel) ReadImuConfig(config imu.Config) {
	vm.ImuConfig.Post(config)
}

func (vm *DeviceViewModel) ReadMtu(mtu int) {
	vm.Mtu.Post(mtu)
}

func (vm *DeviceViewModel) ReadConnectionSpeed(interval, latency, timeout int) {
	priority := ConnectionPriorityFor(interval)
	vm.logger.WithFields(logrus.Fields{
		"device":   vm.info.Mac,
		"interval": interval,
		"latency":  latency,
		"timeout":  timeout,
		"priority": priority.String(),
	}).Debug("Connection parameters updated")
	vm.Interval.Post(priority)
}

// FirstEverRecordedTimestampMs returns the connection's time offset, if set.
func (vm *DeviceViewModel) FirstEverRecordedTimestampMs() (int64, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.firstEverRecordedMs, vm.hasOffset
}

// LowestDataRate returns the smallest completed per-second packet count seen.
// It is informational only.
func (vm *DeviceViewModel) LowestDataRate() int64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.lowestDataRate
}

// PacketsThisSecond returns the running count for the current second.
func (vm *DeviceViewModel) PacketsThisSecond() int64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.packetsThisSecond
}

// Close waits for pending rate computations and stops all dispatchers.
func (vm *DeviceViewModel) Close() {
	vm.closeOnce.Do(func() {
		vm.stats.Close()
		vm.Accel.Close()
		vm.Gyro.Close()
		vm.DataRate.Close()
		vm.DataRateAvg.Close()
		vm.Mtu.Close()
		vm.Interval.Close()
		vm.ImuConfig.Close()
		vm.Disconnected.Close()
	})
}

func (vm *DeviceViewModel) publishStats(stats RateStats) {
	vm.DataRateAvg.Post(stats)
	if vm.statsObserver != nil {
		vm.statsObserver(stats)
	}
}
