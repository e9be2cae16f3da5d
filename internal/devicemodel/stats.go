package devicemodel

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	"github.com/srg/imurec/internal/groutine"
	"github.com/srg/imurec/internal/window"
)

// RateStats summarizes the packets-per-second window. A zero RateStats
// (Valid == false) means the window was cleared.
type RateStats struct {
	Valid   bool    `json:"valid"`
	Mean    float64 `json:"mean"`
	Min     int64   `json:"min"`
	Max     int64   `json:"max"`
	Seconds int     `json:"seconds"`
}

func (s RateStats) String() string {
	if !s.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.1f pkt/s (min %d, max %d over %ds)", s.Mean, s.Min, s.Max, s.Seconds)
}

// ComputeRateStats averages a (second, count) window. A nil window yields the
// cleared value.
func ComputeRateStats(entries []window.Entry[int64, int64]) RateStats {
	if len(entries) == 0 {
		return RateStats{}
	}

	stats := RateStats{Valid: true, Min: entries[0].Value, Max: entries[0].Value, Seconds: len(entries)}
	var sum int64
	for _, e := range entries {
		sum += e.Value
		if e.Value < stats.Min {
			stats.Min = e.Value
		}
		if e.Value > stats.Max {
			stats.Max = e.Value
		}
	}
	stats.Mean = float64(sum) / float64(len(entries))
	return stats
}

type rateJob struct {
	seq     uint64
	entries []window.Entry[int64, int64]
}

// DefaultStatsQueueSize bounds the number of pending average computations.
const DefaultStatsQueueSize = 16

// StatsExecutor computes rate averages on a single worker goroutine so the
// ingestion path never waits for them. When the queue is full the oldest
// pending average is overwritten. Clear requests bypass the ring and are
// never dropped; they are published in submission order relative to the
// averages that survive.
type StatsExecutor struct {
	queue   mpmc.RichOverlappedRingBuffer[rateJob]
	wake    chan struct{}
	publish func(RateStats)
	logger  *logrus.Logger

	// mu orders seq assignment with enqueueing and guards clears.
	mu     sync.Mutex
	seq    uint64
	clears []uint64

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewStatsExecutor starts the worker. publish receives every result in
// submission order.
func NewStatsExecutor(name string, queueSize uint32, publish func(RateStats), logger *logrus.Logger) *StatsExecutor {
	if queueSize == 0 {
		queueSize = DefaultStatsQueueSize
	}
	if logger == nil {
		logger = logrus.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &StatsExecutor{
		queue:   mpmc.NewOverlappedRingBuffer[rateJob](queueSize),
		wake:    make(chan struct{}, 1),
		publish: publish,
		logger:  logger,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	groutine.Go(ctx, "rate-stats:"+name, e.run)
	return e
}

// Submit queues an average over entries; nil entries publish a cleared value.
func (e *StatsExecutor) Submit(entries []window.Entry[int64, int64]) {
	e.mu.Lock()
	e.seq++
	if entries == nil {
		e.clears = append(e.clears, e.seq)
	} else if overwrites, err := e.queue.EnqueueM(rateJob{seq: e.seq, entries: entries}); err != nil {
		e.logger.WithError(err).Warn("Failed to queue rate computation")
	} else if overwrites > 0 {
		e.logger.WithField("overwritten", overwrites).Debug("Rate computation queue overflow")
	}
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Close processes the jobs already queued, then stops the worker.
func (e *StatsExecutor) Close() {
	e.closeOnce.Do(e.cancel)
	<-e.done
}

func (e *StatsExecutor) run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			e.drain()
			e.logger.WithField("goroutine", groutine.GetName(ctx)).Debug("Rate stats worker stopped")
			return
		case <-e.wake:
			e.drain()
		}
	}
}

func (e *StatsExecutor) drain() {
	for {
		e.mu.Lock()
		if e.queue.IsEmpty() {
			// Nothing older can arrive in the ring while mu is held.
			pending := len(e.clears)
			e.clears = e.clears[:0]
			e.mu.Unlock()
			e.publishCleared(pending)
			return
		}
		e.mu.Unlock()

		job, err := e.queue.Dequeue()
		if err != nil {
			e.logger.WithError(err).Debug("Rate computation queue dequeue failed")
			e.publishCleared(e.takeClearsBefore(math.MaxUint64))
			return
		}
		e.publishCleared(e.takeClearsBefore(job.seq))
		e.publish(ComputeRateStats(job.entries))
	}
}

// takeClearsBefore removes and counts the clear requests submitted before seq.
func (e *StatsExecutor) takeClearsBefore(seq uint64) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for n < len(e.clears) && e.clears[n] < seq {
		n++
	}
	e.clears = e.clears[n:]
	return n
}

func (e *StatsExecutor) publishCleared(n int) {
	for i := 0; i < n; i++ {
		e.publish(RateStats{})
	}
}
