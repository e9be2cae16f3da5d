package recording

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrAlreadyStopped = errors.New("recording already stopped")
	ErrNoDevices      = errors.New("recording has no tracked devices")
)

// Tracker is a device that can route its samples into a recording buffer.
type Tracker interface {
	DeviceMac() string
	Attach(data *ExtremityData)
	Detach() *ExtremityData
}

// Session is one gesture recording in progress. The label is fixed at creation.
type Session struct {
	mu       sync.Mutex
	label    string
	note     string
	deviceID string
	start    time.Time
	marked   []int64
	trackers []Tracker
	stopped  bool

	now    func() time.Time
	logger *logrus.Logger
}

// NewSession starts a recording. A nil now uses time.Now.
func NewSession(label, note, deviceID string, now func() time.Time, logger *logrus.Logger) *Session {
	if label == "" {
		label = DefaultLabel
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logrus.New()
	}

	s := &Session{
		label:    label,
		note:     note,
		deviceID: deviceID,
		marked:   []int64{},
		now:      now,
		logger:   logger,
	}
	s.start = now()

	logger.WithFields(logrus.Fields{
		"label":      label,
		"start_time": s.start.UnixMilli(),
	}).Info("Recording started")
	return s
}

func (s *Session) Label() string {
	return s.label
}

// StartTime returns the recording start in Unix milliseconds.
func (s *Session) StartTime() int64 {
	return s.start.UnixMilli()
}

// SetNote replaces the free-text note.
func (s *Session) SetNote(note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.note = note
}

// Track attaches a fresh buffer to the device so its samples are recorded.
func (s *Session) Track(t Tracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrAlreadyStopped
	}
	t.Attach(NewExtremityData())
	s.trackers = append(s.trackers, t)

	s.logger.WithField("device", t.DeviceMac()).Debug("Device tracked")
	return nil
}

// Mark records the current time as a point of interest and returns it.
func (s *Session) Mark() (int64, error) {
	ts := s.now().UnixMilli()
	return ts, s.MarkAt(ts)
}

// MarkAt records ts (Unix milliseconds) as a point of interest.
func (s *Session) MarkAt(ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrAlreadyStopped
	}
	s.marked = append(s.marked, ts)
	return nil
}

// Stop detaches every device buffer and returns the finalized record.
// The session cannot be used afterwards.
func (s *Session) Stop() (*GestureData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, ErrAlreadyStopped
	}
	s.stopped = true

	end := s.now()
	if end.Before(s.start) {
		end = s.start
	}

	g := &GestureData{
		StartTime:        s.start.UnixMilli(),
		EndTime:          end.UnixMilli(),
		DeviceID:         s.deviceID,
		Label:            s.label,
		Note:             s.note,
		MarkedTimeStamps: append([]int64{}, s.marked...),
		Datas:            make([]*ExtremityData, 0, len(s.trackers)),
	}
	for _, t := range s.trackers {
		if data := t.Detach(); data != nil {
			g.Datas = append(g.Datas, data)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"label":    g.Label,
		"devices":  len(g.Datas),
		"duration": end.Sub(s.start).String(),
	}).Info("Recording stopped")

	if len(g.Datas) == 0 {
		return g, fmt.Errorf("%w: %q", ErrNoDevices, g.Label)
	}
	return g, nil
}
