package devicemodel

import "sync/atomic"

// ClearFlag is a one-shot armed/disarmed switch. Arm schedules a single clear;
// the first Disarm after arming consumes it.
type ClearFlag struct {
	armed atomic.Bool
}

// Arm schedules a clear. Arming an already armed flag has no further effect.
func (f *ClearFlag) Arm() {
	f.armed.Store(true)
}

// Disarm consumes a scheduled clear and reports whether one was pending.
func (f *ClearFlag) Disarm() bool {
	return f.armed.CompareAndSwap(true, false)
}

func (f *ClearFlag) Armed() bool {
	return f.armed.Load()
}
