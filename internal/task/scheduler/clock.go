package scheduler

import "time"

// Clock is the loop's time source.
type Clock interface {
	Now() time.Time
	// TimerAt fires once the clock reaches at.
	TimerAt(at time.Time) Timer
}

type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) TimerAt(at time.Time) Timer {
	return sysTimer{time.NewTimer(max(time.Until(at), 0))}
}

type sysTimer struct{ t *time.Timer }

func (t sysTimer) C() <-chan time.Time { return t.t.C }
func (t sysTimer) Stop() bool          { return t.t.Stop() }
