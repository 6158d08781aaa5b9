package governor

import "time"

// Clock abstracts wall-clock access and one-shot task scheduling so the
// recovery timer can be driven by a simulated clock in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellable one-shot task handle.
type Timer interface {
	// Stop cancels the pending task. It reports whether the task was still
	// pending when cancelled.
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// NewClock returns a Clock backed by the system clock.
func NewClock() Clock {
	return realClock{}
}
