// Package sched provides the schedulers that drive pipeline steps and poll
// ticks. Production code runs on the wall clock; tests use Virtual to step
// time explicitly.
package sched

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler runs actions after a delay.
type Scheduler interface {
	// Now returns the scheduler's notion of the current time.
	Now() time.Time

	// Schedule runs action once delay has elapsed. A zero delay still runs the
	// action asynchronously, never inside Schedule. The returned function
	// cancels the action if it has not started yet.
	Schedule(delay time.Duration, action func()) (cancel func())
}

// Default is the background scheduler used when none is configured.
var Default Scheduler = NewClock(clock.New())

// Clock schedules actions with timers from a clock.Clock.
type Clock struct {
	clock clock.Clock
}

// NewClock returns a scheduler backed by c.
func NewClock(c clock.Clock) *Clock {
	return &Clock{clock: c}
}

func (s *Clock) Now() time.Time { return s.clock.Now() }

func (s *Clock) Schedule(delay time.Duration, action func()) func() {
	if delay < 0 {
		delay = 0
	}
	t := s.clock.AfterFunc(delay, action)
	return func() { t.Stop() }
}
