// Package clock abstracts wall time and one-shot timers so that room
// deadlines can be driven deterministically in tests.
package clock

import (
	"time"

	bclock "github.com/benbjohnson/clock"
)

type Timer interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct {
	c bclock.Clock
}

func Real() Clock { return realClock{c: bclock.New()} }

func (r realClock) Now() time.Time { return r.c.Now().UTC() }

func (r realClock) AfterFunc(d time.Duration, f func()) Timer {
	return r.c.AfterFunc(d, f)
}
