package clock

import (
	"sync"
	"time"

	bclock "github.com/benbjohnson/clock"
)

// Fake is a manually advanced Clock backed by a benbjohnson/clock Mock.
// Timer callbacks run on the goroutine calling Advance, in deadline order,
// and observe Now() equal to their own deadline.
type Fake struct {
	mock *bclock.Mock

	mu   sync.Mutex
	live map[*fakeTimer]struct{}
}

type fakeTimer struct {
	fake  *Fake
	timer *bclock.Timer
}

func NewFake(start time.Time) *Fake {
	m := bclock.NewMock()
	m.Set(start)
	return &Fake{mock: m, live: make(map[*fakeTimer]struct{})}
}

func (c *Fake) Now() time.Time { return c.mock.Now() }

func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{fake: c}
	c.mu.Lock()
	c.live[t] = struct{}{}
	c.mu.Unlock()
	t.timer = c.mock.AfterFunc(d, func() {
		c.forget(t)
		f()
	})
	return t
}

// Advance moves the clock forward by d, firing every timer that falls due,
// including timers scheduled by callbacks within the window.
func (c *Fake) Advance(d time.Duration) { c.mock.Add(d) }

// Pending reports how many timers are scheduled and neither stopped nor fired.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

func (c *Fake) forget(t *fakeTimer) {
	c.mu.Lock()
	delete(c.live, t)
	c.mu.Unlock()
}

func (t *fakeTimer) Stop() bool {
	t.fake.forget(t)
	return t.timer.Stop()
}
