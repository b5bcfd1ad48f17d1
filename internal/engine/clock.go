package engine

import (
	"sync"
	"time"
)

// SessionClock tracks elapsed active time for a long-running session across
// any number of pause/resume cycles without losing or double-counting time.
// Rather than stopping and restarting a stopwatch, it keeps the session start
// instant plus an accumulated paused-duration total, so elapsed time is exact
// at every sampling instant. Safe for concurrent use: the periodic UI tick
// samples Elapsed while handlers call Pause/Resume.
type SessionClock struct {
	mu          sync.Mutex
	start       time.Time
	pausedTotal time.Duration
	pauseStart  time.Time // zero while running
	now         func() time.Time
}

// NewSessionClock starts a clock at the current instant.
func NewSessionClock() *SessionClock {
	return newSessionClock(time.Now)
}

func newSessionClock(now func() time.Time) *SessionClock {
	return &SessionClock{start: now(), now: now}
}

// Pause records the pause start. A second Pause while already paused is a
// no-op.
func (c *SessionClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pauseStart.IsZero() {
		c.pauseStart = c.now()
	}
}

// Resume folds the just-ended pause into the paused total. A Resume while
// running is a no-op.
func (c *SessionClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pauseStart.IsZero() {
		c.pausedTotal += c.now().Sub(c.pauseStart)
		c.pauseStart = time.Time{}
	}
}

// Paused reports whether the clock is currently paused.
func (c *SessionClock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.pauseStart.IsZero()
}

// Elapsed returns active session time: (now − start) − pausedTotal. While
// paused, the in-progress pause is subtracted as well, so elapsed freezes
// until Resume.
func (c *SessionClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	elapsed := now.Sub(c.start) - c.pausedTotal
	if !c.pauseStart.IsZero() {
		elapsed -= now.Sub(c.pauseStart)
	}
	return elapsed
}

// ElapsedSeconds returns whole elapsed active seconds.
func (c *SessionClock) ElapsedSeconds() int {
	return int(c.Elapsed() / time.Second)
}

// Reset discards all state and restarts the clock at the current instant.
func (c *SessionClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = c.now()
	c.pausedTotal = 0
	c.pauseStart = time.Time{}
}
