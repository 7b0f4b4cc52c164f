package domain

import (
	"sync"
	"time"
)

// Clock fornece o instante atual. Injetável para testes determinísticos.
type Clock interface {
	Now() time.Time
}

// SystemClock usa o relógio do sistema.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock só avança quando mandado. Seguro para uso concorrente.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
