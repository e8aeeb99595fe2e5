package service

import (
	"context"
	"sync"
	"time"

	"spatial-canvas-core/internal/pkg/logger"
)

// committer debounces document writes. Every mutation calls Schedule, which
// restarts the window; when the window elapses with no further edits the
// write function runs once. Flush forces the write immediately and is the
// navigation/teardown boundary.
//
// The write function snapshots live state on its own, so a flush always
// persists the document as it is at write time, not as it was when the
// window was armed.
type committer struct {
	mu     sync.Mutex
	delay  time.Duration
	timer  *time.Timer
	dirty  bool
	closed bool
	write  func(ctx context.Context) error
	logger logger.ILogger
}

func newCommitter(delay time.Duration, write func(ctx context.Context) error, log logger.ILogger) *committer {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &committer{
		delay:  delay,
		write:  write,
		logger: log,
	}
}

// Schedule marks the document dirty and restarts the debounce window.
func (c *committer) Schedule() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.dirty = true
	c.rearmLocked()
}

func (c *committer) rearmLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, func() {
		if err := c.Flush(context.Background()); err != nil {
			c.logger.Error("PERSIST", "Scheduled commit failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	})
}

// Dirty reports whether unsaved changes exist.
func (c *committer) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Flush writes now if anything is dirty. A clean flush is a no-op; a failed
// write re-marks dirty and re-arms the window so the change is not lost.
//
// The write callback takes the store lock itself, so it must run outside the
// committer lock: a mutation holding the store lock may be calling Schedule
// at the same moment.
func (c *committer) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	c.dirty = false
	c.mu.Unlock()

	if err := c.write(ctx); err != nil {
		c.mu.Lock()
		c.dirty = true
		if !c.closed {
			c.rearmLocked()
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// Close flushes a final time and stops the timer for good.
func (c *committer) Close(ctx context.Context) error {
	err := c.Flush(ctx)
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	return err
}
