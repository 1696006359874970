package middleware

import (
	"context"
	"sync"
	"time"
)

// FixedPacer spaces calls to an upstream that throttles aggressive clients.
// Wait blocks until interval has elapsed since the previous Wait returned.
// The first call does not block.
type FixedPacer struct {
	interval time.Duration
	mu       sync.Mutex
	last     time.Time
	now      func() time.Time
	waits    int
}

func NewFixedPacer(interval time.Duration) *FixedPacer {
	return &FixedPacer{interval: interval, now: time.Now}
}

// Wait blocks for the remainder of the interval or until ctx is done.
func (p *FixedPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interval <= 0 {
		p.last = p.now()
		return ctx.Err()
	}
	if !p.last.IsZero() {
		if d := p.interval - p.now().Sub(p.last); d > 0 {
			p.waits++
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		}
	}
	p.last = p.now()
	return nil
}

// Waits returns how many calls actually blocked.
func (p *FixedPacer) Waits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waits
}
