// Package clock provides the scheduler's tick pacing. The loop itself keeps
// time with real timestamps; pacers only decide when the next tick starts.
package clock

import (
	"context"
	"sync"
	"time"
)

// Pacer blocks until the next tick boundary. Implementations must be safe
// to Close while a Wait is in flight.
type Pacer interface {
	// Wait blocks until the next tick, ctx cancellation, or Close.
	Wait(ctx context.Context) error
	// SetPeriod adjusts the tick period. Hardware-paced implementations
	// ignore it.
	SetPeriod(d time.Duration)
	Close() error
}

// TickerPacer paces off a time.Ticker. Ticks missed while the loop overran
// coalesce; the loop's timestamp-based dt absorbs the slip.
type TickerPacer struct {
	mu sync.Mutex
	t  *time.Ticker
}

func NewTicker(period time.Duration) *TickerPacer {
	if period <= 0 {
		period = 10 * time.Millisecond
	}
	return &TickerPacer{t: time.NewTicker(period)}
}

func (p *TickerPacer) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.t.C:
		return nil
	}
}

func (p *TickerPacer) SetPeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.t.Reset(d)
	p.mu.Unlock()
}

func (p *TickerPacer) Close() error {
	p.t.Stop()
	return nil
}
