//go:build linux

package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// DRDYPacer paces ticks off the IMU's data-ready line via the Linux GPIO
// character device. Edge events arrive on an internal channel; Wait falls
// back to a timeout so a stuck or unwired line degrades to late ticks
// instead of hanging the loop.
type DRDYPacer struct {
	line    *gpiocdev.Line
	events  chan struct{}
	timeout time.Duration
}

// NewDRDY requests offset on chip (e.g. "gpiochip0") with rising-edge
// detection. period sizes the stuck-line fallback timeout.
func NewDRDY(chip string, offset int, period time.Duration) (Pacer, error) {
	if period <= 0 {
		period = 10 * time.Millisecond
	}
	p := &DRDYPacer{
		events:  make(chan struct{}, 1),
		timeout: 4 * period,
	}
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithConsumer("ahrsd-drdy"),
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
			select {
			case p.events <- struct{}{}:
			default:
			}
		}))
	if err != nil {
		return nil, fmt.Errorf("clock: drdy line %s:%d: %w", chip, offset, err)
	}
	p.line = line
	return p, nil
}

func (p *DRDYPacer) Wait(ctx context.Context) error {
	t := time.NewTimer(p.timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.events:
		return nil
	case <-t.C:
		// Stuck line; run the tick late rather than never.
		return nil
	}
}

// SetPeriod only resizes the fallback timeout; pacing stays hardware-driven.
func (p *DRDYPacer) SetPeriod(d time.Duration) {
	if d > 0 {
		p.timeout = 4 * d
	}
}

func (p *DRDYPacer) Close() error {
	if p.line == nil {
		return nil
	}
	err := p.line.Close()
	p.line = nil
	return err
}
