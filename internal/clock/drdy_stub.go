//go:build !linux

package clock

import (
	"fmt"
	"time"
)

// NewDRDY is linux-only; other platforms fall back to ticker pacing.
func NewDRDY(chip string, offset int, period time.Duration) (Pacer, error) {
	return nil, fmt.Errorf("clock: gpio data-ready pacing requires linux")
}
