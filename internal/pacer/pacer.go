// Package pacer spaces out upstream calls to stay under API rate limits.
package pacer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the pause between two projects' fetch sequences.
const DefaultInterval = 500 * time.Millisecond

// Pacer blocks until the next upstream call may proceed.
type Pacer interface {
	Wait(ctx context.Context) error
}

type interval struct {
	limiter *rate.Limiter
}

// NewInterval returns a Pacer whose every Wait, the first included, lasts
// until d has passed since construction or the previous Wait. d <= 0 yields
// None.
func NewInterval(d time.Duration) Pacer {
	if d <= 0 {
		return None()
	}
	l := rate.NewLimiter(rate.Every(d), 1)
	// The bucket starts full; take its token so the first Wait pauses too.
	l.Allow()
	return &interval{limiter: l}
}

func (p *interval) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

type none struct{}

// None returns a Pacer that never waits.
func None() Pacer { return none{} }

func (none) Wait(ctx context.Context) error { return ctx.Err() }
