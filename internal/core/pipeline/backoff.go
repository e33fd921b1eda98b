package pipeline

import (
	"math/rand"
	"time"
)

// Backoff computes retry delays: exponential doubling from Base, capped at
// Max, with ±Jitter fractional noise so retries from concurrent failures
// don't land on the same instant.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64 // e.g. 0.2 for ±20%
}

// Delay returns the wait before the given retry. attempt is 1-based: the
// delay scheduled after the first failed attempt is Delay(1) = Base.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			d = b.Max
			break
		}
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	if b.Jitter > 0 {
		// Uniform in [1-j, 1+j].
		factor := 1 + b.Jitter*(2*rand.Float64()-1)
		d = time.Duration(float64(d) * factor)
	}
	return d
}
