package configsync

import (
	"math/rand"
	"time"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	backoffJitter     = 0.25
)

// backoff is a truncated exponential backoff with ±25% jitter. rand returns
// values in [0, 1).
type backoff struct {
	current time.Duration
	rand    func() float64
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial, rand: rand.Float64} //nolint:gosec // not crypto
}

// next returns the wait before the coming attempt and grows the base delay.
func (b *backoff) next() time.Duration {
	spread := backoffJitter * (b.rand()*2 - 1)
	d := b.current + time.Duration(float64(b.current)*spread)
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
