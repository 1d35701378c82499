package realtime

import (
	"math"
	"math/rand/v2"
	"time"
)

// backoff computes reconnect delays: exponential growth from base, up to half
// of base added as jitter, capped at max.
type backoff struct {
	base        time.Duration
	max         time.Duration
	maxAttempts int
	attempt     int
}

func newBackoff(cfg Config) *backoff {
	return &backoff{
		base:        cfg.ReconnectBaseDelay,
		max:         cfg.ReconnectMaxDelay,
		maxAttempts: cfg.MaxReconnectAttempts,
	}
}

func (b *backoff) exhausted() bool {
	return b.attempt >= b.maxAttempts
}

func (b *backoff) next() time.Duration {
	jitter := rand.Float64() * float64(b.base) * 0.5
	delay := math.Min(float64(b.base)*math.Pow(2, float64(b.attempt))+jitter, float64(b.max))
	b.attempt++
	return time.Duration(delay)
}

func (b *backoff) reset() {
	b.attempt = 0
}
