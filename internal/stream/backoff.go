package stream

import "time"

// Backoff is the reconnect delay policy: exponential doubling from Base,
// capped at Cap.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultBackoff is the reconnect policy used in production: 1s, 2s, 4s, 8s,
// 16s, then 30s held.
var DefaultBackoff = Backoff{Base: time.Second, Cap: 30 * time.Second}

// Delay returns the wait before reconnect attempt n (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Cap {
			return b.Cap
		}
	}
	if d > b.Cap {
		return b.Cap
	}
	return d
}
