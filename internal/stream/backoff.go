package stream

import "time"

// DefaultBackoffCap matches the camera firmware guidance of never waiting
// more than 30 seconds between reconnection attempts.
const DefaultBackoffCap = 30 * time.Second

// BackoffPolicy maps a consecutive-failure count to a wait duration.
// Deterministic and side-effect free.
type BackoffPolicy struct {
	// Cap is the maximum delay. Zero or negative means DefaultBackoffCap.
	Cap time.Duration
}

// Delay returns 0 for the first attempt (or right after a reset) and
// min(2^failures seconds, Cap) afterwards: 2s, 4s, 8s, 16s, 30s, 30s, ...
func (p BackoffPolicy) Delay(consecutiveFailures int) time.Duration {
	if consecutiveFailures <= 0 {
		return 0
	}

	limit := p.Cap
	if limit <= 0 {
		limit = DefaultBackoffCap
	}

	// 2^n seconds exceeds any sane cap long before the shift could
	// overflow; clamp the exponent instead of computing it.
	if consecutiveFailures > 30 {
		return limit
	}

	delay := time.Duration(1<<uint(consecutiveFailures)) * time.Second
	if delay > limit {
		return limit
	}
	return delay
}
