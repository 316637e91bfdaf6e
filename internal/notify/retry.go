package notify

import (
	"math/rand"
	"time"
)

// deliveryDelays is the backoff between in-process delivery attempts.
var deliveryDelays = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	30 * time.Second,
}

// jitterFactor spreads retries by ±20%.
const jitterFactor = 0.2

// DefaultMaxAttempts is the number of delivery attempts before dead-lettering.
const DefaultMaxAttempts = 4

// NextRetryDelay returns the jittered delay after the given failed attempt
// (0 for the first failure).
func NextRetryDelay(failed int) time.Duration {
	if failed < 0 {
		failed = 0
	}
	if failed >= len(deliveryDelays) {
		failed = len(deliveryDelays) - 1
	}
	base := deliveryDelays[failed]
	jitter := (rand.Float64()*2 - 1) * float64(base) * jitterFactor
	return time.Duration(float64(base) + jitter)
}

// IsExhausted reports whether no attempts remain.
func IsExhausted(attempts, maxAttempts int) bool {
	return attempts >= maxAttempts
}
