package tool

import (
	"math/rand/v2"
	"time"
)

// Exponential backoff parameters shared by the Broker's idempotent-tool
// retries and the Agent Runtime's LLM completion retries (spec.md §4.3):
// base 250ms, cap 4s, ±20% jitter, up to 3 retries.
const (
	backoffBase    = 250 * time.Millisecond
	backoffCap     = 4 * time.Second
	backoffJitter  = 0.20
	maxRetries     = 3
)

// backoffDelay returns the delay before retry attempt n (1-indexed:
// the delay before the first retry is backoffDelay(1)), exponential in
// n and capped at backoffCap, with ±20% jitter applied last so the cap
// itself is never exceeded by more than the jitter band.
func backoffDelay(attempt int) time.Duration {
	d := backoffBase << uint(attempt-1) //nolint:gosec // attempt is small and bounded by maxRetries
	if d > backoffCap {
		d = backoffCap
	}
	jitterRange := float64(d) * backoffJitter
	offset := (rand.Float64()*2 - 1) * jitterRange
	d = time.Duration(float64(d) + offset)
	if d < 0 {
		d = 0
	}
	return d
}
