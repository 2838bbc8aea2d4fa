// Package retry computes bounded exponential backoff schedules with jitter.
package retry

import (
	"math/rand"
	"time"
)

// Config configures backoff behavior
type Config struct {
	MaxAttempts    int           // Total attempts including the first
	BaseDelay      time.Duration // Delay before the first retry, pre-jitter
	Multiplier     float64       // Multiplier for exponential growth
	MaxDelay       time.Duration // Cap applied before jitter
	JitterFraction float64       // Randomization as a fraction of each delay (0.1 => ±10%)
}

// DefaultConfig returns the default backoff configuration
// Pattern: 200ms, 400ms, capped at 5s, ±10% jitter
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		BaseDelay:      200 * time.Millisecond,
		Multiplier:     2.0,
		MaxDelay:       5 * time.Second,
		JitterFraction: 0.1,
	}
}

// ComputeDelays returns the sleep durations applied between attempts. The
// slice has MaxAttempts-1 entries because the first attempt happens
// immediately. Each delay is min(base*multiplier^i, max) randomized uniformly
// within ±JitterFraction of itself and floored at zero. Passing a nil rng
// falls back to the shared global source; tests pass a seeded one.
func ComputeDelays(cfg Config, rng *rand.Rand) []time.Duration {
	if cfg.MaxAttempts <= 1 {
		return nil
	}

	uniform := rand.Float64
	if rng != nil {
		uniform = rng.Float64
	}

	delays := make([]time.Duration, 0, cfg.MaxAttempts-1)
	current := float64(cfg.BaseDelay)
	for i := 0; i < cfg.MaxAttempts-1; i++ {
		delay := current
		if delay > float64(cfg.MaxDelay) {
			delay = float64(cfg.MaxDelay)
		}
		if cfg.JitterFraction > 0 {
			jitter := delay * cfg.JitterFraction
			delay += (uniform()*2 - 1) * jitter
			if delay < 0 {
				delay = 0
			}
		}
		delays = append(delays, time.Duration(delay))
		current *= cfg.Multiplier
	}
	return delays
}

// Sleep applies the precomputed delay for a 0-based attempt index. Nothing
// happens when the index is out of range. The sleep function is injectable so
// callers can observe scheduled sleeps in tests.
func Sleep(attemptIndex int, delays []time.Duration, sleepFn func(time.Duration)) {
	if sleepFn == nil {
		sleepFn = time.Sleep
	}
	if attemptIndex >= 0 && attemptIndex < len(delays) && delays[attemptIndex] > 0 {
		sleepFn(delays[attemptIndex])
	}
}
