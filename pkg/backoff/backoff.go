package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Exponential returns base * 2^(attempt-1), capped at max when max > 0.
func Exponential(base, max time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	mul := math.Pow(2, float64(attempt-1))
	d := time.Duration(float64(base) * mul)
	if max > 0 && (d > max || d <= 0) {
		d = max
	}
	return d
}

// ExponentialJitter is Exponential with +/- 20% jitter.
func ExponentialJitter(base, max time.Duration, attempt int) time.Duration {
	d := Exponential(base, max, attempt)

	j := int64(float64(d) * 0.2)
	if j <= 0 {
		return d
	}
	return d - time.Duration(j) + time.Duration(rand.Int63n(2*j))
}

// Policy decides whether a failed job is re-delayed or failed for good.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Base:        2 * time.Second,
	}
}

// Next takes the number of attempts made so far, including the one that just
// failed, and returns the re-delay. retry is false once the cap is reached.
func (p Policy) Next(attempts int) (delay time.Duration, retry bool) {
	if attempts >= p.MaxAttempts {
		return 0, false
	}
	return Exponential(p.Base, p.Max, attempts), true
}
