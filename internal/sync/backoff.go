package sync

import (
	"errors"
	"time"
)

// Backoff describes a bounded exponential retry schedule.
type Backoff struct {
	// Initial is the delay before the first retry.
	Initial time.Duration

	// Max caps every delay.
	Max time.Duration

	// Multiplier grows the delay after each failure. Values below 1 are
	// treated as 2.
	Multiplier float64

	// MaxAttempts is the number of failed attempts after which the
	// supervisor gives up. Zero or less means 10.
	MaxAttempts int
}

// DefaultBackoff starts at 5s, doubles up to 60s and gives up after ten
// failures.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:     5 * time.Second,
		Max:         60 * time.Second,
		Multiplier:  2,
		MaxAttempts: 10,
	}
}

// Delay returns the wait before retry number n (1-based).
func (b Backoff) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 2
	}

	d := float64(b.Initial)
	for i := 1; i < n; i++ {
		d *= mult
		if b.Max > 0 && time.Duration(d) >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && time.Duration(d) > b.Max {
		return b.Max
	}
	return time.Duration(d)
}

func (b Backoff) maxAttempts() int {
	if b.MaxAttempts <= 0 {
		return 10
	}
	return b.MaxAttempts
}

// ErrSkipped marks an attempt that had nothing to do (for example, no
// credential is stored). The supervisor returns to Idle without retrying.
var ErrSkipped = errors.New("attempt skipped")

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the supervisor gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or any error in its chain) was marked
// with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
