package regions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// backoff controls download retries: exponential delay with jitter.
type backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	Jitter   float64
}

var downloadBackoff = backoff{
	Attempts: 3,
	Initial:  time.Second,
	Max:      15 * time.Second,
	Jitter:   0.25,
}

// statusError is a non-200 response from the boundary file host.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("download returned status %d", e.code)
}

// retryable reports whether a download failure is worth another attempt:
// throttling, server errors and network timeouts.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (b backoff) delay(attempt int) time.Duration {
	d := float64(b.Initial) * math.Pow(2, float64(attempt))
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.Jitter
	}
	return time.Duration(max(d, 0))
}

// retry runs fn until it succeeds, fails permanently, runs out of attempts
// or ctx is done. The last error is returned.
func (b backoff) retry(ctx context.Context, log *zap.Logger, fn func(context.Context) error) error {
	attempts := max(b.Attempts, 1)
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil || !retryable(err) || ctx.Err() != nil {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		wait := b.delay(attempt)
		log.Warn("download failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
