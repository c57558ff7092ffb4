package mailbox

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/eladdeutch/jobtracker/internal/errors"
)

// RetryConfig configures retry behavior for mailbox API calls.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts. Zero disables
	// retries; a negative value selects the default of 3.
	MaxRetries int

	// InitialBackoff is the initial backoff duration.
	// Default: 1 second
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	// Default: 30 seconds
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	// Default: 2
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *RetryConfig) ApplyDefaults() {
	defaults := DefaultRetryConfig()

	if c.MaxRetries < 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = defaults.InitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = defaults.BackoffMultiplier
	}
}

// retry runs op until it succeeds, fails with a non-retryable error, or
// exhausts cfg.MaxRetries, sleeping with exponential backoff in between.
func retry[T any](ctx context.Context, cfg RetryConfig, log *zap.Logger, op func() (T, error)) (T, error) {
	cfg.ApplyDefaults()
	backoff := cfg.InitialBackoff

	var zero T
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		v, err := op()
		if err == nil {
			if attempt > 0 {
				log.Debug("mailbox call recovered after retries", zap.Int("attempts", attempt))
			}
			return v, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == cfg.MaxRetries {
			break
		}
		log.Info("retrying mailbox call after transient error",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", cfg.MaxRetries+1),
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
	return zero, lastErr
}

// isRetryable reports rate limiting, server errors and network timeouts.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.IsCause(err, context.Canceled) || errors.IsCause(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.AsCause(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.AsCause(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// isNotFound reports a 404 from the API, e.g. a message deleted between list and get.
func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.AsCause(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
