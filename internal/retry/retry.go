package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/creator-analytics/internal/logging"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts    int           // Total attempts including the first call
	InitialDelay   time.Duration // Initial delay before first retry
	MaxDelay       time.Duration // Maximum delay between retries
	Multiplier     float64       // Multiplier for exponential backoff
	AttemptTimeout time.Duration // Deadline applied to each attempt, zero for none
	// Retryable decides whether a failed attempt is worth repeating.
	// nil retries every error.
	Retryable func(error) bool
}

// DefaultRetryConfig returns the configuration used for upstream calls:
// one retry after 250ms, each attempt bounded by attemptTimeout.
func DefaultRetryConfig(attemptTimeout time.Duration) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:    2,
		InitialDelay:   250 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		Multiplier:     2.0,
		AttemptTimeout: attemptTimeout,
	}
}

// RetryResult contains information about the retry operation
type RetryResult struct {
	Attempts      int           `json:"attempts"`
	Success       bool          `json:"success"`
	TotalDuration time.Duration `json:"totalDuration"`
	LastError     error         `json:"lastError,omitempty"`
}

// Err returns nil on success and the last error otherwise
func (r *RetryResult) Err() error {
	if r.Success {
		return nil
	}
	return r.LastError
}

// RetryFunc is a function that can be retried
type RetryFunc func(ctx context.Context, attempt int) error

// WithExponentialBackoff executes a function with exponential backoff retry logic
func WithExponentialBackoff(ctx context.Context, config *RetryConfig, fn RetryFunc) *RetryResult {
	logger := logging.FromContext(ctx)
	startTime := time.Now()

	result := &RetryResult{}

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := runAttempt(ctx, config, fn, attempt)
		if err == nil {
			result.Success = true
			result.LastError = nil
			result.TotalDuration = time.Since(startTime)

			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts":      attempt,
					"totalDuration": result.TotalDuration.String(),
				}).Info("Operation succeeded after retry")
			}

			return result
		}

		result.LastError = err

		if attempt >= config.MaxAttempts {
			if config.MaxAttempts > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts":      attempt,
					"totalDuration": time.Since(startTime).String(),
				}).WithError(err).Warn("Operation failed after max retry attempts")
			}
			break
		}

		if config.Retryable != nil && !config.Retryable(err) {
			break
		}

		// The caller gave up, not the attempt
		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			break
		}

		delay := calculateDelay(config, attempt)

		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": config.MaxAttempts,
			"delay":       delay.String(),
		}).WithError(err).Warn("Operation failed, retrying with exponential backoff")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return result
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}

func runAttempt(ctx context.Context, config *RetryConfig, fn RetryFunc, attempt int) error {
	if config.AttemptTimeout <= 0 {
		return fn(ctx, attempt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, config.AttemptTimeout)
	defer cancel()
	return fn(attemptCtx, attempt)
}

// calculateDelay calculates the delay for the next retry attempt
func calculateDelay(config *RetryConfig, attempt int) time.Duration {
	// initialDelay * multiplier^(attempt-1)
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}

// PermanentError marks an error that must not be retried
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so IsTransient reports false for it
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsTransient is the default Retryable predicate for upstream calls.
// Permanent errors and caller cancellation are not retried; per-attempt
// deadlines are.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var perm *PermanentError
	if errors.As(err, &perm) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// RetryStats tracks statistics about retry operations
type RetryStats struct {
	TotalOperations int     `json:"totalOperations"`
	SuccessfulOps   int     `json:"successfulOps"`
	FailedOps       int     `json:"failedOps"`
	TotalRetries    int     `json:"totalRetries"`
	AverageAttempts float64 `json:"averageAttempts"`
}

// RetryStatsTracker tracks retry statistics. Safe for concurrent use.
type RetryStatsTracker struct {
	mu    sync.Mutex
	stats RetryStats
}

// NewRetryStatsTracker creates a new retry stats tracker
func NewRetryStatsTracker() *RetryStatsTracker {
	return &RetryStatsTracker{}
}

// RecordResult records the result of a retry operation
func (rst *RetryStatsTracker) RecordResult(result *RetryResult) {
	rst.mu.Lock()
	defer rst.mu.Unlock()

	rst.stats.TotalOperations++

	if result.Success {
		rst.stats.SuccessfulOps++
	} else {
		rst.stats.FailedOps++
	}

	if result.Attempts > 1 {
		rst.stats.TotalRetries += result.Attempts - 1
	}

	rst.stats.AverageAttempts = float64(rst.stats.TotalRetries+rst.stats.TotalOperations) / float64(rst.stats.TotalOperations)
}

// GetStats returns the current retry statistics
func (rst *RetryStatsTracker) GetStats() RetryStats {
	rst.mu.Lock()
	defer rst.mu.Unlock()
	return rst.stats
}

// Reset resets the retry statistics
func (rst *RetryStatsTracker) Reset() {
	rst.mu.Lock()
	rst.stats = RetryStats{}
	rst.mu.Unlock()
}

// Describe renders a failed result for error messages
func Describe(result *RetryResult) string {
	return fmt.Sprintf("failed after %d attempts in %s", result.Attempts, result.TotalDuration)
}
