package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go-instance-catalog/internal/model"
	"go-instance-catalog/internal/store"
)

// permanentError marks failures that retrying cannot fix
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so WithRetry gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// isRetryableError reports whether another attempt could succeed
func isRetryableError(err error) bool {
	var p *permanentError
	if errors.As(err, &p) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// backoffDelay calculates the wait before retry number attempt (1-based)
func backoffDelay(cfg model.RetryConfig, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt-1)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}

// WithRetry runs op until it succeeds, fails permanently, or MaxRetries
// retries have been spent. Waits grow exponentially and stop early when ctx
// is done.
func WithRetry(ctx context.Context, cfg model.RetryConfig, name string, op func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = op(); err == nil {
			if attempt > 0 {
				fmt.Printf("🔄 %s succeeded after %d retries\n", name, attempt)
			}
			return nil
		}
		if !isRetryableError(err) || attempt >= cfg.MaxRetries {
			break
		}

		delay := backoffDelay(cfg, attempt+1)
		fmt.Printf("🔄 %s failed (%v), retry %d/%d in %v\n", name, err, attempt+1, cfg.MaxRetries, delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w (gave up: %v)", name, err, ctx.Err())
		case <-timer.C:
		}
	}

	var p *permanentError
	if errors.As(err, &p) {
		err = p.err
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RetryJob reruns a stored catalog job under its original ID
func RetryJob(ctx context.Context, jobID string) (*model.PipelineMetrics, error) {
	fmt.Printf("🔄 Retrying job %s\n", jobID)

	job, err := store.GetJobSpec(jobID)
	if err != nil {
		return nil, err
	}
	store.UpdateJobStatus(jobID, "retrying")
	return Run(ctx, jobID, job)
}
