package leonardo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"spritegen/internal/domain"
)

// DefaultPollInterval matches the cadence the service documents for status checks.
const DefaultPollInterval = 2 * time.Second

// PollPolicy bounds the wait for a job. At least one of MaxAttempts or
// Timeout must be positive; a policy without bounds is rejected.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
}

// Validate rejects unbounded policies.
func (p PollPolicy) Validate() error {
	if p.MaxAttempts <= 0 && p.Timeout <= 0 {
		return errors.New("leonardo: poll policy needs max attempts or a timeout")
	}
	return nil
}

// Await polls jobID until it is Complete or Failed, or until the policy runs
// out. Failed jobs and jobs completed without images yield
// ErrGenerationFailed; an exhausted policy yields ErrTimedOut. A poll error
// ends the wait immediately.
func (c *Client) Await(ctx context.Context, jobID string, policy PollPolicy) (domain.GenerationJob, error) {
	if err := policy.Validate(); err != nil {
		return domain.GenerationJob{}, err
	}
	interval := policy.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	pollCtx := ctx
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	var last domain.GenerationJob
	for attempt := 1; policy.MaxAttempts <= 0 || attempt <= policy.MaxAttempts; attempt++ {
		select {
		case <-pollCtx.Done():
			return last, c.waitAborted(ctx, jobID, attempt-1, pollCtx.Err())
		case <-timer.C:
		}

		job, err := c.Poll(pollCtx, jobID)
		if err != nil {
			if pollCtx.Err() != nil {
				return last, c.waitAborted(ctx, jobID, attempt, pollCtx.Err())
			}
			return last, err
		}
		job.Attempts = attempt
		last = job
		c.logger.Debug().
			Str("job_id", jobID).
			Int("attempt", attempt).
			Str("status", string(job.Status)).
			Msg("leonardo: polled generation")

		switch job.Status {
		case domain.JobStatusComplete:
			if _, ok := job.FirstResult(); !ok {
				return job, fmt.Errorf("%w: job %s completed without images", domain.ErrGenerationFailed, jobID)
			}
			return job, nil
		case domain.JobStatusFailed:
			return job, fmt.Errorf("%w: job %s reported failure", domain.ErrGenerationFailed, jobID)
		}
		timer.Reset(interval)
	}
	return last, fmt.Errorf("%w: job %s still %s after %d attempts", domain.ErrTimedOut, jobID, last.Status, policy.MaxAttempts)
}

// waitAborted distinguishes the poll deadline from cancellation by the caller.
func (c *Client) waitAborted(parent context.Context, jobID string, attempts int, cause error) error {
	if parent.Err() != nil {
		return fmt.Errorf("leonardo: waiting for job %s: %w", jobID, parent.Err())
	}
	return fmt.Errorf("%w: job %s after %d attempts: %v", domain.ErrTimedOut, jobID, attempts, cause)
}

// Generate submits req, waits for the job and returns the first result URL.
func (c *Client) Generate(ctx context.Context, req domain.AssetRequest, policy PollPolicy) (string, domain.GenerationJob, error) {
	jobID, err := c.Submit(ctx, req)
	if err != nil {
		return "", domain.GenerationJob{ID: jobID}, err
	}
	job, err := c.Await(ctx, jobID, policy)
	if err != nil {
		job.ID = jobID
		return "", job, err
	}
	url, _ := job.FirstResult()
	return url, job, nil
}
