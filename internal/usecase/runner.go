package usecase

import (
	"context"
	"time"

	"auto_post_scheduler/config"
	"auto_post_scheduler/internal/domain"
	"auto_post_scheduler/internal/logger"
	"auto_post_scheduler/internal/storage"
)

// Runner drives one claimed job through the upload state machine. Every
// stage result arrives as an outcome value, so the retry and classification
// logic below is a plain decision table.
type Runner struct {
	jobs      domain.JobRepository
	accounts  domain.AccountRepository
	runtime   domain.BrowserRuntime
	executor  domain.StageExecutor
	artifacts *storage.Manager

	stageRetries int
	retryBackoff time.Duration
	jobCeiling   time.Duration
}

// NewRunner creates a Runner.
func NewRunner(
	cfg *config.Config,
	jobs domain.JobRepository,
	accounts domain.AccountRepository,
	runtime domain.BrowserRuntime,
	executor domain.StageExecutor,
	artifacts *storage.Manager,
) *Runner {
	return &Runner{
		jobs:         jobs,
		accounts:     accounts,
		runtime:      runtime,
		executor:     executor,
		artifacts:    artifacts,
		stageRetries: cfg.StageRetries,
		retryBackoff: cfg.RetryBackoff,
		jobCeiling:   cfg.JobCeiling,
	}
}

// Run processes one assigned job to a terminal outcome. The job ceiling
// bounds worst-case occupancy of the account's concurrency slot even under
// pathological stalls.
func (r *Runner) Run(ctx context.Context, account *domain.Account, job *domain.VideoJob) error {
	claimed, err := r.artifacts.Claim(job)
	if err != nil {
		return err
	}
	if !claimed {
		logger.Event("job_already_claimed", map[string]any{"job": job.ID})
		return nil
	}

	jobCtx, cancel := context.WithTimeout(ctx, r.jobCeiling)
	defer cancel()

	session, outcome, detail := r.acquireSession(jobCtx, account)
	if outcome != domain.OutcomeSuccess {
		if err := r.jobs.IncrementAttempts(job.ID); err != nil {
			return err
		}
		return r.artifacts.Finalize(job, domain.JobStatusFailed, domain.StageUpload, domain.FailureClassTransient, detail)
	}
	defer r.runtime.Release(session)

	status := job.Status
	for {
		stage, next, ok := domain.NextStage(status)
		if !ok {
			break
		}

		outcome, detail := r.runStageWithRetry(jobCtx, session, stage, job)
		switch outcome {
		case domain.OutcomeSuccess:
			logger.Event("job_advanced", map[string]any{
				"job":   job.ID,
				"stage": stage,
				"to":    next,
			})
			if next.Terminal() {
				// The terminal write belongs to Finalize, after the file
				// move, so a crash in between is resolvable from file
				// presence on restart.
				if err := r.jobs.IncrementAttempts(job.ID); err != nil {
					return err
				}
				return r.artifacts.Finalize(job, next, stage, domain.FailureClassNone, "")
			}
			if err := r.jobs.UpdateStatus(job.ID, next, stage, domain.FailureClassNone, ""); err != nil {
				return err
			}
			status = next

		case domain.OutcomeAuth:
			return r.handleAuthFailure(account, job, stage, detail)

		case domain.OutcomePermanent:
			if err := r.jobs.IncrementAttempts(job.ID); err != nil {
				return err
			}
			return r.artifacts.Finalize(job, domain.JobStatusFailed, stage, domain.FailureClassPermanent, detail)

		default:
			if err := r.jobs.IncrementAttempts(job.ID); err != nil {
				return err
			}
			return r.artifacts.Finalize(job, domain.JobStatusFailed, stage, domain.FailureClassTransient, detail)
		}
	}

	// The job arrived in a state with no next stage; nothing to run.
	return r.artifacts.Release(job)
}

// acquireSession creates the browser session, retrying like a transient
// stage failure: session creation failing is a property of the runtime, not
// of the job.
func (r *Runner) acquireSession(ctx context.Context, account *domain.Account) (domain.BrowserSession, domain.StageOutcome, string) {
	var lastErr string
	for attempt := 0; attempt <= r.stageRetries; attempt++ {
		if attempt > 0 && !r.backoff(ctx) {
			break
		}

		session, err := r.runtime.Acquire(ctx, account)
		if err == nil {
			return session, domain.OutcomeSuccess, ""
		}
		lastErr = err.Error()
		logger.Error().Printf("Session acquisition failed for account %s (attempt %d): %v", account.ID, attempt+1, err)
	}
	return nil, domain.OutcomeTransient, "session acquisition failed: " + lastErr
}

// runStageWithRetry executes one stage, retrying the same stage on
// transient failures up to the retry ceiling with a fixed backoff.
func (r *Runner) runStageWithRetry(ctx context.Context, session domain.BrowserSession, stage domain.Stage, job *domain.VideoJob) (domain.StageOutcome, string) {
	outcome, detail := r.executor.RunStage(ctx, session, stage, job)
	for attempt := 0; attempt < r.stageRetries && outcome == domain.OutcomeTransient; attempt++ {
		if !r.backoff(ctx) {
			break
		}
		outcome, detail = r.executor.RunStage(ctx, session, stage, job)
	}
	return outcome, detail
}

// handleAuthFailure flags the account and returns the job to pending,
// unassigned, with the auth failure recorded, so it can run again once the
// account is reauthenticated. The job write is a single operation: there is
// no intermediate state a crash could strand the job in. The attempt counter
// is not touched.
func (r *Runner) handleAuthFailure(account *domain.Account, job *domain.VideoJob, stage domain.Stage, detail string) error {
	if err := r.accounts.SetNeedsReauth(account.ID, true); err != nil {
		return err
	}

	logger.ErrorEvent("account_needs_reauth", map[string]any{
		"account": account.ID,
		"job":     job.ID,
		"stage":   stage,
	})

	if err := r.jobs.ReturnToPending(job.ID, stage, domain.FailureClassAuth, detail); err != nil {
		return err
	}
	return r.artifacts.Release(job)
}

// backoff sleeps for the fixed retry backoff, returning false if the job
// context expired first.
func (r *Runner) backoff(ctx context.Context) bool {
	if r.retryBackoff <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(r.retryBackoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
