package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auto_post_scheduler/internal/domain"
	"auto_post_scheduler/internal/logger"
)

// Dispatcher runs one matching+dispatch pass per tick and fans matched jobs
// out to a bounded worker pool. The per-account concurrency slot lives here:
// no two workers ever hold the same account's slot, which is the invariant
// the whole design protects.
type Dispatcher struct {
	matcher  *Matcher
	runner   *Runner
	schedule domain.ScheduleRepository
	jobs     domain.JobRepository

	pool chan struct{}
	wg   sync.WaitGroup

	mu       sync.Mutex
	busy     map[string]bool
	last     MatchStats
	lastTick time.Time
}

// NewDispatcher creates a Dispatcher with the given worker pool size. The
// pool bounds total concurrent browser sessions.
func NewDispatcher(matcher *Matcher, runner *Runner, schedule domain.ScheduleRepository, jobs domain.JobRepository, poolSize int) *Dispatcher {
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Dispatcher{
		matcher:  matcher,
		runner:   runner,
		schedule: schedule,
		jobs:     jobs,
		pool:     make(chan struct{}, poolSize),
		busy:     make(map[string]bool),
	}
}

// Busy reports whether the account currently holds its concurrency slot.
func (d *Dispatcher) Busy(accountID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy[accountID]
}

// Tick performs one full matching+dispatch pass. A slow or stuck job only
// occupies its own account's slot; other accounts keep being served.
func (d *Dispatcher) Tick(ctx context.Context) error {
	now := time.Now()

	dispatches, stats, err := d.matcher.Match(now, d.Busy)
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}

	for _, dispatch := range dispatches {
		if err := d.dispatch(ctx, now, dispatch); err != nil {
			logger.ErrorEvent("dispatch_failed", map[string]any{
				"job":   dispatch.Job.ID,
				"error": err.Error(),
			})
			stats.Dispatched--
			stats.Skipped++
		}
	}

	logger.Event("tick", map[string]any{
		"accounts_scanned": stats.AccountsScanned,
		"dispatched":       stats.Dispatched,
		"idle_slots":       stats.IdleSlots,
		"skipped":          stats.Skipped,
	})

	d.mu.Lock()
	d.last = stats
	d.lastTick = now
	d.mu.Unlock()

	return nil
}

// Snapshot returns the stats of the most recent tick and when it ran.
func (d *Dispatcher) Snapshot() (MatchStats, time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.lastTick
}

// dispatch consumes the slot, assigns the job, takes the account's
// concurrency slot and hands the job to a worker. The schedule slot is
// consumed the instant the job is dispatched, before the job completes, so
// a faster tick cadence can never double-book the slot.
func (d *Dispatcher) dispatch(ctx context.Context, now time.Time, dispatch Dispatch) error {
	if !d.markBusy(dispatch.Account.ID) {
		return fmt.Errorf("account %s already busy", dispatch.Account.ID)
	}

	if err := d.schedule.MarkConsumed(dispatch.Slot.ID, domain.DayKey(now)); err != nil {
		d.markFree(dispatch.Account.ID)
		return fmt.Errorf("consume slot %s: %w", dispatch.Slot.ID, err)
	}

	if err := d.jobs.Assign(dispatch.Job.ID, dispatch.Account.ID, now); err != nil {
		d.markFree(dispatch.Account.ID)
		return fmt.Errorf("assign job %s: %w", dispatch.Job.ID, err)
	}
	dispatch.Job.AccountID = dispatch.Account.ID
	dispatch.Job.Status = domain.JobStatusAssigned
	dispatch.Job.AssignedAt = now

	logger.Event("job_dispatched", map[string]any{
		"account": dispatch.Account.ID,
		"job":     dispatch.Job.ID,
		"slot":    dispatch.Slot.TimeOfDay,
	})

	d.wg.Add(1)
	go d.work(ctx, dispatch)
	return nil
}

// work runs one job on a pooled worker. Any panic inside job processing is
// caught at this boundary and recorded against the job only; it never
// reaches the scheduler loop.
func (d *Dispatcher) work(ctx context.Context, dispatch Dispatch) {
	defer d.wg.Done()
	defer d.markFree(dispatch.Account.ID)

	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorEvent("job_panic", map[string]any{
				"job":   dispatch.Job.ID,
				"panic": fmt.Sprintf("%v", rec),
			})
			_ = d.jobs.UpdateStatus(dispatch.Job.ID, domain.JobStatusFailed,
				dispatch.Job.LastStage, domain.FailureClassTransient, fmt.Sprintf("panic: %v", rec))
		}
	}()

	select {
	case d.pool <- struct{}{}:
		defer func() { <-d.pool }()
	case <-ctx.Done():
		// Shutdown before a worker slot freed up; the claim reconciler
		// returns the job to pending on the next start.
		return
	}

	if err := d.runner.Run(ctx, dispatch.Account, dispatch.Job); err != nil {
		logger.ErrorEvent("job_error", map[string]any{
			"job":   dispatch.Job.ID,
			"error": err.Error(),
		})
	}
}

// Wait blocks until all in-flight workers finish, for graceful shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) markBusy(accountID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.busy[accountID] {
		return false
	}
	d.busy[accountID] = true
	return true
}

func (d *Dispatcher) markFree(accountID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.busy, accountID)
}
