package usecase

import (
	"fmt"
	"time"

	"auto_post_scheduler/internal/domain"
	"auto_post_scheduler/internal/logger"
)

// Dispatch is one (account, job, slot) triple selected for this tick.
type Dispatch struct {
	Account *domain.Account
	Job     *domain.VideoJob
	Slot    *domain.ScheduleSlot
}

// MatchStats summarizes one matching pass for the tick event.
type MatchStats struct {
	AccountsScanned int
	Dispatched      int
	IdleSlots       int
	Skipped         int
}

// Matcher computes which (account, slot) pairs are due and selects the next
// eligible pending job per account. Busy/free account state is owned by the
// slot table passed in from the dispatcher; the matcher itself is stateless.
type Matcher struct {
	accounts domain.AccountRepository
	schedule domain.ScheduleRepository
	jobs     domain.JobRepository
}

// NewMatcher creates a Matcher.
func NewMatcher(accounts domain.AccountRepository, schedule domain.ScheduleRepository, jobs domain.JobRepository) *Matcher {
	return &Matcher{
		accounts: accounts,
		schedule: schedule,
		jobs:     jobs,
	}
}

// Match returns the dispatches for the given wall-clock moment. busy reports
// whether an account currently holds its concurrency slot; accounts for
// which it returns true are skipped.
func (m *Matcher) Match(now time.Time, busy func(accountID string) bool) ([]Dispatch, MatchStats, error) {
	var stats MatchStats

	accounts, err := m.accounts.GetAllActive()
	if err != nil {
		return nil, stats, fmt.Errorf("get active accounts: %w", err)
	}
	stats.AccountsScanned = len(accounts)

	day := domain.DayKey(now)
	var dispatches []Dispatch

	for _, account := range accounts {
		if !account.Schedulable() {
			stats.Skipped++
			logger.Event("account_skipped", map[string]any{
				"account": account.ID,
				"reason":  "needs_reauth",
			})
			continue
		}

		if busy(account.ID) {
			stats.Skipped++
			logger.Event("account_skipped", map[string]any{
				"account": account.ID,
				"reason":  "busy",
			})
			continue
		}

		slot, err := m.dueSlot(account, now, day)
		if err != nil {
			return nil, stats, err
		}
		if slot == nil {
			continue
		}

		if capped, err := m.quotaReached(account, day); err != nil {
			return nil, stats, err
		} else if capped {
			stats.Skipped++
			logger.Event("account_skipped", map[string]any{
				"account": account.ID,
				"reason":  "quota_reached",
			})
			continue
		}

		job, err := m.jobs.NextPending(account.ID)
		if err != nil {
			return nil, stats, fmt.Errorf("next pending job for account %s: %w", account.ID, err)
		}
		if job == nil {
			// The slot stays unconsumed and is retried next tick until a
			// video arrives or the slot expires at end of day.
			stats.IdleSlots++
			logger.Event("idle_slot", map[string]any{
				"account": account.ID,
				"slot":    slot.TimeOfDay,
			})
			continue
		}

		dispatches = append(dispatches, Dispatch{Account: account, Job: job, Slot: slot})
		stats.Dispatched++
	}

	return dispatches, stats, nil
}

// dueSlot returns the earliest due, not-yet-consumed slot for the account
// today, or nil.
func (m *Matcher) dueSlot(account *domain.Account, now time.Time, day string) (*domain.ScheduleSlot, error) {
	slots, err := m.schedule.GetByAccount(account.ID)
	if err != nil {
		return nil, fmt.Errorf("get slots for account %s: %w", account.ID, err)
	}

	for _, slot := range slots {
		due, err := slot.DueAt(now)
		if err != nil {
			logger.Error().Printf("Skipping malformed slot %s for account %s: %v", slot.ID, account.ID, err)
			continue
		}
		if !due {
			continue
		}

		consumed, err := m.schedule.IsConsumed(slot.ID, day)
		if err != nil {
			return nil, fmt.Errorf("check slot consumption: %w", err)
		}
		if !consumed {
			return slot, nil
		}
	}

	return nil, nil
}

func (m *Matcher) quotaReached(account *domain.Account, day string) (bool, error) {
	if account.DailyQuota <= 0 {
		return false, nil
	}

	posted, err := m.jobs.CountPostedOn(account.ID, day)
	if err != nil {
		return false, fmt.Errorf("count posted jobs for account %s: %w", account.ID, err)
	}
	return posted >= account.DailyQuota, nil
}
