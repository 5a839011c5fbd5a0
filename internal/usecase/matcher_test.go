package usecase

import (
	"testing"
	"time"

	"auto_post_scheduler/internal/domain"
	"auto_post_scheduler/internal/repository/memory"
)

var testNow = time.Date(2025, 6, 1, 10, 1, 0, 0, time.UTC)

func neverBusy(string) bool { return false }

type matcherFixture struct {
	accounts *memory.AccountRepository
	schedule *memory.ScheduleRepository
	jobs     *memory.JobRepository
	matcher  *Matcher
}

func newMatcherFixture(t *testing.T) *matcherFixture {
	t.Helper()
	f := &matcherFixture{
		accounts: memory.NewAccountRepository(),
		schedule: memory.NewScheduleRepository(),
		jobs:     memory.NewJobRepository(),
	}
	f.matcher = NewMatcher(f.accounts, f.schedule, f.jobs)
	return f
}

func (f *matcherFixture) addAccount(t *testing.T, account *domain.Account) *domain.Account {
	t.Helper()
	if err := f.accounts.Save(account); err != nil {
		t.Fatal(err)
	}
	return account
}

func (f *matcherFixture) addSlot(t *testing.T, accountID, timeOfDay string) *domain.ScheduleSlot {
	t.Helper()
	slot := &domain.ScheduleSlot{AccountID: accountID, TimeOfDay: timeOfDay}
	if err := f.schedule.Save(slot); err != nil {
		t.Fatal(err)
	}
	return slot
}

func (f *matcherFixture) addJob(t *testing.T, job *domain.VideoJob) *domain.VideoJob {
	t.Helper()
	if err := f.jobs.Save(job); err != nil {
		t.Fatal(err)
	}
	return job
}

func TestMatchDispatchesDueSlot(t *testing.T) {
	f := newMatcherFixture(t)
	account := f.addAccount(t, &domain.Account{Handle: "creator_a", IsActive: true})
	slot := f.addSlot(t, account.ID, "10:00")
	job := f.addJob(t, &domain.VideoJob{SourcePath: "/videos/pending/a.mp4"})

	dispatches, stats, err := f.matcher.Match(testNow, neverBusy)
	if err != nil {
		t.Fatal(err)
	}
	if len(dispatches) != 1 {
		t.Fatalf("got %d dispatches, want 1", len(dispatches))
	}
	d := dispatches[0]
	if d.Account.ID != account.ID || d.Job.ID != job.ID || d.Slot.ID != slot.ID {
		t.Errorf("dispatch = (%s, %s, %s), want (%s, %s, %s)",
			d.Account.ID, d.Job.ID, d.Slot.ID, account.ID, job.ID, slot.ID)
	}
	if stats.Dispatched != 1 {
		t.Errorf("stats.Dispatched = %d, want 1", stats.Dispatched)
	}
}

func TestMatchSkipsSlotNotYetDue(t *testing.T) {
	f := newMatcherFixture(t)
	account := f.addAccount(t, &domain.Account{Handle: "creator_a", IsActive: true})
	f.addSlot(t, account.ID, "12:00")
	f.addJob(t, &domain.VideoJob{SourcePath: "/videos/pending/a.mp4"})

	dispatches, _, err := f.matcher.Match(testNow, neverBusy)
	if err != nil {
		t.Fatal(err)
	}
	if len(dispatches) != 0 {
		t.Fatalf("got %d dispatches, want 0", len(dispatches))
	}
}

func TestMatchRecordsIdleSlotWhenNoJob(t *testing.T) {
	f := newMatcherFixture(t)
	account := f.addAccount(t, &domain.Account{Handle: "creator_c", IsActive: true})
	f.addSlot(t, account.ID, "10:00")

	dispatches, stats, err := f.matcher.Match(testNow, neverBusy)
	if err != nil {
		t.Fatal(err)
	}
	if len(dispatches) != 0 {
		t.Fatalf("got %d dispatches, want 0", len(dispatches))
	}
	if stats.IdleSlots != 1 {
		t.Errorf("stats.IdleSlots = %d, want 1", stats.IdleSlots)
	}
}

func TestMatchSkipsBusyAccount(t *testing.T) {
	f := newMatcherFixture(t)
	account := f.addAccount(t, &domain.Account{Handle: "creator_a", IsActive: true})
	f.addSlot(t, account.ID, "10:00")
	f.addJob(t, &domain.VideoJob{SourcePath: "/videos/pending/a.mp4"})

	busy := func(id string) bool { return id == account.ID }

	dispatches, stats, err := f.matcher.Match(testNow, busy)
	if err != nil {
		t.Fatal(err)
	}
	if len(dispatches) != 0 {
		t.Fatalf("got %d dispatches, want 0", len(dispatches))
	}
	if stats.Skipped != 1 {
		t.Errorf("stats.Skipped = %d, want 1", stats.Skipped)
	}
}

func TestMatchSkipsAccountNeedingReauth(t *testing.T) {
	f := newMatcherFixture(t)
	account := f.addAccount(t, &domain.Account{Handle: "creator_b", IsActive: true, NeedsReauth: true})
	f.addSlot(t, account.ID, "10:00")
	f.addJob(t, &domain.VideoJob{SourcePath: "/videos/pending/b.mp4"})

	dispatches, stats, err := f.matcher.Match(testNow, neverBusy)
	if err != nil {
		t.Fatal(err)
	}
	if len(dispatches) != 0 {
		t.Fatalf("got %d dispatches, want 0", len(dispatches))
	}
	if stats.Skipped != 1 {
		t.Errorf("stats.Skipped = %d, want 1", stats.Skipped)
	}
}

func TestMatchSkipsConsumedSlot(t *testing.T) {
	f := newMatcherFixture(t)
	account := f.addAccount(t, &domain.Account{Handle: "creator_a", IsActive: true})
	slot := f.addSlot(t, account.ID, "10:00")
	f.addJob(t, &domain.VideoJob{SourcePath: "/videos/pending/a.mp4"})

	if err := f.schedule.MarkConsumed(slot.ID, domain.DayKey(testNow)); err != nil {
		t.Fatal(err)
	}

	dispatches, _, err := f.matcher.Match(testNow, neverBusy)
	if err != nil {
		t.Fatal(err)
	}
	if len(dispatches) != 0 {
		t.Fatalf("got %d dispatches, want 0", len(dispatches))
	}
}

func TestMatchSkipsQuotaReachedAccount(t *testing.T) {
	f := newMatcherFixture(t)
	account := f.addAccount(t, &domain.Account{Handle: "creator_a", IsActive: true, DailyQuota: 1})
	f.addSlot(t, account.ID, "10:00")
	f.addJob(t, &domain.VideoJob{SourcePath: "/videos/pending/a.mp4"})

	// One post already confirmed today exhausts the quota of 1.
	f.addJob(t, &domain.VideoJob{
		AccountID:   account.ID,
		SourcePath:  "/videos/posted/old.mp4",
		Status:      domain.JobStatusConfirmed,
		CompletedAt: testNow.Add(-time.Hour),
	})

	dispatches, stats, err := f.matcher.Match(testNow, neverBusy)
	if err != nil {
		t.Fatal(err)
	}
	if len(dispatches) != 0 {
		t.Fatalf("got %d dispatches, want 0", len(dispatches))
	}
	if stats.Skipped != 1 {
		t.Errorf("stats.Skipped = %d, want 1", stats.Skipped)
	}
}

func TestMatchSelectsOldestPendingJob(t *testing.T) {
	f := newMatcherFixture(t)
	account := f.addAccount(t, &domain.Account{Handle: "creator_a", IsActive: true})
	f.addSlot(t, account.ID, "10:00")

	older := f.addJob(t, &domain.VideoJob{
		SourcePath: "/videos/pending/old.mp4",
		Status:     domain.JobStatusPending,
	})
	older.CreatedAt = testNow.Add(-2 * time.Hour)
	f.addJob(t, &domain.VideoJob{
		SourcePath: "/videos/pending/new.mp4",
		Status:     domain.JobStatusPending,
	}).CreatedAt = testNow.Add(-time.Hour)

	dispatches, _, err := f.matcher.Match(testNow, neverBusy)
	if err != nil {
		t.Fatal(err)
	}
	if len(dispatches) != 1 {
		t.Fatalf("got %d dispatches, want 1", len(dispatches))
	}
	if dispatches[0].Job.ID != older.ID {
		t.Errorf("dispatched job %s, want oldest %s", dispatches[0].Job.ID, older.ID)
	}
}

func TestMatchPrefersJobAssignedToAccount(t *testing.T) {
	f := newMatcherFixture(t)
	account := f.addAccount(t, &domain.Account{Handle: "creator_a", IsActive: true})
	f.addSlot(t, account.ID, "10:00")

	f.addJob(t, &domain.VideoJob{
		SourcePath: "/videos/pending/unassigned.mp4",
	}).CreatedAt = testNow.Add(-2 * time.Hour)
	mine := f.addJob(t, &domain.VideoJob{
		AccountID:  account.ID,
		SourcePath: "/videos/pending/mine.mp4",
	})
	mine.CreatedAt = testNow.Add(-time.Hour)

	dispatches, _, err := f.matcher.Match(testNow, neverBusy)
	if err != nil {
		t.Fatal(err)
	}
	if len(dispatches) != 1 {
		t.Fatalf("got %d dispatches, want 1", len(dispatches))
	}
	if dispatches[0].Job.ID != mine.ID {
		t.Errorf("dispatched job %s, want account-assigned %s", dispatches[0].Job.ID, mine.ID)
	}
}

func TestMatchUsesEarliestDueSlot(t *testing.T) {
	f := newMatcherFixture(t)
	account := f.addAccount(t, &domain.Account{Handle: "creator_a", IsActive: true})
	early := f.addSlot(t, account.ID, "08:00")
	f.addSlot(t, account.ID, "10:00")
	f.addJob(t, &domain.VideoJob{SourcePath: "/videos/pending/a.mp4"})

	dispatches, _, err := f.matcher.Match(testNow, neverBusy)
	if err != nil {
		t.Fatal(err)
	}
	if len(dispatches) != 1 {
		t.Fatalf("got %d dispatches, want 1", len(dispatches))
	}
	if dispatches[0].Slot.ID != early.ID {
		t.Errorf("dispatched slot %s, want earliest due %s", dispatches[0].Slot.TimeOfDay, early.TimeOfDay)
	}
}
