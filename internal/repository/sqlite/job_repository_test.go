package sqlite

import (
	"errors"
	"testing"
	"time"

	"auto_post_scheduler/internal/domain"
)

func saveTestJob(t *testing.T, repo *JobRepository, job *domain.VideoJob) *domain.VideoJob {
	t.Helper()
	if err := repo.Save(job); err != nil {
		t.Fatal(err)
	}
	return job
}

func TestAssignRefusesNonPendingJob(t *testing.T) {
	repo := NewJobRepository(openTestDB(t))
	job := saveTestJob(t, repo, &domain.VideoJob{SourcePath: "/videos/pending/clip.mp4"})

	if err := repo.Assign(job.ID, "acct-a", time.Now()); err != nil {
		t.Fatal(err)
	}

	// The job is assigned now; a second assignment must be refused instead
	// of silently succeeding.
	err := repo.Assign(job.ID, "acct-b", time.Now())
	if !errors.Is(err, domain.ErrJobUnavailable) {
		t.Fatalf("err = %v, want %v", err, domain.ErrJobUnavailable)
	}

	got, err := repo.GetByID(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AccountID != "acct-a" {
		t.Errorf("account = %s, want acct-a untouched", got.AccountID)
	}
}

func TestAssignRefusesUnknownJob(t *testing.T) {
	repo := NewJobRepository(openTestDB(t))

	err := repo.Assign("missing", "acct-a", time.Now())
	if !errors.Is(err, domain.ErrJobUnavailable) {
		t.Fatalf("err = %v, want %v", err, domain.ErrJobUnavailable)
	}
}

func TestCountPostedOnUsesLocalDay(t *testing.T) {
	repo := NewJobRepository(openTestDB(t))

	now := time.Now()
	saveTestJob(t, repo, &domain.VideoJob{
		AccountID:   "acct-a",
		SourcePath:  "/videos/posted/clip.mp4",
		Status:      domain.JobStatusConfirmed,
		CompletedAt: now,
	})
	saveTestJob(t, repo, &domain.VideoJob{
		AccountID:   "acct-a",
		SourcePath:  "/videos/posted/old.mp4",
		Status:      domain.JobStatusConfirmed,
		CompletedAt: now.Add(-48 * time.Hour),
	})

	// The stored timestamp is UTC; the count must still land on the same
	// local day the quota tracking uses.
	count, err := repo.CountPostedOn("acct-a", domain.DayKey(now))
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count for today = %d, want 1", count)
	}

	count, err = repo.CountPostedOn("acct-a", domain.DayKey(now.Add(-48*time.Hour)))
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count for two days ago = %d, want 1", count)
	}
}

func TestReturnToPendingIsASingleWrite(t *testing.T) {
	repo := NewJobRepository(openTestDB(t))
	job := saveTestJob(t, repo, &domain.VideoJob{
		AccountID:    "acct-a",
		SourcePath:   "/videos/pending/clip.mp4",
		Status:       domain.JobStatusFailed,
		AssignedAt:   time.Now(),
		CompletedAt:  time.Now(),
		FailureClass: domain.FailureClassTransient,
		LastError:    "timed out",
	})

	if err := repo.ReturnToPending(job.ID, domain.StageSetCaption, domain.FailureClassAuth, "session rejected"); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetByID(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.JobStatusPending {
		t.Errorf("status = %s, want %s", got.Status, domain.JobStatusPending)
	}
	if got.AccountID != "" {
		t.Errorf("account = %s, want unassigned", got.AccountID)
	}
	if !got.AssignedAt.IsZero() || !got.CompletedAt.IsZero() {
		t.Error("assignment timestamps not cleared")
	}
	if got.LastStage != domain.StageSetCaption || got.FailureClass != domain.FailureClassAuth {
		t.Errorf("failure record = (%s, %s), want (%s, %s)",
			got.LastStage, got.FailureClass, domain.StageSetCaption, domain.FailureClassAuth)
	}
	if got.LastError != "session rejected" {
		t.Errorf("last error = %q, want %q", got.LastError, "session rejected")
	}
}
