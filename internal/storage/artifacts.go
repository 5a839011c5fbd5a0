package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"auto_post_scheduler/internal/domain"
	"auto_post_scheduler/internal/logger"
)

// Manager moves video files between the pending, posted and failed
// locations and owns the durable job claim. The file location is the ground
// truth used to resolve crashes that happen between a file move and the
// matching state write.
type Manager struct {
	pendingDir string
	postedDir  string
	failedDir  string
	owner      string

	jobs   domain.JobRepository
	claims domain.ClaimRepository
}

// NewManager creates a Manager and ensures the storage directories exist.
func NewManager(pendingDir, postedDir, failedDir, owner string, jobs domain.JobRepository, claims domain.ClaimRepository) (*Manager, error) {
	for _, dir := range []string{pendingDir, postedDir, failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
		}
	}

	return &Manager{
		pendingDir: pendingDir,
		postedDir:  postedDir,
		failedDir:  failedDir,
		owner:      owner,
		jobs:       jobs,
		claims:     claims,
	}, nil
}

// PendingDir returns the pending location root.
func (m *Manager) PendingDir() string {
	return m.pendingDir
}

// Claim atomically marks the job in-flight. Returns false when another tick
// or process instance already holds the claim.
func (m *Manager) Claim(job *domain.VideoJob) (bool, error) {
	ok, err := m.claims.Claim(job.ID, m.owner)
	if err != nil {
		return false, fmt.Errorf("claim job %s: %w", job.ID, err)
	}
	return ok, nil
}

// Release drops the claim without finalizing, used when a job returns to
// pending (auth failure) rather than terminating.
func (m *Manager) Release(job *domain.VideoJob) error {
	if err := m.claims.Release(job.ID); err != nil {
		return fmt.Errorf("release claim for job %s: %w", job.ID, err)
	}
	return nil
}

// Finalize moves the job's file to the location matching the terminal
// status, persists the terminal state and releases the claim. The file is
// moved before the state write so a crash in between is resolvable from
// file presence on restart.
func (m *Manager) Finalize(job *domain.VideoJob, status domain.JobStatus, stage domain.Stage, class domain.FailureClass, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("finalize job %s with non-terminal status %s", job.ID, status)
	}

	var targetDir string
	switch status {
	case domain.JobStatusConfirmed:
		targetDir = m.postedDir
	default:
		targetDir = m.failedDir
	}

	size := fileSize(job.SourcePath)
	dest := filepath.Join(targetDir, filepath.Base(job.SourcePath))
	if err := moveFile(job.SourcePath, dest); err != nil {
		return fmt.Errorf("move file for job %s: %w", job.ID, err)
	}

	logger.Event("artifact_moved", map[string]any{
		"job":  job.ID,
		"dest": dest,
		"size": humanize.Bytes(uint64(size)),
	})

	if err := m.jobs.UpdateStatus(job.ID, status, stage, class, errMsg); err != nil {
		return fmt.Errorf("persist terminal state for job %s: %w", job.ID, err)
	}

	if err := m.claims.Release(job.ID); err != nil {
		return fmt.Errorf("release claim for job %s: %w", job.ID, err)
	}

	return nil
}

// Requeue returns a failed job to the pending pool: the file moves back from
// the failed to the pending location, then the job record is reset to
// pending with its failure record cleared. The file moves before the state
// write, same as Finalize, so a crash in between leaves a failed job whose
// file is already pending and a second requeue completes the transition.
func (m *Manager) Requeue(job *domain.VideoJob) error {
	if job.Status != domain.JobStatusFailed {
		return fmt.Errorf("requeue job %s with non-failed status %s", job.ID, job.Status)
	}

	base := filepath.Base(job.SourcePath)
	failedPath := filepath.Join(m.failedDir, base)
	pendingPath := filepath.Join(m.pendingDir, base)

	switch {
	case fileExists(failedPath):
		if err := moveFile(failedPath, pendingPath); err != nil {
			return fmt.Errorf("restore file for job %s: %w", job.ID, err)
		}
	case fileExists(pendingPath):
		// A previous requeue moved the file but crashed before the state
		// write; finish the job half.
	default:
		return fmt.Errorf("requeue job %s: %s missing from failed and pending locations", job.ID, base)
	}

	if err := m.jobs.ReturnToPending(job.ID, "", domain.FailureClassNone, ""); err != nil {
		return fmt.Errorf("reset job %s to pending: %w", job.ID, err)
	}

	logger.Event("job_requeued", map[string]any{"job": job.ID})
	return nil
}

// Reconcile resolves jobs interrupted by a crash. A claim older than the
// timeout is stale; its job's true state is re-derived from where the file
// ended up: posted means the job completed, failed means it terminated, and
// a file still in the pending location means the attempt never finished, so
// the job returns to pending.
func (m *Manager) Reconcile(claimTimeout time.Duration) error {
	stale, err := m.claims.ListStale(time.Now().Add(-claimTimeout))
	if err != nil {
		return fmt.Errorf("list stale claims: %w", err)
	}

	for _, claim := range stale {
		job, err := m.jobs.GetByID(claim.JobID)
		if err != nil {
			return fmt.Errorf("load job %s for reconciliation: %w", claim.JobID, err)
		}
		if job == nil {
			if err := m.claims.Release(claim.JobID); err != nil {
				return err
			}
			continue
		}

		resolved := m.resolveByLocation(job)
		logger.Event("job_reconciled", map[string]any{
			"job":      job.ID,
			"resolved": resolved,
		})

		if err := m.claims.Release(job.ID); err != nil {
			return fmt.Errorf("release stale claim for job %s: %w", job.ID, err)
		}
	}

	return nil
}

// RecoverWorking resolves jobs stranded in a working state, for use at
// startup when nothing can legitimately be in flight. Covers a crash that
// happened after assignment but before the claim was written.
func (m *Manager) RecoverWorking() error {
	working := []domain.JobStatus{
		domain.JobStatusAssigned,
		domain.JobStatusUploading,
		domain.JobStatusCaptionSet,
		domain.JobStatusAudienceSet,
		domain.JobStatusSubmitted,
	}

	for _, status := range working {
		jobs, err := m.jobs.GetByStatus(status, 0)
		if err != nil {
			return fmt.Errorf("list %s jobs for recovery: %w", status, err)
		}
		for _, job := range jobs {
			resolved := m.resolveByLocation(job)
			logger.Event("job_recovered", map[string]any{
				"job":      job.ID,
				"was":      status,
				"resolved": resolved,
			})
			if err := m.claims.Release(job.ID); err != nil {
				return err
			}
		}
	}

	return nil
}

// resolveByLocation applies the file-presence ground truth and returns the
// status the job was resolved to.
func (m *Manager) resolveByLocation(job *domain.VideoJob) domain.JobStatus {
	base := filepath.Base(job.SourcePath)

	if fileExists(filepath.Join(m.postedDir, base)) {
		if !job.Status.Terminal() {
			_ = m.jobs.UpdateStatus(job.ID, domain.JobStatusConfirmed, job.LastStage, domain.FailureClassNone, "")
		}
		return domain.JobStatusConfirmed
	}

	if fileExists(filepath.Join(m.failedDir, base)) {
		if !job.Status.Terminal() {
			_ = m.jobs.UpdateStatus(job.ID, domain.JobStatusFailed, job.LastStage, job.FailureClass, "resolved from failed location after restart")
		}
		return domain.JobStatusFailed
	}

	// File never left the pending location: the attempt was cut short.
	if !job.Status.Terminal() {
		_ = m.jobs.Unassign(job.ID)
	}
	return domain.JobStatusPending
}

func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	// Rename fails across filesystems; fall back to copy+remove.
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	return os.Remove(src)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
