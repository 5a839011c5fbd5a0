package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"auto_post_scheduler/internal/domain"
)

// JobRepository is an in-memory implementation of JobRepository
type JobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.VideoJob
}

// NewJobRepository creates a new in-memory job repository
func NewJobRepository() *JobRepository {
	return &JobRepository{
		jobs: make(map[string]*domain.VideoJob),
	}
}

// GetByID returns a job by ID
func (r *JobRepository) GetByID(id string) (*domain.VideoJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.jobs[id], nil
}

// NextPending returns the oldest pending job for the account, falling back
// to the oldest unassigned pending job
func (r *JobRepository) NextPending(accountID string) (*domain.VideoJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if job := r.oldestPending(func(j *domain.VideoJob) bool { return j.AccountID == accountID }); job != nil {
		return job, nil
	}
	return r.oldestPending(func(j *domain.VideoJob) bool { return j.AccountID == "" }), nil
}

func (r *JobRepository) oldestPending(match func(*domain.VideoJob) bool) *domain.VideoJob {
	var oldest *domain.VideoJob
	for _, job := range r.jobs {
		if job.Status != domain.JobStatusPending || !match(job) {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	return oldest
}

// GetByStatus returns jobs with the given status ordered by creation time
func (r *JobRepository) GetByStatus(status domain.JobStatus, limit int) ([]*domain.VideoJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var jobs []*domain.VideoJob
	for _, job := range r.jobs {
		if job.Status == status {
			jobs = append(jobs, job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// CountPostedOn returns the number of jobs confirmed for the account on the
// given day
func (r *JobRepository) CountPostedOn(accountID string, day string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, job := range r.jobs {
		if job.AccountID == accountID && job.Status == domain.JobStatusConfirmed &&
			domain.DayKey(job.CompletedAt) == day {
			count++
		}
	}
	return count, nil
}

// Assign marks a pending job assigned to an account
func (r *JobRepository) Assign(id string, accountID string, assignedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[id]
	if !exists || job.Status != domain.JobStatusPending {
		return domain.ErrJobUnavailable
	}

	job.AccountID = accountID
	job.Status = domain.JobStatusAssigned
	job.AssignedAt = assignedAt
	job.UpdatedAt = time.Now()
	return nil
}

// Unassign returns a job to pending with no account
func (r *JobRepository) Unassign(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[id]
	if !exists {
		return nil
	}

	job.AccountID = ""
	job.Status = domain.JobStatusPending
	job.AssignedAt = time.Time{}
	job.CompletedAt = time.Time{}
	job.UpdatedAt = time.Now()
	return nil
}

// ReturnToPending puts the job back in the pending pool in a single write,
// replacing its failure record
func (r *JobRepository) ReturnToPending(id string, stage domain.Stage, class domain.FailureClass, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[id]
	if !exists {
		return nil
	}

	job.Status = domain.JobStatusPending
	job.AccountID = ""
	job.AssignedAt = time.Time{}
	job.CompletedAt = time.Time{}
	job.LastStage = stage
	job.FailureClass = class
	job.LastError = errMsg
	job.UpdatedAt = time.Now()
	return nil
}

// UpdateStatus updates status, last stage and error details
func (r *JobRepository) UpdateStatus(id string, status domain.JobStatus, stage domain.Stage, class domain.FailureClass, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[id]
	if !exists {
		return nil
	}

	job.Status = status
	job.LastStage = stage
	job.FailureClass = class
	job.LastError = errMsg
	if status.Terminal() {
		job.CompletedAt = time.Now()
	}
	job.UpdatedAt = time.Now()
	return nil
}

// IncrementAttempts bumps the whole-job attempt counter
func (r *JobRepository) IncrementAttempts(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[id]
	if !exists {
		return nil
	}

	job.Attempts++
	job.UpdatedAt = time.Now()
	return nil
}

// Save creates or updates a job
func (r *JobRepository) Save(job *domain.VideoJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
		job.CreatedAt = time.Now()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	job.UpdatedAt = time.Now()

	r.jobs[job.ID] = job
	return nil
}
