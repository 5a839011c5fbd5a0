package memory

import (
	"sync"
	"time"

	"auto_post_scheduler/internal/domain"
)

// ClaimRepository is an in-memory implementation of ClaimRepository
type ClaimRepository struct {
	mu     sync.Mutex
	claims map[string]*domain.JobClaim
}

// NewClaimRepository creates a new in-memory claim repository
func NewClaimRepository() *ClaimRepository {
	return &ClaimRepository{
		claims: make(map[string]*domain.JobClaim),
	}
}

// Claim atomically marks the job in-flight. Returns false if already claimed.
func (r *ClaimRepository) Claim(jobID string, owner string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.claims[jobID]; exists {
		return false, nil
	}

	r.claims[jobID] = &domain.JobClaim{
		JobID:     jobID,
		Owner:     owner,
		ClaimedAt: time.Now(),
	}
	return true, nil
}

// Release removes the claim for the job
func (r *ClaimRepository) Release(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.claims, jobID)
	return nil
}

// ListStale returns claims older than the cutoff
func (r *ClaimRepository) ListStale(cutoff time.Time) ([]*domain.JobClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []*domain.JobClaim
	for _, claim := range r.claims {
		if claim.ClaimedAt.Before(cutoff) {
			stale = append(stale, claim)
		}
	}
	return stale, nil
}
