package sqlite

import (
	"database/sql"
	"time"

	"auto_post_scheduler/internal/domain"
)

// ClaimRepository is a SQLite implementation of domain.ClaimRepository.
// The primary key on job_id makes Claim an atomic insert-or-reject.
type ClaimRepository struct {
	db *sql.DB
}

// NewClaimRepository creates a new ClaimRepository backed by SQLite.
func NewClaimRepository(db *sql.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// Claim atomically marks the job in-flight. Returns false if already claimed.
func (r *ClaimRepository) Claim(jobID string, owner string) (bool, error) {
	res, err := r.db.Exec(`INSERT INTO job_claims (job_id, owner, claimed_at) VALUES (?, ?, ?)
		ON CONFLICT(job_id) DO NOTHING`, jobID, owner, time.Now().UTC())
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Release removes the claim for the job.
func (r *ClaimRepository) Release(jobID string) error {
	_, err := r.db.Exec(`DELETE FROM job_claims WHERE job_id = ?`, jobID)
	return err
}

// ListStale returns claims older than the cutoff.
func (r *ClaimRepository) ListStale(cutoff time.Time) ([]*domain.JobClaim, error) {
	rows, err := r.db.Query(`SELECT job_id, owner, claimed_at FROM job_claims WHERE claimed_at < ?`,
		cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*domain.JobClaim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

func scanClaim(rows *sql.Rows) (*domain.JobClaim, error) {
	var claim domain.JobClaim
	if err := rows.Scan(&claim.JobID, &claim.Owner, &claim.ClaimedAt); err != nil {
		return nil, err
	}
	return &claim, nil
}
