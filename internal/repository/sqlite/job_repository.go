package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"auto_post_scheduler/internal/domain"
)

// JobRepository is a SQLite implementation of domain.JobRepository.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository backed by SQLite.
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, account_id, source_path, caption, audience, status, attempts,
	last_stage, last_error, failure_class, created_at, assigned_at, completed_at, updated_at`

// GetByID returns a job by ID.
func (r *JobRepository) GetByID(id string) (*domain.VideoJob, error) {
	row := r.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// NextPending returns the oldest pending job for the account, falling back
// to the oldest unassigned pending job.
func (r *JobRepository) NextPending(accountID string) (*domain.VideoJob, error) {
	row := r.db.QueryRow(`SELECT `+jobColumns+` FROM jobs
		WHERE status = ? AND account_id = ?
		ORDER BY created_at ASC LIMIT 1`, domain.JobStatusPending, accountID)
	job, err := scanJob(row)
	if err != nil || job != nil {
		return job, err
	}

	row = r.db.QueryRow(`SELECT `+jobColumns+` FROM jobs
		WHERE status = ? AND (account_id IS NULL OR account_id = '')
		ORDER BY created_at ASC LIMIT 1`, domain.JobStatusPending)
	return scanJob(row)
}

// GetByStatus returns jobs with the given status ordered by creation time.
// A non-positive limit returns all matches.
func (r *JobRepository) GetByStatus(status domain.JobStatus, limit int) ([]*domain.VideoJob, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(`SELECT `+jobColumns+` FROM jobs
		WHERE status = ? ORDER BY created_at ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.VideoJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountPostedOn returns the number of jobs confirmed for the account on the
// given day (day is a "2006-01-02" key in local time, matching
// domain.DayKey; completed_at is stored in UTC).
func (r *JobRepository) CountPostedOn(accountID string, day string) (int, error) {
	row := r.db.QueryRow(`SELECT COUNT(*) FROM jobs
		WHERE account_id = ? AND status = ? AND date(completed_at, 'localtime') = ?`,
		accountID, domain.JobStatusConfirmed, day)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Assign marks a pending job assigned to an account. Returns
// domain.ErrJobUnavailable if the job was not pending anymore.
func (r *JobRepository) Assign(id string, accountID string, assignedAt time.Time) error {
	res, err := r.db.Exec(`UPDATE jobs SET account_id = ?, status = ?, assigned_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		accountID, domain.JobStatusAssigned, assignedAt.UTC(), time.Now().UTC(),
		id, domain.JobStatusPending)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrJobUnavailable
	}
	return nil
}

// Unassign returns a job to pending with no account.
func (r *JobRepository) Unassign(id string) error {
	_, err := r.db.Exec(`UPDATE jobs SET account_id = NULL, status = ?, assigned_at = NULL,
		completed_at = NULL, updated_at = ? WHERE id = ?`,
		domain.JobStatusPending, time.Now().UTC(), id)
	return err
}

// ReturnToPending puts the job back in the pending pool in a single write,
// replacing its failure record.
func (r *JobRepository) ReturnToPending(id string, stage domain.Stage, class domain.FailureClass, errMsg string) error {
	_, err := r.db.Exec(`UPDATE jobs SET status = ?, account_id = NULL, assigned_at = NULL,
		completed_at = NULL, last_stage = ?, failure_class = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		domain.JobStatusPending, nullableString(string(stage)), nullableString(string(class)),
		errMsg, time.Now().UTC(), id)
	return err
}

// UpdateStatus updates status, last stage and error details. Terminal states
// also record the completion time.
func (r *JobRepository) UpdateStatus(id string, status domain.JobStatus, stage domain.Stage, class domain.FailureClass, errMsg string) error {
	now := time.Now().UTC()
	if status.Terminal() {
		_, err := r.db.Exec(`UPDATE jobs SET status = ?, last_stage = ?, failure_class = ?, last_error = ?,
			completed_at = ?, updated_at = ? WHERE id = ?`,
			status, nullableString(string(stage)), nullableString(string(class)), errMsg, now, now, id)
		return err
	}
	_, err := r.db.Exec(`UPDATE jobs SET status = ?, last_stage = ?, failure_class = ?, last_error = ?,
		updated_at = ? WHERE id = ?`,
		status, nullableString(string(stage)), nullableString(string(class)), errMsg, now, id)
	return err
}

// IncrementAttempts bumps the whole-job attempt counter.
func (r *JobRepository) IncrementAttempts(id string) error {
	_, err := r.db.Exec(`UPDATE jobs SET attempts = attempts + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	return err
}

// Save inserts or updates a job.
func (r *JobRepository) Save(job *domain.VideoJob) error {
	now := time.Now().UTC()
	if job.ID == "" {
		job.ID = uuid.NewString()
		job.CreatedAt = now
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	job.UpdatedAt = now

	_, err := r.db.Exec(`INSERT INTO jobs
		(id, account_id, source_path, caption, audience, status, attempts, last_stage, last_error,
			failure_class, created_at, assigned_at, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			source_path = excluded.source_path,
			caption = excluded.caption,
			audience = excluded.audience,
			status = excluded.status,
			attempts = excluded.attempts,
			last_stage = excluded.last_stage,
			last_error = excluded.last_error,
			failure_class = excluded.failure_class,
			assigned_at = excluded.assigned_at,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`,
		job.ID, nullableString(job.AccountID), job.SourcePath, job.Caption, job.Audience,
		string(job.Status), job.Attempts, nullableString(string(job.LastStage)), job.LastError,
		nullableString(string(job.FailureClass)), job.CreatedAt.UTC(), nullableTime(job.AssignedAt),
		nullableTime(job.CompletedAt), job.UpdatedAt.UTC())
	return err
}

func scanJob(scanner interface {
	Scan(dest ...any) error
}) (*domain.VideoJob, error) {
	var (
		job          domain.VideoJob
		accountID    sql.NullString
		caption      sql.NullString
		audience     sql.NullString
		lastStage    sql.NullString
		lastError    sql.NullString
		failureClass sql.NullString
		assignedAt   sql.NullTime
		completedAt  sql.NullTime
	)

	if err := scanner.Scan(
		&job.ID,
		&accountID,
		&job.SourcePath,
		&caption,
		&audience,
		&job.Status,
		&job.Attempts,
		&lastStage,
		&lastError,
		&failureClass,
		&job.CreatedAt,
		&assignedAt,
		&completedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if accountID.Valid {
		job.AccountID = accountID.String
	}
	if caption.Valid {
		job.Caption = caption.String
	}
	if audience.Valid {
		job.Audience = audience.String
	}
	if lastStage.Valid {
		job.LastStage = domain.Stage(lastStage.String)
	}
	if lastError.Valid {
		job.LastError = lastError.String
	}
	if failureClass.Valid {
		job.FailureClass = domain.FailureClass(failureClass.String)
	}
	if assignedAt.Valid {
		job.AssignedAt = assignedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = completedAt.Time
	}

	return &job, nil
}
