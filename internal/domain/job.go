package domain

import (
	"errors"
	"time"
)

// ErrJobUnavailable is returned by Assign when the job is no longer pending,
// typically because another actor changed its status between match and
// dispatch.
var ErrJobUnavailable = errors.New("job is no longer pending")

// JobStatus represents the processing status of a video job
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be matched to a slot
	JobStatusPending JobStatus = "pending"

	// JobStatusAssigned indicates the job has been matched to an account and
	// claimed by a scheduler tick
	JobStatusAssigned JobStatus = "assigned"

	// JobStatusUploading indicates the file has been attached and accepted by
	// the platform's composer
	JobStatusUploading JobStatus = "uploading"

	// JobStatusCaptionSet indicates the caption text has been entered
	JobStatusCaptionSet JobStatus = "caption_set"

	// JobStatusAudienceSet indicates the audience setting has been applied
	JobStatusAudienceSet JobStatus = "audience_set"

	// JobStatusSubmitted indicates the post button has been clicked
	JobStatusSubmitted JobStatus = "submitted"

	// JobStatusConfirmed indicates the platform confirmed the post (terminal)
	JobStatusConfirmed JobStatus = "confirmed"

	// JobStatusFailed indicates the job failed terminally
	JobStatusFailed JobStatus = "failed"
)

// Terminal reports whether the status is a terminal state. A rejected
// session parks the account, not the job: the job goes back to pending with
// the auth failure recorded, so needs-reauth is an account state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusConfirmed, JobStatusFailed:
		return true
	}
	return false
}

// Stage is one discrete step of the publish workflow
type Stage string

const (
	// StageUpload navigates to the composer, attaches the source file and
	// waits for platform-side processing to finish
	StageUpload Stage = "upload"

	// StageSetCaption enters the caption text
	StageSetCaption Stage = "set_caption"

	// StageSetAudience applies the audience setting
	StageSetAudience Stage = "set_audience"

	// StageSubmit clicks the post button
	StageSubmit Stage = "submit"

	// StageConfirm verifies the platform's success signal
	StageConfirm Stage = "confirm"
)

// stageTransitions maps each non-terminal working status to the stage that
// must run next and the status reached on stage success.
var stageTransitions = map[JobStatus]struct {
	Stage Stage
	Next  JobStatus
}{
	JobStatusAssigned:    {StageUpload, JobStatusUploading},
	JobStatusUploading:   {StageSetCaption, JobStatusCaptionSet},
	JobStatusCaptionSet:  {StageSetAudience, JobStatusAudienceSet},
	JobStatusAudienceSet: {StageSubmit, JobStatusSubmitted},
	JobStatusSubmitted:   {StageConfirm, JobStatusConfirmed},
}

// NextStage returns the stage to execute for the given status and the status
// reached when it succeeds. ok is false for pending and terminal states.
func NextStage(status JobStatus) (stage Stage, next JobStatus, ok bool) {
	t, ok := stageTransitions[status]
	return t.Stage, t.Next, ok
}

// StageOutcome is the result of one stage execution
type StageOutcome string

const (
	// OutcomeSuccess means the stage completed and the job may advance
	OutcomeSuccess StageOutcome = "success"

	// OutcomeTransient means the stage failed in a way expected to succeed on
	// retry (timeout, network hiccup, intermittent element not found)
	OutcomeTransient StageOutcome = "transient_failure"

	// OutcomeAuth means the session was rejected or a login redirect was
	// detected; the failure is account-level, not job-level
	OutcomeAuth StageOutcome = "auth_failure"

	// OutcomePermanent means the platform explicitly rejected the content;
	// retrying will not change the result
	OutcomePermanent StageOutcome = "permanent_failure"
)

// FailureClass records why a job terminated, for operator triage
type FailureClass string

const (
	FailureClassNone      FailureClass = ""
	FailureClassTransient FailureClass = "transient"
	FailureClassAuth      FailureClass = "auth"
	FailureClassPermanent FailureClass = "permanent"
)

// VideoJob represents one video to be published through an account's slot
type VideoJob struct {
	// ID is the unique identifier for the job
	ID string

	// AccountID is the assigned account; empty until the matcher assigns one
	AccountID string

	// SourcePath is the path of the video file in the pending location
	SourcePath string

	// Caption is the caption text to post with the video
	Caption string

	// Audience is the audience setting applied during publish
	Audience string

	// Status is the current state-machine status
	Status JobStatus

	// Attempts counts whole-job processing attempts, not per-stage retries
	Attempts int

	// LastStage is the stage that last ran, recorded for terminal triage
	LastStage Stage

	// LastError contains error details from the most recent failure
	LastError string

	// FailureClass is the classification of the most recent failure
	FailureClass FailureClass

	// CreatedAt is the timestamp when the job was created
	CreatedAt time.Time

	// AssignedAt is the timestamp when the matcher assigned the job
	AssignedAt time.Time

	// CompletedAt is the timestamp when the job reached a terminal state
	CompletedAt time.Time

	// UpdatedAt is the timestamp when the job was last updated
	UpdatedAt time.Time
}

// JobRepository defines the interface for video job data operations
type JobRepository interface {
	// GetByID returns a job by ID
	GetByID(id string) (*VideoJob, error)

	// NextPending returns the oldest pending job for the account, or the
	// oldest unassigned pending job if none is assigned to it. Returns nil
	// when the account has nothing to post.
	NextPending(accountID string) (*VideoJob, error)

	// GetByStatus returns jobs with the given status ordered by creation time
	GetByStatus(status JobStatus, limit int) ([]*VideoJob, error)

	// CountPostedOn returns the number of jobs confirmed for the account on
	// the given day
	CountPostedOn(accountID string, day string) (int, error)

	// Assign marks a pending job assigned to an account. Returns
	// ErrJobUnavailable when the job is not pending anymore.
	Assign(id string, accountID string, assignedAt time.Time) error

	// Unassign returns a job to pending with no account, clearing the
	// assignment and completion timestamps of an attempt that did not count
	Unassign(id string) error

	// ReturnToPending is a single atomic write that puts the job back in the
	// pending pool: status pending, no account, assignment and completion
	// timestamps cleared, with the given failure record (or a cleared one)
	ReturnToPending(id string, stage Stage, class FailureClass, errMsg string) error

	// UpdateStatus updates status, last stage and error details
	UpdateStatus(id string, status JobStatus, stage Stage, class FailureClass, errMsg string) error

	// IncrementAttempts bumps the whole-job attempt counter
	IncrementAttempts(id string) error

	// Save creates or updates a job
	Save(job *VideoJob) error
}

// JobClaim is an exclusive, durable marker preventing duplicate processing
// of a job across scheduler ticks and process instances
type JobClaim struct {
	JobID     string
	Owner     string
	ClaimedAt time.Time
}

// ClaimRepository defines the interface for job claim operations
type ClaimRepository interface {
	// Claim atomically marks the job in-flight. Returns false if the job is
	// already claimed.
	Claim(jobID string, owner string) (bool, error)

	// Release removes the claim for the job
	Release(jobID string) error

	// ListStale returns claims older than the cutoff, for crash recovery
	ListStale(cutoff time.Time) ([]*JobClaim, error)
}
