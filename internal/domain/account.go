package domain

import "time"

// Account represents a social account that videos are published to
type Account struct {
	// ID is the unique identifier for the account
	ID string

	// Handle is the human-readable account handle (for logs and the API)
	Handle string

	// CookieSet is the captured authentication token set for the account,
	// stored as an opaque JSON blob and injected into each browser session
	CookieSet []byte

	// DailyQuota is the maximum number of jobs that may be posted per day.
	// Zero means unlimited.
	DailyQuota int

	// IsActive indicates if the account participates in scheduling
	IsActive bool

	// NeedsReauth is set when a session is rejected by the platform; the
	// account is skipped by the matcher until the flag is cleared
	NeedsReauth bool

	// CreatedAt is the timestamp when the account was created
	CreatedAt time.Time

	// UpdatedAt is the timestamp when the account was last updated
	UpdatedAt time.Time
}

// Schedulable reports whether the matcher may dispatch jobs for the account.
func (a *Account) Schedulable() bool {
	return a.IsActive && !a.NeedsReauth
}

// AccountRepository defines the interface for account data operations
type AccountRepository interface {
	// GetAll returns all accounts
	GetAll() ([]*Account, error)

	// GetAllActive returns all active accounts
	GetAllActive() ([]*Account, error)

	// GetByID returns an account by its ID
	GetByID(id string) (*Account, error)

	// GetByHandle returns an account by its handle
	GetByHandle(handle string) (*Account, error)

	// SetNeedsReauth sets or clears the needs-reauth flag
	SetNeedsReauth(id string, needsReauth bool) error

	// UpdateCookieSet replaces the stored authentication token set
	UpdateCookieSet(id string, cookieSet []byte) error

	// Save creates or updates an account
	Save(account *Account) error

	// Delete removes an account
	Delete(id string) error
}
