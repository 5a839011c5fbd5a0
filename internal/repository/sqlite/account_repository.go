package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"auto_post_scheduler/internal/domain"
)

// AccountRepository is a SQLite implementation of domain.AccountRepository.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new AccountRepository backed by SQLite.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, handle, cookie_set, daily_quota, is_active, needs_reauth, created_at, updated_at`

// GetAll returns all accounts regardless of status.
func (r *AccountRepository) GetAll() ([]*domain.Account, error) {
	rows, err := r.db.Query(`SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

// GetAllActive returns all active accounts.
func (r *AccountRepository) GetAllActive() ([]*domain.Account, error) {
	rows, err := r.db.Query(`SELECT ` + accountColumns + ` FROM accounts WHERE is_active = 1 ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

// GetByID returns an account by ID.
func (r *AccountRepository) GetByID(id string) (*domain.Account, error) {
	row := r.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// GetByHandle returns an account by handle.
func (r *AccountRepository) GetByHandle(handle string) (*domain.Account, error) {
	row := r.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE handle = ?`, handle)
	return scanAccount(row)
}

// SetNeedsReauth sets or clears the needs-reauth flag.
func (r *AccountRepository) SetNeedsReauth(id string, needsReauth bool) error {
	_, err := r.db.Exec(`UPDATE accounts SET needs_reauth = ?, updated_at = ? WHERE id = ?`,
		boolToInt(needsReauth), time.Now().UTC(), id)
	return err
}

// UpdateCookieSet replaces the stored authentication token set.
func (r *AccountRepository) UpdateCookieSet(id string, cookieSet []byte) error {
	_, err := r.db.Exec(`UPDATE accounts SET cookie_set = ?, updated_at = ? WHERE id = ?`,
		cookieSet, time.Now().UTC(), id)
	return err
}

// Save inserts or updates an account.
func (r *AccountRepository) Save(account *domain.Account) error {
	now := time.Now().UTC()
	if account.ID == "" {
		account.ID = uuid.NewString()
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err := r.db.Exec(`INSERT INTO accounts
		(id, handle, cookie_set, daily_quota, is_active, needs_reauth, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			handle = excluded.handle,
			cookie_set = excluded.cookie_set,
			daily_quota = excluded.daily_quota,
			is_active = excluded.is_active,
			needs_reauth = excluded.needs_reauth,
			updated_at = excluded.updated_at`,
		account.ID, account.Handle, account.CookieSet, account.DailyQuota,
		boolToInt(account.IsActive), boolToInt(account.NeedsReauth),
		account.CreatedAt.UTC(), account.UpdatedAt.UTC())
	return err
}

// Delete removes an account.
func (r *AccountRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	return err
}

func collectAccounts(rows *sql.Rows) ([]*domain.Account, error) {
	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func scanAccount(scanner interface {
	Scan(dest ...any) error
}) (*domain.Account, error) {
	var (
		account     domain.Account
		cookieSet   []byte
		isActive    int
		needsReauth int
	)

	if err := scanner.Scan(
		&account.ID,
		&account.Handle,
		&cookieSet,
		&account.DailyQuota,
		&isActive,
		&needsReauth,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	account.CookieSet = cookieSet
	account.IsActive = isActive == 1
	account.NeedsReauth = needsReauth == 1
	return &account, nil
}
