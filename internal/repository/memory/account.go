package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"auto_post_scheduler/internal/domain"
)

// AccountRepository is an in-memory implementation of AccountRepository
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

// NewAccountRepository creates a new in-memory account repository
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

// GetAll returns all accounts
func (r *AccountRepository) GetAll() ([]*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var accounts []*domain.Account
	for _, account := range r.accounts {
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// GetAllActive returns all active accounts
func (r *AccountRepository) GetAllActive() ([]*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var accounts []*domain.Account
	for _, account := range r.accounts {
		if account.IsActive {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

// GetByID returns an account by its ID
func (r *AccountRepository) GetByID(id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.accounts[id], nil
}

// GetByHandle returns an account by its handle
func (r *AccountRepository) GetByHandle(handle string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if account.Handle == handle {
			return account, nil
		}
	}
	return nil, nil
}

// SetNeedsReauth sets or clears the needs-reauth flag
func (r *AccountRepository) SetNeedsReauth(id string, needsReauth bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return nil
	}

	account.NeedsReauth = needsReauth
	account.UpdatedAt = time.Now()
	return nil
}

// UpdateCookieSet replaces the stored authentication token set
func (r *AccountRepository) UpdateCookieSet(id string, cookieSet []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return nil
	}

	account.CookieSet = cookieSet
	account.UpdatedAt = time.Now()
	return nil
}

// Save creates or updates an account
func (r *AccountRepository) Save(account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.NewString()
		account.CreatedAt = time.Now()
	}
	account.UpdatedAt = time.Now()

	r.accounts[account.ID] = account
	return nil
}

// Delete removes an account
func (r *AccountRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.accounts, id)
	return nil
}
