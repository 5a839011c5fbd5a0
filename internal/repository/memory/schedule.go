package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"auto_post_scheduler/internal/domain"
)

// ScheduleRepository is an in-memory implementation of ScheduleRepository
type ScheduleRepository struct {
	mu       sync.RWMutex
	slots    map[string]*domain.ScheduleSlot
	consumed map[string]bool // slotID + "/" + day
}

// NewScheduleRepository creates a new in-memory schedule repository
func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{
		slots:    make(map[string]*domain.ScheduleSlot),
		consumed: make(map[string]bool),
	}
}

// GetAll returns all slots ordered by account and time of day
func (r *ScheduleRepository) GetAll() ([]*domain.ScheduleSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var slots []*domain.ScheduleSlot
	for _, slot := range r.slots {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].AccountID != slots[j].AccountID {
			return slots[i].AccountID < slots[j].AccountID
		}
		return slots[i].TimeOfDay < slots[j].TimeOfDay
	})
	return slots, nil
}

// GetByAccount returns all slots for an account ordered by time of day
func (r *ScheduleRepository) GetByAccount(accountID string) ([]*domain.ScheduleSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var slots []*domain.ScheduleSlot
	for _, slot := range r.slots {
		if slot.AccountID == accountID {
			slots = append(slots, slot)
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].TimeOfDay < slots[j].TimeOfDay
	})
	return slots, nil
}

// IsConsumed reports whether the slot has been consumed on the given day
func (r *ScheduleRepository) IsConsumed(slotID string, day string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.consumed[slotID+"/"+day], nil
}

// MarkConsumed records that the slot was consumed on the given day
func (r *ScheduleRepository) MarkConsumed(slotID string, day string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.consumed[slotID+"/"+day] = true
	return nil
}

// Save creates a slot
func (r *ScheduleRepository) Save(slot *domain.ScheduleSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slot.ID == "" {
		slot.ID = uuid.NewString()
		slot.CreatedAt = time.Now()
	}

	r.slots[slot.ID] = slot
	return nil
}

// Delete removes a slot
func (r *ScheduleRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.slots, id)
	return nil
}
