package domain

import (
	"fmt"
	"time"
)

// ScheduleSlot is a time-of-day at which an account is eligible to publish
// one video. Slots are immutable once created.
type ScheduleSlot struct {
	// ID is the unique identifier for the slot
	ID string

	// AccountID is the account the slot belongs to
	AccountID string

	// TimeOfDay is the local wall-clock time in "15:04" format
	TimeOfDay string

	// CreatedAt is the timestamp when the slot was created
	CreatedAt time.Time
}

// DueAt reports whether the slot's time-of-day has passed at the given
// moment, interpreted in that moment's location.
func (s *ScheduleSlot) DueAt(now time.Time) (bool, error) {
	t, err := time.ParseInLocation("15:04", s.TimeOfDay, now.Location())
	if err != nil {
		return false, fmt.Errorf("invalid slot time %q: %w", s.TimeOfDay, err)
	}
	slotTime := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	return !slotTime.After(now), nil
}

// DayKey returns the consumption key for a calendar day.
func DayKey(now time.Time) string {
	return now.Format("2006-01-02")
}

// ScheduleRepository defines the interface for schedule slot operations.
// Consumption markers are daily: a slot consumed on one day is due again
// the next.
type ScheduleRepository interface {
	// GetAll returns all slots ordered by account and time of day
	GetAll() ([]*ScheduleSlot, error)

	// GetByAccount returns all slots for an account ordered by time of day
	GetByAccount(accountID string) ([]*ScheduleSlot, error)

	// IsConsumed reports whether the slot has been consumed on the given day
	IsConsumed(slotID string, day string) (bool, error)

	// MarkConsumed records that the slot was consumed on the given day.
	// Marking an already consumed slot is a no-op.
	MarkConsumed(slotID string, day string) error

	// Save creates a slot
	Save(slot *ScheduleSlot) error

	// Delete removes a slot
	Delete(id string) error
}
