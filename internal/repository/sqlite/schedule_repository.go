package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"auto_post_scheduler/internal/domain"
)

// ScheduleRepository is a SQLite implementation of domain.ScheduleRepository.
type ScheduleRepository struct {
	db *sql.DB
}

// NewScheduleRepository creates a new ScheduleRepository backed by SQLite.
func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// GetAll returns all slots ordered by account and time of day.
func (r *ScheduleRepository) GetAll() ([]*domain.ScheduleSlot, error) {
	rows, err := r.db.Query(`SELECT id, account_id, time_of_day, created_at
		FROM schedule_slots ORDER BY account_id, time_of_day ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

// GetByAccount returns all slots for an account ordered by time of day.
func (r *ScheduleRepository) GetByAccount(accountID string) ([]*domain.ScheduleSlot, error) {
	rows, err := r.db.Query(`SELECT id, account_id, time_of_day, created_at
		FROM schedule_slots WHERE account_id = ? ORDER BY time_of_day ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

// IsConsumed reports whether the slot has been consumed on the given day.
func (r *ScheduleRepository) IsConsumed(slotID string, day string) (bool, error) {
	row := r.db.QueryRow(`SELECT COUNT(*) FROM slot_consumptions WHERE slot_id = ? AND day = ?`, slotID, day)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkConsumed records that the slot was consumed on the given day.
func (r *ScheduleRepository) MarkConsumed(slotID string, day string) error {
	_, err := r.db.Exec(`INSERT INTO slot_consumptions (slot_id, day, consumed_at) VALUES (?, ?, ?)
		ON CONFLICT(slot_id, day) DO NOTHING`, slotID, day, time.Now().UTC())
	return err
}

// Save inserts a slot.
func (r *ScheduleRepository) Save(slot *domain.ScheduleSlot) error {
	now := time.Now().UTC()
	if slot.ID == "" {
		slot.ID = uuid.NewString()
		slot.CreatedAt = now
	}

	_, err := r.db.Exec(`INSERT INTO schedule_slots (id, account_id, time_of_day, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, time_of_day) DO NOTHING`,
		slot.ID, slot.AccountID, slot.TimeOfDay, slot.CreatedAt.UTC())
	return err
}

// Delete removes a slot.
func (r *ScheduleRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM schedule_slots WHERE id = ?`, id)
	return err
}

func collectSlots(rows *sql.Rows) ([]*domain.ScheduleSlot, error) {
	var slots []*domain.ScheduleSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func scanSlot(scanner interface {
	Scan(dest ...any) error
}) (*domain.ScheduleSlot, error) {
	var slot domain.ScheduleSlot
	if err := scanner.Scan(&slot.ID, &slot.AccountID, &slot.TimeOfDay, &slot.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &slot, nil
}
