package repository

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// storedRecord is the serialized shape of a check-in in the Redis and Badger
// tiers. Anything that fails to decode or validate is treated as corrupt.
type storedRecord struct {
	UserID           string    `json:"user_id" validate:"required"`
	Date             string    `json:"date" validate:"required,datetime=2006-01-02"`
	TargetCigarettes int       `json:"target_cigarettes" validate:"gte=0"`
	ActualCigarettes int       `json:"actual_cigarettes" validate:"gte=0"`
	Notes            string    `json:"notes" validate:"max=1000"`
	Origin           string    `json:"origin" validate:"oneof=local remote"`
	State            string    `json:"state" validate:"oneof=draft committed"`
	Version          int       `json:"version" validate:"gte=0"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func encodeRecord(r domain.CheckinRecord) ([]byte, error) {
	return json.Marshal(newStoredRecord(r))
}

func newStoredRecord(r domain.CheckinRecord) storedRecord {
	return storedRecord{
		UserID:           r.UserID,
		Date:             r.Date.String(),
		TargetCigarettes: r.TargetCigarettes,
		ActualCigarettes: r.ActualCigarettes,
		Notes:            r.Notes,
		Origin:           string(r.Origin),
		State:            string(r.State),
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// decodeRecord returns domain.ErrCorruptRecord for anything unreadable.
func decodeRecord(data []byte) (domain.CheckinRecord, error) {
	var s storedRecord
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.CheckinRecord{}, fmt.Errorf("%w: %v", domain.ErrCorruptRecord, err)
	}
	return s.toDomain()
}

func (s storedRecord) toDomain() (domain.CheckinRecord, error) {
	if err := validate.Struct(s); err != nil {
		return domain.CheckinRecord{}, fmt.Errorf("%w: %v", domain.ErrCorruptRecord, err)
	}
	date, err := domain.ParseCalendarDate(s.Date)
	if err != nil {
		return domain.CheckinRecord{}, fmt.Errorf("%w: %v", domain.ErrCorruptRecord, err)
	}

	return domain.CheckinRecord{
		UserID:           s.UserID,
		Date:             date,
		TargetCigarettes: s.TargetCigarettes,
		ActualCigarettes: s.ActualCigarettes,
		Notes:            s.Notes,
		Origin:           domain.Origin(s.Origin),
		State:            domain.CheckinState(s.State),
		Version:          s.Version,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}, nil
}

// dropCorrupt logs and counts one discarded record.
func dropCorrupt(store, key string, err error) {
	corruptDroppedTotal.WithLabelValues(store).Inc()
	log.Printf("[%s] Dropping corrupt record %s: %v", store, key, err)
}
