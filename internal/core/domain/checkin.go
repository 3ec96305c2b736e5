package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrCheckinNotFound   = errors.New("checkin not found")
	ErrCheckinConflict   = errors.New("checkin version conflict")
	ErrNegativeCount     = errors.New("cigarette count cannot be negative")
	ErrCorruptRecord     = errors.New("corrupt checkin record")
	ErrRemoteUnavailable = errors.New("remote checkin store unavailable")
	ErrNotesTooLong      = errors.New("notes are too long (max 1000 chars)")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrFutureDate        = errors.New("cannot check in for a future date")
)

const MaxNotesLen = 1000

type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

type CheckinState string

const (
	StateDraft     CheckinState = "draft"
	StateCommitted CheckinState = "committed"
)

type CheckinRecord struct {
	UserID           string       `json:"user_id" db:"user_id"`
	Date             CalendarDate `json:"date" db:"checkin_date"`
	TargetCigarettes int          `json:"target_cigarettes" db:"target_cigarettes"`
	ActualCigarettes int          `json:"actual_cigarettes" db:"actual_cigarettes"`
	Notes            string       `json:"notes" db:"notes"`
	Origin           Origin       `json:"origin" db:"origin"`
	State            CheckinState `json:"state" db:"state"`

	Version   int       `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewDraftCheckin is the absent -> draft transition.
func NewDraftCheckin(userID string, date CalendarDate, target, actual int, notes string) (*CheckinRecord, error) {
	now := time.Now().UTC()
	r := &CheckinRecord{
		UserID:           userID,
		Date:             date,
		TargetCigarettes: target,
		ActualCigarettes: actual,
		Notes:            strings.TrimSpace(notes),
		Origin:           OriginLocal,
		State:            StateDraft,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Edit updates the user input. A committed record goes back to draft until re-saved.
func (r *CheckinRecord) Edit(actual int, notes string) error {
	if actual < 0 {
		return ErrNegativeCount
	}
	notes = strings.TrimSpace(notes)
	if len(notes) > MaxNotesLen {
		return ErrNotesTooLong
	}
	r.ActualCigarettes = actual
	r.Notes = notes
	r.State = StateDraft
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkCommitted records that the remote store accepted this exact record.
func (r *CheckinRecord) MarkCommitted() {
	r.State = StateCommitted
}

func (r *CheckinRecord) IsCommitted() bool {
	return r.State == StateCommitted
}

func (r *CheckinRecord) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if r.Date.IsZero() {
		return errors.New("date is required")
	}
	if r.ActualCigarettes < 0 || r.TargetCigarettes < 0 {
		return ErrNegativeCount
	}
	if len(r.Notes) > MaxNotesLen {
		return ErrNotesTooLong
	}
	switch r.State {
	case StateDraft, StateCommitted:
	default:
		return errors.New("state must be draft or committed")
	}
	switch r.Origin {
	case OriginLocal, OriginRemote:
	default:
		return errors.New("origin must be local or remote")
	}
	return nil
}

// Newer reports whether r should replace other when both hold the same date
// in one tier: later UpdatedAt wins, ties go to committed.
func (r CheckinRecord) Newer(other CheckinRecord) bool {
	if !r.UpdatedAt.Equal(other.UpdatedAt) {
		return r.UpdatedAt.After(other.UpdatedAt)
	}
	return r.State == StateCommitted && other.State != StateCommitted
}

// ReplaceableBy reports whether a local record may be overwritten by a
// committed record from the remote tier. Drafts never are.
func (r CheckinRecord) ReplaceableBy(incoming CheckinRecord) bool {
	return r.IsCommitted() && incoming.IsCommitted() && incoming.UpdatedAt.After(r.UpdatedAt)
}
