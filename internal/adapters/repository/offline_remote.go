package repository

import (
	"context"
	"errors"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

// ErrNoRemote is returned when no remote database is configured.
var ErrNoRemote = errors.New("no remote store configured")

// OfflineRemote stands in for the remote tier when quitctl runs without a
// database. Every call fails, so reads fall back to local data and saves
// keep records in draft.
type OfflineRemote struct{}

var _ domain.RemoteCheckinStore = OfflineRemote{}

func (OfflineRemote) GetRemoteRecords(ctx context.Context, userID string, r domain.DateRange) ([]domain.CheckinRecord, error) {
	return nil, ErrNoRemote
}

func (OfflineRemote) UpsertRecord(ctx context.Context, record domain.CheckinRecord) error {
	return ErrNoRemote
}
