package domain

import (
	"context"
)

type PlanRepository interface {
	// GetActivePlan returns the user's current plan, or (nil, nil) when the user has none.
	GetActivePlan(ctx context.Context, userID string) (*Plan, error)
	// SavePlan creates or replaces the active plan.
	// Implementations must check Version to prevent lost updates.
	SavePlan(ctx context.Context, plan *Plan) error
}

// LocalCheckinStore is the fast, offline-capable tier. It may hold drafts.
type LocalCheckinStore interface {
	// GetLocalRecords never fails: an unreachable or corrupt cache yields an empty slice,
	// and individual corrupt entries are dropped.
	GetLocalRecords(ctx context.Context, userID string, r DateRange) []CheckinRecord
	// GetLocalRecord returns ErrCheckinNotFound when the day has no local record.
	GetLocalRecord(ctx context.Context, userID string, date CalendarDate) (*CheckinRecord, error)
	PutLocalRecord(ctx context.Context, record CheckinRecord) error
	// RefreshLocalRecord stores a committed record fetched from the remote tier
	// only if the day's current local record is ReplaceableBy it, checked and
	// written atomically. It reports whether the record was written.
	RefreshLocalRecord(ctx context.Context, record CheckinRecord) (bool, error)
}

// RemoteCheckinStore is the durable tier, authoritative once a write succeeds.
type RemoteCheckinStore interface {
	// GetRemoteRecords may fail (network, auth). Callers fall back to the local tier.
	GetRemoteRecords(ctx context.Context, userID string, r DateRange) ([]CheckinRecord, error)
	// UpsertRecord is keyed by (user, date). Last write wins.
	UpsertRecord(ctx context.Context, record CheckinRecord) error
}
