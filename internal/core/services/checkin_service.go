package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/progress"
)

const DefaultRemoteTimeout = 3 * time.Second

// CommitQueue accepts background saves. Enqueue must not block.
type CommitQueue interface {
	Enqueue(userID string, date domain.CalendarDate) bool
}

type CheckinService struct {
	local         domain.LocalCheckinStore
	remote        domain.RemoteCheckinStore
	plans         domain.PlanRepository
	remoteTimeout time.Duration
	queue         CommitQueue
}

func NewCheckinService(local domain.LocalCheckinStore, remote domain.RemoteCheckinStore, plans domain.PlanRepository, remoteTimeout time.Duration) *CheckinService {
	if remoteTimeout <= 0 {
		remoteTimeout = DefaultRemoteTimeout
	}
	return &CheckinService{
		local:         local,
		remote:        remote,
		plans:         plans,
		remoteTimeout: remoteTimeout,
	}
}

// SetQueue wires the background committer used by SaveAsync.
func (s *CheckinService) SetQueue(q CommitQueue) {
	s.queue = q
}

type CheckinInput struct {
	UserID string
	Date   domain.CalendarDate
	Actual int
	Notes  string
	// Today is the user's current day. Dates after it are rejected; zero disables the check.
	Today domain.CalendarDate
}

// RecordInput creates or edits the local draft for a day. Nothing is sent to
// the remote tier until Save.
func (s *CheckinService) RecordInput(ctx context.Context, input CheckinInput) (*domain.CheckinRecord, error) {
	if input.Actual < 0 {
		return nil, domain.ErrNegativeCount
	}
	if !input.Today.IsZero() && input.Date.After(input.Today) {
		return nil, domain.ErrFutureDate
	}

	plan, err := s.plans.GetActivePlan(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	target, err := progress.ResolveTarget(plan, input.Date)
	if err != nil {
		return nil, err
	}

	existing, err := s.local.GetLocalRecord(ctx, input.UserID, input.Date)
	switch {
	case errors.Is(err, domain.ErrCheckinNotFound):
		record, err := domain.NewDraftCheckin(input.UserID, input.Date, target, input.Actual, input.Notes)
		if err != nil {
			return nil, err
		}
		if err := s.local.PutLocalRecord(ctx, *record); err != nil {
			return nil, err
		}
		return record, nil
	case err != nil:
		return nil, err
	}

	if err := existing.Edit(input.Actual, input.Notes); err != nil {
		return nil, err
	}
	existing.TargetCigarettes = target
	existing.Origin = domain.OriginLocal
	existing.Version++

	if err := s.local.PutLocalRecord(ctx, *existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Save pushes the day's local record to the remote tier and waits for the
// outcome. On failure the record stays draft and the returned error wraps
// ErrRemoteUnavailable; the record is returned alongside it.
func (s *CheckinService) Save(ctx context.Context, userID string, date domain.CalendarDate) (*domain.CheckinRecord, error) {
	record, err := s.local.GetLocalRecord(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if record.IsCommitted() {
		return record, nil
	}

	outgoing := *record
	outgoing.Origin = domain.OriginRemote
	outgoing.State = domain.StateCommitted

	remoteCtx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()

	if err := s.remote.UpsertRecord(remoteCtx, outgoing); err != nil {
		commitTotal.WithLabelValues("failed").Inc()
		return record, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}

	// The user may have edited the draft while the write was in flight.
	// Only the exact record that was sent becomes committed.
	current, err := s.local.GetLocalRecord(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if !current.UpdatedAt.Equal(record.UpdatedAt) {
		commitTotal.WithLabelValues("superseded").Inc()
		log.Printf("[CHECKIN] %s for user %s edited during save, keeping newer draft", date, userID)
		return current, nil
	}

	current.MarkCommitted()
	if err := s.local.PutLocalRecord(ctx, *current); err != nil {
		return nil, err
	}

	commitTotal.WithLabelValues("committed").Inc()
	return current, nil
}

// SaveAsync queues the save and returns immediately. queued is false when no
// queue is wired or the queue is full; the record then stays draft.
func (s *CheckinService) SaveAsync(ctx context.Context, userID string, date domain.CalendarDate) (record *domain.CheckinRecord, queued bool, err error) {
	record, err = s.local.GetLocalRecord(ctx, userID, date)
	if err != nil {
		return nil, false, err
	}
	if record.IsCommitted() {
		return record, false, nil
	}
	if s.queue == nil {
		return record, false, nil
	}

	queued = s.queue.Enqueue(userID, date)
	if !queued {
		commitTotal.WithLabelValues("dropped").Inc()
	}
	return record, queued, nil
}

// Get returns the day's local record.
func (s *CheckinService) Get(ctx context.Context, userID string, date domain.CalendarDate) (*domain.CheckinRecord, error) {
	return s.local.GetLocalRecord(ctx, userID, date)
}
