package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

type InMemoryPlanRepository struct {
	store map[string]domain.Plan

	mu sync.RWMutex
}

func NewInMemoryPlanRepository() *InMemoryPlanRepository {
	return &InMemoryPlanRepository{
		store: make(map[string]domain.Plan),
	}
}

func (r *InMemoryPlanRepository) GetActivePlan(ctx context.Context, userID string) (*domain.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.store[userID]
	if !ok {
		return nil, nil
	}
	p.Phases = append([]domain.WeekPhase(nil), p.Phases...)
	return &p, nil
}

func (r *InMemoryPlanRepository) SavePlan(ctx context.Context, plan *domain.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.store[plan.UserID]; ok {
		if existing.Version != plan.Version {
			return domain.ErrPlanConflict
		}
		plan.Version++
		plan.UpdatedAt = time.Now().UTC()
	}

	stored := *plan
	stored.Phases = append([]domain.WeekPhase(nil), plan.Phases...)
	r.store[plan.UserID] = stored
	return nil
}

// InMemoryCheckinStore holds one record per (user, date). It can serve as
// either tier; Fail makes remote calls error for offline tests.
type InMemoryCheckinStore struct {
	store map[string]map[domain.CalendarDate]domain.CheckinRecord
	fail  error

	mu sync.RWMutex
}

var (
	_ domain.LocalCheckinStore  = (*InMemoryCheckinStore)(nil)
	_ domain.RemoteCheckinStore = (*InMemoryCheckinStore)(nil)
)

func NewInMemoryCheckinStore() *InMemoryCheckinStore {
	return &InMemoryCheckinStore{
		store: make(map[string]map[domain.CalendarDate]domain.CheckinRecord),
	}
}

// Fail makes GetRemoteRecords and UpsertRecord return err. nil restores normal behavior.
func (s *InMemoryCheckinStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *InMemoryCheckinStore) list(userID string, r domain.DateRange) []domain.CheckinRecord {
	out := []domain.CheckinRecord{}
	for date, rec := range s.store[userID] {
		if r.Contains(date) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func (s *InMemoryCheckinStore) put(record domain.CheckinRecord) {
	byDate, ok := s.store[record.UserID]
	if !ok {
		byDate = make(map[domain.CalendarDate]domain.CheckinRecord)
		s.store[record.UserID] = byDate
	}
	byDate[record.Date] = record
}

func (s *InMemoryCheckinStore) GetLocalRecords(ctx context.Context, userID string, r domain.DateRange) []domain.CheckinRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(userID, r)
}

func (s *InMemoryCheckinStore) GetLocalRecord(ctx context.Context, userID string, date domain.CalendarDate) (*domain.CheckinRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.store[userID][date]
	if !ok {
		return nil, domain.ErrCheckinNotFound
	}
	return &rec, nil
}

func (s *InMemoryCheckinStore) PutLocalRecord(ctx context.Context, record domain.CheckinRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(record)
	return nil
}

func (s *InMemoryCheckinStore) RefreshLocalRecord(ctx context.Context, record domain.CheckinRecord) (bool, error) {
	if !record.IsCommitted() {
		return false, nil
	}
	if err := record.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.store[record.UserID][record.Date]; ok && !cur.ReplaceableBy(record) {
		return false, nil
	}
	s.put(record)
	return true, nil
}

func (s *InMemoryCheckinStore) GetRemoteRecords(ctx context.Context, userID string, r domain.DateRange) ([]domain.CheckinRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.fail != nil {
		return nil, s.fail
	}
	return s.list(userID, r), nil
}

func (s *InMemoryCheckinStore) UpsertRecord(ctx context.Context, record domain.CheckinRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return s.fail
	}
	if record.ActualCigarettes < 0 || record.TargetCigarettes < 0 {
		return fmt.Errorf("%w: %s", domain.ErrNegativeCount, record.Date)
	}

	record.Origin = domain.OriginRemote
	if existing, ok := s.store[record.UserID][record.Date]; ok {
		record.Version = existing.Version + 1
		record.CreatedAt = existing.CreatedAt
	}
	s.put(record)
	return nil
}
