package services_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

type MockPlanRepo struct {
	mock.Mock
}

func (m *MockPlanRepo) GetActivePlan(ctx context.Context, userID string) (*domain.Plan, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Plan), args.Error(1)
}

func (m *MockPlanRepo) SavePlan(ctx context.Context, plan *domain.Plan) error {
	return m.Called(ctx, plan).Error(0)
}

type MockLocalStore struct {
	mock.Mock
}

func (m *MockLocalStore) GetLocalRecords(ctx context.Context, userID string, r domain.DateRange) []domain.CheckinRecord {
	args := m.Called(ctx, userID, r)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]domain.CheckinRecord)
}

func (m *MockLocalStore) GetLocalRecord(ctx context.Context, userID string, date domain.CalendarDate) (*domain.CheckinRecord, error) {
	args := m.Called(ctx, userID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// Hand out a copy like a real store would.
	rec := *args.Get(0).(*domain.CheckinRecord)
	return &rec, args.Error(1)
}

func (m *MockLocalStore) PutLocalRecord(ctx context.Context, record domain.CheckinRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockLocalStore) RefreshLocalRecord(ctx context.Context, record domain.CheckinRecord) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

type MockRemoteStore struct {
	mock.Mock
}

func (m *MockRemoteStore) GetRemoteRecords(ctx context.Context, userID string, r domain.DateRange) ([]domain.CheckinRecord, error) {
	args := m.Called(ctx, userID, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CheckinRecord), args.Error(1)
}

func (m *MockRemoteStore) UpsertRecord(ctx context.Context, record domain.CheckinRecord) error {
	return m.Called(ctx, record).Error(0)
}

type fakeQueue struct {
	accept bool
	jobs   []string
}

func (q *fakeQueue) Enqueue(userID string, date domain.CalendarDate) bool {
	if !q.accept {
		return false
	}
	q.jobs = append(q.jobs, userID+"|"+date.String())
	return true
}

var day0 = domain.MustParseCalendarDate("2024-03-01")

func testPlan(userID string) *domain.Plan {
	return &domain.Plan{
		ID:                     "plan-1",
		UserID:                 userID,
		StartDate:              day0,
		InitialDailyCigarettes: 20,
		PackPrice:              20000,
		Currency:               "KRW",
		Version:                1,
		Phases: []domain.WeekPhase{
			domain.NewWeekPhase(1, 10),
			domain.NewWeekPhase(2, 5),
		},
	}
}
