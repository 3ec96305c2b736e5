package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/progress"
)

const WarnRemoteUnavailable = "remote store unavailable: showing local data only"

// fetchTimeoutFactor bounds a whole snapshot load (plan, both tiers and the
// local refresh) relative to the remote timeout.
const fetchTimeoutFactor = 3

type ProgressService struct {
	plans         domain.PlanRepository
	local         domain.LocalCheckinStore
	remote        domain.RemoteCheckinStore
	aggregator    progress.Aggregator
	remoteTimeout time.Duration
	group         singleflight.Group
}

func NewProgressService(plans domain.PlanRepository, local domain.LocalCheckinStore, remote domain.RemoteCheckinStore, aggregator progress.Aggregator, remoteTimeout time.Duration) *ProgressService {
	if remoteTimeout <= 0 {
		remoteTimeout = DefaultRemoteTimeout
	}
	return &ProgressService{
		plans:         plans,
		local:         local,
		remote:        remote,
		aggregator:    aggregator,
		remoteTimeout: remoteTimeout,
	}
}

type SeriesInput struct {
	UserID string
	// From and To bound the returned days. Zero From means plan start, zero To means Today.
	From  domain.CalendarDate
	To    domain.CalendarDate
	Today domain.CalendarDate
}

type SeriesResult struct {
	Days     []domain.ReconciledDay `json:"days"`
	Warnings []string               `json:"warnings"`
	Degraded bool                   `json:"degraded"`
}

type StatsResult struct {
	Statistics domain.Statistics `json:"statistics"`
	Warnings   []string          `json:"warnings"`
	Degraded   bool              `json:"degraded"`
}

// snapshot is one consistent read of both tiers and the plan.
type snapshot struct {
	plan      *domain.Plan
	local     []domain.CheckinRecord
	remote    []domain.CheckinRecord
	remoteErr error
}

func (s *ProgressService) GetReconciledSeries(ctx context.Context, input SeriesInput) (*SeriesResult, error) {
	asOf := input.To
	if asOf.IsZero() || (!input.Today.IsZero() && asOf.After(input.Today)) {
		// Days after today cannot hold check-ins.
		asOf = input.Today
	}
	if !input.From.IsZero() && input.From.After(asOf) {
		return nil, fmt.Errorf("%w: from %s is after to %s", domain.ErrInvalidDate, input.From, asOf)
	}

	snap, err := s.load(ctx, input.UserID, asOf)
	if err != nil {
		return nil, err
	}

	days, err := progress.Reconcile(snap.local, snap.remote, snap.plan, asOf)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	if !input.From.IsZero() {
		days = progress.SeriesWindow(days, domain.DateRange{From: input.From, To: asOf})
	}

	res := &SeriesResult{Days: days}
	res.Warnings, res.Degraded = warningsFor(snap)
	return res, nil
}

func (s *ProgressService) GetStatistics(ctx context.Context, userID string, asOf domain.CalendarDate) (*StatsResult, error) {
	snap, err := s.load(ctx, userID, asOf)
	if err != nil {
		return nil, err
	}

	days, err := progress.Reconcile(snap.local, snap.remote, snap.plan, asOf)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	res := &StatsResult{Statistics: s.aggregator.Aggregate(days, snap.plan)}
	res.Warnings, res.Degraded = warningsFor(snap)
	return res, nil
}

func warningsFor(snap *snapshot) ([]string, bool) {
	if snap.remoteErr != nil {
		return []string{WarnRemoteUnavailable}, true
	}
	return []string{}, false
}

// load collapses concurrent loads of the same user and day into one fetch.
// Every caller still reconciles on its own. The shared fetch is detached from
// the caller that started it, so one client going away does not degrade the
// others; each caller stops waiting when its own ctx ends.
func (s *ProgressService) load(ctx context.Context, userID string, asOf domain.CalendarDate) (*snapshot, error) {
	key := userID + "|" + asOf.String()
	ch := s.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeoutFactor*s.remoteTimeout)
		defer cancel()
		return s.fetch(fetchCtx, userID, asOf)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *ProgressService) fetch(ctx context.Context, userID string, asOf domain.CalendarDate) (*snapshot, error) {
	start := time.Now()
	defer func() { snapshotDuration.Observe(time.Since(start).Seconds()) }()

	plan, err := s.plans.GetActivePlan(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}

	window, ok := progress.Window(plan, asOf)
	snap := &snapshot{plan: plan}
	if !ok {
		return snap, nil
	}
	if err := progress.CheckWindow(window); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		snap.local = s.local.GetLocalRecords(gctx, userID, window)
		return nil
	})

	g.Go(func() error {
		remoteCtx, cancel := context.WithTimeout(gctx, s.remoteTimeout)
		defer cancel()

		records, err := s.remote.GetRemoteRecords(remoteCtx, userID, window)
		if err != nil {
			snap.remoteErr = fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
			return nil
		}
		snap.remote = records
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if snap.remoteErr != nil {
		reason := "error"
		if errors.Is(snap.remoteErr, context.DeadlineExceeded) {
			reason = "timeout"
		}
		remoteFallbackTotal.WithLabelValues(reason).Inc()
		log.Printf("[PROGRESS] user %s: %v", userID, snap.remoteErr)
		return snap, nil
	}

	s.refreshLocal(ctx, snap)
	return snap, nil
}

// refreshLocal copies committed remote records into the local tier so the
// next offline load sees them. The snapshot only preselects candidates: the
// store re-checks each day when writing, because a draft may have been
// recorded since the local read. Failures are logged and ignored.
func (s *ProgressService) refreshLocal(ctx context.Context, snap *snapshot) {
	localByDate := make(map[domain.CalendarDate]domain.CheckinRecord, len(snap.local))
	for _, r := range snap.local {
		if cur, ok := localByDate[r.Date]; ok && !r.Newer(cur) {
			continue
		}
		localByDate[r.Date] = r
	}

	for _, r := range snap.remote {
		if !r.IsCommitted() || r.ActualCigarettes < 0 {
			continue
		}
		if cur, ok := localByDate[r.Date]; ok && !cur.ReplaceableBy(r) {
			continue
		}
		written, err := s.local.RefreshLocalRecord(ctx, r)
		if err != nil {
			log.Printf("[PROGRESS] local refresh failed for %s: %v", r.Date, err)
			continue
		}
		if written {
			cacheRefreshTotal.Inc()
		}
	}
}
