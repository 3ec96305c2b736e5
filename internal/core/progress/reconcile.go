package progress

import (
	"fmt"
	"sort"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

// candidate ranks, highest first.
const (
	rankNone = iota
	rankRemoteDraft
	rankLocalDraft
	rankLocalCommitted
	rankRemoteCommitted
)

// MaxWindowDays bounds one reconciliation, about thirty years of tracking.
const MaxWindowDays = 366 * 30

// CheckWindow rejects windows longer than MaxWindowDays.
func CheckWindow(w domain.DateRange) error {
	if n := w.Days(); n > MaxWindowDays {
		return fmt.Errorf("%w: %d days from %s, at most %d", domain.ErrRangeTooLarge, n, w.From, MaxWindowDays)
	}
	return nil
}

// Window returns the days a reconciliation covers: plan start through asOf,
// or only asOf when there is no plan. ok is false when asOf precedes the plan.
func Window(plan *domain.Plan, asOf domain.CalendarDate) (domain.DateRange, bool) {
	if plan == nil {
		return domain.DateRange{From: asOf, To: asOf}, true
	}
	if asOf.Before(plan.StartDate) {
		return domain.DateRange{From: plan.StartDate, To: asOf}, false
	}
	return domain.DateRange{From: plan.StartDate, To: asOf}, true
}

// Reconcile merges the local and remote tiers into one series, one entry per
// day from the plan start through asOf, sorted ascending.
//
// Per day: committed remote, then committed local, then local draft, then a
// target-only day with no actual. Within one tier the later UpdatedAt wins,
// ties go to committed. Targets always come from ResolveTarget; whatever
// target a stored record carries is ignored.
//
// Negative counts are a caller bug and fail with domain.ErrNegativeCount.
func Reconcile(local, remote []domain.CheckinRecord, plan *domain.Plan, asOf domain.CalendarDate) ([]domain.ReconciledDay, error) {
	window, ok := Window(plan, asOf)
	if !ok {
		return []domain.ReconciledDay{}, nil
	}
	if err := CheckWindow(window); err != nil {
		return nil, err
	}

	localByDate, err := latestPerDate(local, window)
	if err != nil {
		return nil, fmt.Errorf("local tier: %w", err)
	}
	remoteByDate, err := latestPerDate(remote, window)
	if err != nil {
		return nil, fmt.Errorf("remote tier: %w", err)
	}

	days := make([]domain.ReconciledDay, 0, window.Days())
	for d := window.From; !d.After(window.To); d = d.AddDays(1) {
		target := targetOrZero(plan, d)
		day := domain.ReconciledDay{
			Date:   d,
			Target: target,
			Source: domain.SourceNone,
		}

		var winner *domain.CheckinRecord
		best := rankNone

		if r, ok := remoteByDate[d]; ok {
			rank := rankRemoteDraft
			if r.IsCommitted() {
				rank = rankRemoteCommitted
			}
			if rank > best {
				winner, best = &r, rank
			}
		}

		localDraft := false
		if r, ok := localByDate[d]; ok {
			rank := rankLocalDraft
			if r.IsCommitted() {
				rank = rankLocalCommitted
			} else {
				localDraft = true
			}
			if rank > best {
				winner, best = &r, rank
			}
		}

		if winner != nil {
			actual := winner.ActualCigarettes
			day.Actual = &actual
			day.Saved = max(0, target-actual)
			day.Source = sourceFor(best)
			day.PendingDraft = localDraft && best != rankLocalDraft
		}

		days = append(days, day)
	}

	return days, nil
}

func sourceFor(rank int) domain.DaySource {
	switch rank {
	case rankRemoteCommitted, rankRemoteDraft:
		return domain.SourceRemote
	case rankLocalCommitted:
		return domain.SourceLocal
	case rankLocalDraft:
		return domain.SourceDraft
	default:
		return domain.SourceNone
	}
}

func latestPerDate(records []domain.CheckinRecord, window domain.DateRange) (map[domain.CalendarDate]domain.CheckinRecord, error) {
	out := make(map[domain.CalendarDate]domain.CheckinRecord, len(records))
	for _, r := range records {
		if r.ActualCigarettes < 0 || r.TargetCigarettes < 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrNegativeCount, r.Date)
		}
		if !window.Contains(r.Date) {
			continue
		}
		if cur, ok := out[r.Date]; ok && !r.Newer(cur) {
			continue
		}
		out[r.Date] = r
	}
	return out, nil
}

// SeriesWindow returns the part of a reconciled series that falls within r.
func SeriesWindow(days []domain.ReconciledDay, r domain.DateRange) []domain.ReconciledDay {
	lo := sort.Search(len(days), func(i int) bool { return !days[i].Date.Before(r.From) })
	hi := sort.Search(len(days), func(i int) bool { return days[i].Date.After(r.To) })
	if lo >= hi {
		return []domain.ReconciledDay{}
	}
	out := make([]domain.ReconciledDay, hi-lo)
	copy(out, days[lo:hi])
	return out
}
