// Package progress holds the pure quit-plan engine: target resolution,
// two-tier check-in reconciliation and statistics aggregation.
//
// Nothing here performs I/O or keeps state, so every function is safe for
// concurrent use and recomputing from the same input gives the same output.
package progress

import (
	"fmt"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

// ResolveTarget maps a plan and a day to that day's cigarette target.
//
// A nil plan yields 0. A day before the plan start yields domain.ErrInvalidDate.
// Past the last phase the target is 0 (plan complete). Inside the span the
// phase with the matching index wins, then the first phase, then the
// plan's initial daily baseline.
func ResolveTarget(plan *domain.Plan, date domain.CalendarDate) (int, error) {
	if plan == nil {
		return 0, nil
	}

	daysSinceStart := date.DaysSince(plan.StartDate)
	if daysSinceStart < 0 {
		return 0, fmt.Errorf("%w: %s is before %s", domain.ErrInvalidDate, date, plan.StartDate)
	}

	weekIndex := daysSinceStart/domain.DaysPerPhase + 1
	if weekIndex > len(plan.Phases) {
		return 0, nil
	}

	for _, ph := range plan.Phases {
		if ph.Index != weekIndex {
			continue
		}
		if t, ok := ph.Target(); ok {
			return t, nil
		}
		break
	}

	if t, ok := plan.Phases[0].Target(); ok {
		return t, nil
	}

	return plan.InitialDailyCigarettes, nil
}

// targetOrZero is used where the day is known to be inside the plan window.
func targetOrZero(plan *domain.Plan, date domain.CalendarDate) int {
	t, err := ResolveTarget(plan, date)
	if err != nil {
		return 0
	}
	return t
}
