package progress

import (
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

// DefaultPackPrice is used when no plan or no pack price is known.
const DefaultPackPrice = 4500.0

type milestoneDef struct {
	days  int
	label string
}

var healthMilestones = []milestoneDef{
	{1, "Carbon monoxide level in the blood drops to normal"},
	{2, "Sense of smell and taste begin to improve"},
	{3, "Breathing becomes easier as bronchial tubes relax"},
	{14, "Circulation improves and walking gets easier"},
	{30, "Lung function increases and coughing decreases"},
	{90, "Risk of heart attack begins to drop"},
	{365, "Excess risk of coronary heart disease is half that of a smoker"},
}

// MilestoneThresholds lists the fixed health milestones in days.
func MilestoneThresholds() []int {
	out := make([]int, len(healthMilestones))
	for i, m := range healthMilestones {
		out[i] = m.days
	}
	return out
}

type Aggregator struct {
	// DefaultPackPrice replaces a missing or zero plan pack price.
	DefaultPackPrice float64
	// Currency labels MoneySaved when the plan has none.
	Currency string
}

func NewAggregator(defaultPackPrice float64, currency string) Aggregator {
	if defaultPackPrice <= 0 {
		defaultPackPrice = DefaultPackPrice
	}
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	return Aggregator{DefaultPackPrice: defaultPackPrice, Currency: currency}
}

// Aggregate derives Statistics from a reconciled series using the package defaults.
func Aggregate(days []domain.ReconciledDay, plan *domain.Plan) domain.Statistics {
	return NewAggregator(DefaultPackPrice, "").Aggregate(days, plan)
}

// Aggregate derives Statistics from a series sorted ascending by date.
// It reads only its arguments, so equal input gives equal output.
func (a Aggregator) Aggregate(days []domain.ReconciledDay, plan *domain.Plan) domain.Statistics {
	stats := domain.Statistics{
		Currency:         a.currency(plan),
		HealthMilestones: make([]domain.HealthMilestone, len(healthMilestones)),
	}

	var first *domain.CalendarDate
	for i := range days {
		d := days[i]
		if !d.HasData() {
			continue
		}
		stats.DaysTracked++
		stats.CigarettesAvoided += d.Saved
		stats.CigarettesSmoked += *d.Actual
		if first == nil {
			date := d.Date
			first = &date
		}
	}

	if stats.DaysTracked > 0 {
		stats.AverageDaily = float64(stats.CigarettesSmoked) / float64(stats.DaysTracked)
	}

	stats.MoneySaved = float64(stats.CigarettesAvoided) * a.pricePerCigarette(plan)
	stats.CurrentStreak, stats.LongestStreak = streaks(days)

	if first != nil {
		stats.FirstTrackedDate = first
		stats.ElapsedDays = days[len(days)-1].Date.DaysSince(*first) + 1
	}

	for i, m := range healthMilestones {
		stats.HealthMilestones[i] = domain.HealthMilestone{
			ThresholdDays: m.days,
			Label:         m.label,
			Achieved:      stats.ElapsedDays >= m.days,
		}
	}

	return stats
}

func (a Aggregator) pricePerCigarette(plan *domain.Plan) float64 {
	if p, ok := plan.PricePerCigarette(); ok {
		return p
	}
	price := a.DefaultPackPrice
	if price <= 0 {
		price = DefaultPackPrice
	}
	return price / domain.CigarettesPerPack
}

func (a Aggregator) currency(plan *domain.Plan) string {
	if plan != nil && plan.Currency != "" {
		return plan.Currency
	}
	if a.Currency != "" {
		return a.Currency
	}
	return domain.DefaultCurrency
}

// streaks scans a series sorted ascending. A day without data breaks a run
// exactly like a day over target.
func streaks(days []domain.ReconciledDay) (current, longest int) {
	for i := len(days) - 1; i >= 0; i-- {
		if !days[i].MetTarget() {
			break
		}
		current++
	}

	run := 0
	for _, d := range days {
		if d.MetTarget() {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}

	return current, longest
}
