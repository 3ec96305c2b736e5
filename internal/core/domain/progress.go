package domain

type DaySource string

const (
	SourceRemote DaySource = "remote"
	SourceLocal  DaySource = "local"
	SourceDraft  DaySource = "draft"
	SourceNone   DaySource = "none"
)

// ReconciledDay is derived on every load and never stored.
type ReconciledDay struct {
	Date   CalendarDate `json:"date"`
	Target int          `json:"target"`
	// Actual is nil when no check-in exists for the day.
	Actual       *int      `json:"actual"`
	Saved        int       `json:"saved"`
	Source       DaySource `json:"source"`
	PendingDraft bool      `json:"pending_draft,omitempty"`
}

func (d ReconciledDay) HasData() bool {
	return d.Actual != nil
}

// MetTarget is false for days without data.
func (d ReconciledDay) MetTarget() bool {
	return d.Actual != nil && *d.Actual <= d.Target
}

type HealthMilestone struct {
	ThresholdDays int    `json:"threshold_days"`
	Label         string `json:"label"`
	Achieved      bool   `json:"achieved"`
}

type Statistics struct {
	DaysTracked       int               `json:"days_tracked"`
	CigarettesAvoided int               `json:"cigarettes_avoided"`
	CigarettesSmoked  int               `json:"cigarettes_smoked"`
	AverageDaily      float64           `json:"average_daily"`
	MoneySaved        float64           `json:"money_saved"`
	Currency          string            `json:"currency"`
	CurrentStreak     int               `json:"current_streak"`
	LongestStreak     int               `json:"longest_streak"`
	FirstTrackedDate  *CalendarDate     `json:"first_tracked_date,omitempty"`
	ElapsedDays       int               `json:"elapsed_days"`
	HealthMilestones  []HealthMilestone `json:"health_milestones"`
}
