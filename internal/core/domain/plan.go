package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPlanNotFound       = errors.New("plan not found")
	ErrPlanConflict       = errors.New("plan version conflict")
	ErrPlanMissing        = errors.New("no active plan")
	ErrInvalidPlan        = errors.New("invalid plan")
	ErrPlanInvalidUserID  = errors.New("invalid user id")
	ErrPlanNoPhases       = errors.New("plan must have at least one phase")
	ErrPlanStartMissing   = errors.New("plan start date is required")
	ErrPlanStartTooOld    = errors.New("plan start date is too far in the past")
	ErrInvalidPhaseIndex  = errors.New("phase index must be >= 1")
	ErrDuplicatePhase     = errors.New("duplicate phase index")
	ErrNegativePackPrice  = errors.New("pack price cannot be negative")
	ErrNegativeBaseline   = errors.New("initial daily cigarettes cannot be negative")
	ErrNegativePhaseValue = errors.New("phase target cannot be negative")
)

const (
	CigarettesPerPack = 20
	DaysPerPhase      = 7
	DefaultCurrency   = "KRW"
)

type WeekPhase struct {
	Index int `json:"index" yaml:"index"`
	// TargetDailyCigarettes is nil when the source data omitted it.
	TargetDailyCigarettes *int `json:"target_daily_cigarettes" yaml:"target_daily_cigarettes"`
}

func NewWeekPhase(index, target int) WeekPhase {
	return WeekPhase{Index: index, TargetDailyCigarettes: &target}
}

func (p WeekPhase) Target() (int, bool) {
	if p.TargetDailyCigarettes == nil {
		return 0, false
	}
	return *p.TargetDailyCigarettes, true
}

type Plan struct {
	ID                     string       `json:"id" db:"id"`
	UserID                 string       `json:"user_id" db:"user_id"`
	StartDate              CalendarDate `json:"start_date" db:"start_date"`
	InitialDailyCigarettes int          `json:"initial_daily_cigarettes" db:"initial_daily_cigarettes"`
	Phases                 []WeekPhase  `json:"phases" db:"-"`
	PackPrice              float64      `json:"pack_price" db:"pack_price"`
	Currency               string       `json:"currency" db:"currency"`
	Version                int          `json:"version" db:"version"`
	CreatedAt              time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at" db:"updated_at"`
}

func NewPlan(userID string, start CalendarDate, initialDaily int, packPrice float64, phases []WeekPhase) (*Plan, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrPlanInvalidUserID
	}

	now := time.Now().UTC()
	p := &Plan{
		ID:                     uuid.NewString(),
		UserID:                 userID,
		StartDate:              start,
		InitialDailyCigarettes: initialDaily,
		Phases:                 clonePhases(phases),
		PackPrice:              packPrice,
		Currency:               DefaultCurrency,
		Version:                1,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks structural well-formedness only. Sparse phase indices and
// missing phase targets are accepted; the target resolver has fallbacks for them.
func (p *Plan) Validate() error {
	if p.StartDate.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidPlan, ErrPlanStartMissing)
	}
	if p.InitialDailyCigarettes < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidPlan, ErrNegativeBaseline)
	}
	if p.PackPrice < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidPlan, ErrNegativePackPrice)
	}
	if len(p.Phases) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidPlan, ErrPlanNoPhases)
	}

	seen := make(map[int]bool, len(p.Phases))
	for _, ph := range p.Phases {
		if ph.Index < 1 {
			return fmt.Errorf("%w: %w", ErrInvalidPlan, ErrInvalidPhaseIndex)
		}
		if seen[ph.Index] {
			return fmt.Errorf("%w: %w (%d)", ErrInvalidPlan, ErrDuplicatePhase, ph.Index)
		}
		seen[ph.Index] = true
		if t, ok := ph.Target(); ok && t < 0 {
			return fmt.Errorf("%w: %w", ErrInvalidPlan, ErrNegativePhaseValue)
		}
	}
	return nil
}

// Update replaces the schedule. Version is bumped by the repository, not here.
func (p *Plan) Update(start CalendarDate, initialDaily int, packPrice float64, currency string, phases []WeekPhase) error {
	next := *p
	next.StartDate = start
	next.InitialDailyCigarettes = initialDaily
	next.PackPrice = packPrice
	next.Phases = clonePhases(phases)
	if currency != "" {
		next.Currency = currency
	}
	if err := next.Validate(); err != nil {
		return err
	}

	next.UpdatedAt = time.Now().UTC()
	*p = next
	return nil
}

// EndDate is the last day covered by a phase.
func (p *Plan) EndDate() CalendarDate {
	return p.StartDate.AddDays(len(p.Phases)*DaysPerPhase - 1)
}

// PricePerCigarette returns pack price / 20, and false when the plan carries no usable price.
func (p *Plan) PricePerCigarette() (float64, bool) {
	if p == nil || p.PackPrice <= 0 {
		return 0, false
	}
	return p.PackPrice / CigarettesPerPack, true
}

func clonePhases(phases []WeekPhase) []WeekPhase {
	if phases == nil {
		return nil
	}
	out := make([]WeekPhase, len(phases))
	for i, ph := range phases {
		out[i] = WeekPhase{Index: ph.Index}
		if ph.TargetDailyCigarettes != nil {
			v := *ph.TargetDailyCigarettes
			out[i].TargetDailyCigarettes = &v
		}
	}
	return out
}
