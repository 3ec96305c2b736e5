// Package planfile reads and writes quit plans as YAML.
//
// Older exports name the per-phase fields differently. Decode accepts
// "target", "daily_target" and "cigarettes" for target_daily_cigarettes, and
// "week" for index. Encode always writes the canonical names.
package planfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

var ErrInvalidFile = errors.New("invalid plan file")

// Document is a plan as it appears in a file, without ownership or versioning.
type Document struct {
	StartDate              domain.CalendarDate
	InitialDailyCigarettes int
	PackPrice              float64
	Currency               string
	Phases                 []domain.WeekPhase
}

type fileDoc struct {
	StartDate              string      `yaml:"start_date"`
	InitialDailyCigarettes int         `yaml:"initial_daily_cigarettes"`
	PackPrice              float64     `yaml:"pack_price,omitempty"`
	Currency               string      `yaml:"currency,omitempty"`
	Phases                 []filePhase `yaml:"phases"`
}

type filePhase struct {
	Index                 *int `yaml:"index,omitempty"`
	TargetDailyCigarettes *int `yaml:"target_daily_cigarettes,omitempty"`

	// legacy names
	Week        *int `yaml:"week,omitempty"`
	Target      *int `yaml:"target,omitempty"`
	DailyTarget *int `yaml:"daily_target,omitempty"`
	Cigarettes  *int `yaml:"cigarettes,omitempty"`
}

func firstSet(vals ...*int) *int {
	for _, v := range vals {
		if v != nil {
			n := *v
			return &n
		}
	}
	return nil
}

// normalize maps legacy field names onto the canonical phase. A phase with
// no index at all takes its 1-based position in the list.
func (p filePhase) normalize(pos int) domain.WeekPhase {
	idx := pos + 1
	if v := firstSet(p.Index, p.Week); v != nil {
		idx = *v
	}
	return domain.WeekPhase{
		Index:                 idx,
		TargetDailyCigarettes: firstSet(p.TargetDailyCigarettes, p.Target, p.DailyTarget, p.Cigarettes),
	}
}

func Decode(r io.Reader) (*Document, error) {
	var raw fileDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidFile)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	start, err := domain.ParseCalendarDate(raw.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: start_date: %v", ErrInvalidFile, err)
	}

	doc := &Document{
		StartDate:              start,
		InitialDailyCigarettes: raw.InitialDailyCigarettes,
		PackPrice:              raw.PackPrice,
		Currency:               raw.Currency,
		Phases:                 make([]domain.WeekPhase, len(raw.Phases)),
	}
	for i, p := range raw.Phases {
		doc.Phases[i] = p.normalize(i)
	}
	return doc, nil
}

func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Encode writes plan in the canonical shape Decode reads back.
func Encode(w io.Writer, plan *domain.Plan) error {
	raw := fileDoc{
		StartDate:              plan.StartDate.String(),
		InitialDailyCigarettes: plan.InitialDailyCigarettes,
		PackPrice:              plan.PackPrice,
		Currency:               plan.Currency,
		Phases:                 make([]filePhase, len(plan.Phases)),
	}
	for i, p := range plan.Phases {
		idx := p.Index
		raw.Phases[i] = filePhase{Index: &idx, TargetDailyCigarettes: firstSet(p.TargetDailyCigarettes)}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(raw); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return enc.Close()
}
