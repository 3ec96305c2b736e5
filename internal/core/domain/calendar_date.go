package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

var (
	ErrInvalidDate   = errors.New("date precedes plan start")
	ErrDateFormat    = errors.New("invalid date format (must be YYYY-MM-DD)")
	ErrRangeTooLarge = errors.New("date range too large")
)

// CalendarDate is a day on the calendar with no time-of-day and no zone.
// All day arithmetic runs on UTC midnights so DST transitions never move a day.
type CalendarDate struct {
	year  int
	month time.Month
	day   int
}

func NewCalendarDate(year int, month time.Month, day int) CalendarDate {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return CalendarDate{year: t.Year(), month: t.Month(), day: t.Day()}
}

// DateOf returns the calendar day the instant t falls on in loc.
func DateOf(t time.Time, loc *time.Location) CalendarDate {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return CalendarDate{year: local.Year(), month: local.Month(), day: local.Day()}
}

func ParseCalendarDate(s string) (CalendarDate, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return CalendarDate{}, fmt.Errorf("%w: %q", ErrDateFormat, s)
	}
	return CalendarDate{year: t.Year(), month: t.Month(), day: t.Day()}, nil
}

func MustParseCalendarDate(s string) CalendarDate {
	d, err := ParseCalendarDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d CalendarDate) Year() int { return d.year }
func (d CalendarDate) Month() time.Month { return d.month }
func (d CalendarDate) Day() int { return d.day }
func (d CalendarDate) IsZero() bool { return d.year == 0 && d.month == 0 && d.day == 0 }
func (d CalendarDate) String() string { return d.Time().Format(DateLayout) }
func (d CalendarDate) Weekday() time.Weekday { return d.Time().Weekday() }

// Time returns midnight UTC of the day.
func (d CalendarDate) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

func (d CalendarDate) AddDays(n int) CalendarDate {
	return NewCalendarDate(d.year, d.month, d.day+n)
}

const secondsPerDay = 24 * 60 * 60

// DaysSince returns the whole number of days from other to d (negative when d is earlier).
func (d CalendarDate) DaysSince(other CalendarDate) int {
	// Unix seconds, not Time.Sub: a Duration saturates after ~292 years.
	return int((d.Time().Unix() - other.Time().Unix()) / secondsPerDay)
}

func (d CalendarDate) Before(other CalendarDate) bool { return d.Compare(other) < 0 }
func (d CalendarDate) After(other CalendarDate) bool { return d.Compare(other) > 0 }
func (d CalendarDate) Equal(other CalendarDate) bool { return d.Compare(other) == 0 }

func (d CalendarDate) Compare(other CalendarDate) int {
	switch {
	case d.year != other.year:
		return cmpInt(d.year, other.year)
	case d.month != other.month:
		return cmpInt(int(d.month), int(other.month))
	default:
		return cmpInt(d.day, other.day)
	}
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func (d CalendarDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *CalendarDate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = CalendarDate{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrDateFormat
	}
	parsed, err := ParseCalendarDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d CalendarDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *CalendarDate) UnmarshalText(text []byte) error {
	parsed, err := ParseCalendarDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the day as YYYY-MM-DD, which both Postgres DATE and SQLite TEXT accept.
func (d CalendarDate) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func (d *CalendarDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = CalendarDate{}
		return nil
	case time.Time:
		*d = CalendarDate{year: v.Year(), month: v.Month(), day: v.Day()}
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CalendarDate", src)
	}
}

func (d *CalendarDate) scanString(s string) error {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseCalendarDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	From CalendarDate
	To   CalendarDate
}

func (r DateRange) Contains(d CalendarDate) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// Days returns the number of days in the range, 0 when To precedes From.
func (r DateRange) Days() int {
	n := r.To.DaysSince(r.From) + 1
	if n < 0 {
		return 0
	}
	return n
}
