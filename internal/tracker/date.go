package tracker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is returned when a calendar date cannot be parsed.
var ErrInvalidDate = errors.New("invalid calendar date")

// Date is a local calendar date with no clock or zone attached.
type Date struct {
	year  int
	month time.Month
	day   int
}

// NewDate builds a Date from its components, normalising overflow the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf takes the wall-clock calendar fields of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{year: y, month: m, day: d}
}

// ParseDate parses YYYY-MM-DD by splitting it into components.
func ParseDate(value string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(value), "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil || day < 1 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	d := NewDate(year, time.Month(month), day)
	if d.day != day || int(d.month) != month {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return d, nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(value string) Date {
	d, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// Year returns the calendar year.
func (d Date) Year() int { return d.year }

// Month returns the calendar month.
func (d Date) Month() time.Month { return d.month }

// Day returns the day of the month.
func (d Date) Day() int { return d.day }

// IsZero reports whether d was never set.
func (d Date) IsZero() bool { return d.year == 0 && d.month == 0 && d.day == 0 }

// Time returns midnight of d in UTC. Only the calendar fields are meaningful.
func (d Date) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }

// DayCode returns the single-letter weekday token for d.
func (d Date) DayCode() DayCode { return dayCodeFor(d.Weekday()) }

// ISOWeek returns the ISO-8601 week-numbering year and week.
func (d Date) ISOWeek() (year, week int) { return d.Time().ISOWeek() }

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date { return DateOf(d.Time().AddDate(0, 0, n)) }

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.Time().Before(other.Time()) }

// Equal reports whether both dates denote the same day.
func (d Date) Equal(other Date) bool { return d == other }

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DayCode is a single-letter weekday token (L, M, X, J, V, S, D for Monday..Sunday).
type DayCode string

const (
	Monday    DayCode = "L"
	Tuesday   DayCode = "M"
	Wednesday DayCode = "X"
	Thursday  DayCode = "J"
	Friday    DayCode = "V"
	Saturday  DayCode = "S"
	Sunday    DayCode = "D"
)

// ErrInvalidDayCode is returned for tokens outside L M X J V S D.
var ErrInvalidDayCode = errors.New("invalid weekday code")

func dayCodeFor(w time.Weekday) DayCode {
	switch w {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// ParseDayCodes validates and de-duplicates weekday tokens, keeping their first-seen order.
func ParseDayCodes(values []string) ([]DayCode, error) {
	out := make([]DayCode, 0, len(values))
	seen := make(map[DayCode]struct{}, len(values))
	for _, raw := range values {
		code := DayCode(strings.ToUpper(strings.TrimSpace(raw)))
		switch code {
		case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidDayCode, raw)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out, nil
}
