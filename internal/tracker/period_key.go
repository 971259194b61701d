package tracker

import (
	"fmt"
	"regexp"
)

// OncePeriodKey is the single period a one-off activity ever has.
const OncePeriodKey = "ONCE"

// PeriodKey returns the recurrence bucket identifier of date for the frequency.
// Unknown frequencies use the daily rule.
func PeriodKey(f Frequency, date Date) string {
	switch f {
	case Weekly:
		year, week := date.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case Monthly:
		return fmt.Sprintf("%04d-%02d", date.Year(), int(date.Month()))
	case Once:
		return OncePeriodKey
	case Daily:
		return date.String()
	}
	return date.String()
}

var (
	dailyKeyPattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	weeklyKeyPattern  = regexp.MustCompile(`^\d{4}-W\d{2}$`)
	monthlyKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

// KeyMatchesFrequency reports whether key has the shape PeriodKey produces for f.
func KeyMatchesFrequency(f Frequency, key string) bool {
	switch f {
	case Weekly:
		return weeklyKeyPattern.MatchString(key)
	case Monthly:
		return monthlyKeyPattern.MatchString(key)
	case Once:
		return key == OncePeriodKey
	case Daily:
		return dailyKeyPattern.MatchString(key)
	}
	return dailyKeyPattern.MatchString(key)
}
