package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPeriodKeyPerFrequency(t *testing.T) {
	date := MustParseDate("2024-01-15")

	require.Equal(t, "2024-01-15", PeriodKey(Daily, date))
	require.Equal(t, "2024-W03", PeriodKey(Weekly, date))
	require.Equal(t, "2024-01", PeriodKey(Monthly, date))
	require.Equal(t, "ONCE", PeriodKey(Once, date))
}

func TestPeriodKeyISOWeekYearBoundaries(t *testing.T) {
	cases := map[string]string{
		"2023-12-31": "2023-W52",
		"2024-01-01": "2024-W01",
		"2024-12-30": "2025-W01",
		"2021-01-03": "2020-W53",
		"2020-12-31": "2020-W53",
		"2026-01-01": "2026-W01",
		"2027-01-01": "2026-W53",
	}
	for raw, want := range cases {
		require.Equal(t, want, PeriodKey(Weekly, MustParseDate(raw)), raw)
	}
}

func TestPeriodKeyOnceIsConstant(t *testing.T) {
	first := PeriodKey(Once, MustParseDate("2019-03-04"))
	second := PeriodKey(Once, MustParseDate("2031-11-30"))
	require.Equal(t, first, second)
	require.Equal(t, OncePeriodKey, first)
}

func TestPeriodKeyUnknownFrequencyUsesDailyRule(t *testing.T) {
	date := MustParseDate("2024-07-09")
	require.Equal(t, "2024-07-09", PeriodKey(Frequency("FORTNIGHTLY"), date))
	require.Equal(t, Daily, NormalizeFrequency("fortnightly"))
	require.Equal(t, Weekly, NormalizeFrequency(" weekly "))
}

func TestKeyMatchesFrequency(t *testing.T) {
	require.True(t, KeyMatchesFrequency(Daily, "2024-01-15"))
	require.False(t, KeyMatchesFrequency(Daily, "2024-W03"))
	require.True(t, KeyMatchesFrequency(Weekly, "2024-W03"))
	require.False(t, KeyMatchesFrequency(Weekly, "2024-01"))
	require.True(t, KeyMatchesFrequency(Monthly, "2024-01"))
	require.False(t, KeyMatchesFrequency(Monthly, "ONCE"))
	require.True(t, KeyMatchesFrequency(Once, "ONCE"))
	require.False(t, KeyMatchesFrequency(Once, "2024-01-15"))
}

func TestParseDateBuildsLocalCalendarDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	require.Equal(t, 2024, d.Year())
	require.Equal(t, time.February, d.Month())
	require.Equal(t, 29, d.Day())
	require.Equal(t, time.Thursday, d.Weekday())
	require.Equal(t, Thursday, d.DayCode())

	for _, bad := range []string{"", "2024-2-29", "2023-02-29", "2024-13-01", "2024-00-10", "24-01-01", "2024/01/01", "2024-01-32"} {
		_, err := ParseDate(bad)
		require.ErrorIs(t, err, ErrInvalidDate, bad)
	}
}

func TestDateOfKeepsWallClockFields(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	late := time.Date(2024, time.March, 10, 23, 30, 0, 0, loc)
	require.Equal(t, "2024-03-10", DateOf(late).String())
	require.Equal(t, "2024-03-11", DateOf(late.UTC()).String())
}

func TestDateTextRoundTrip(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalText([]byte("2025-06-01")))
	text, err := d.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "2025-06-01", string(text))
	require.Equal(t, "2025-06-08", d.AddDays(7).String())
	require.True(t, d.Before(d.AddDays(1)))
}

func TestParseDayCodes(t *testing.T) {
	codes, err := ParseDayCodes([]string{"l", "X", "V", "L"})
	require.NoError(t, err)
	require.Equal(t, []DayCode{Monday, Wednesday, Friday}, codes)

	_, err = ParseDayCodes([]string{"Q"})
	require.ErrorIs(t, err, ErrInvalidDayCode)
}

func TestParseTimeOfDay(t *testing.T) {
	for _, ok := range []string{"", "  ", "00:00", "07:30", " 23:59 "} {
		_, err := ParseTimeOfDay(ok)
		require.NoError(t, err, ok)
	}
	v, err := ParseTimeOfDay(" 08:15 ")
	require.NoError(t, err)
	require.Equal(t, "08:15", v)

	for _, bad := range []string{"7:00", "24:00", "12:60", "noon", "08:00:00"} {
		_, err := ParseTimeOfDay(bad)
		require.ErrorIs(t, err, ErrInvalidTimeOfDay, bad)
	}
}

func TestViewModeMappings(t *testing.T) {
	require.Equal(t, Daily, ViewDay.NativeFrequency())
	require.Equal(t, Weekly, ViewWeek.NativeFrequency())
	require.Equal(t, Monthly, ViewMonth.NativeFrequency())
	require.Equal(t, Once, ViewOnce.NativeFrequency())

	require.Equal(t, []Frequency{Daily, Weekly, Monthly, Once}, ViewDay.IncludedFrequencies())
	require.Equal(t, []Frequency{Weekly, Monthly, Once}, ViewWeek.IncludedFrequencies())
	require.Equal(t, []Frequency{Monthly, Once}, ViewMonth.IncludedFrequencies())
	require.Equal(t, []Frequency{Once}, ViewOnce.IncludedFrequencies())

	_, err := ParseViewMode("year")
	require.ErrorIs(t, err, ErrUnknownView)
}

// Every frequency must have a key shape, a label and a native view.
func TestEveryFrequencyIsWiredThroughout(t *testing.T) {
	date := MustParseDate("2024-05-05")
	natives := map[Frequency]bool{}
	for _, v := range ViewModes() {
		natives[v.NativeFrequency()] = true
	}
	for _, f := range Frequencies() {
		require.True(t, KeyMatchesFrequency(f, PeriodKey(f, date)), f)
		require.NotEmpty(t, DefaultLabels()[f], f)
		require.True(t, natives[f], f)
		require.True(t, ViewDay.Includes(f), f)
	}
}
