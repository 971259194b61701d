package tracker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidTimeOfDay is returned for a time of day that is not a 24-hour HH:MM value.
var ErrInvalidTimeOfDay = errors.New("invalid time of day")

var timeOfDayPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// ParseTimeOfDay trims value and checks it is empty or a zero-padded HH:MM.
func ParseTimeOfDay(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || timeOfDayPattern.MatchString(value) {
		return value, nil
	}
	return "", fmt.Errorf("%w: %q must be HH:MM", ErrInvalidTimeOfDay, value)
}
