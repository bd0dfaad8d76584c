package schedule

import (
	"fmt"
	"math"
	"regexp"
)

// FormatError reports a time string that does not match the 24-hour HH:MM
// pattern. It is recoverable: handlers flag the offending field and block
// the save rather than failing the request outright.
type FormatError struct {
	Value string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid time %q: want HH:MM in 24-hour form", e.Value)
}

var clockPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// ParseClock converts "HH:MM" into fractional hours ("09:30" -> 9.5).
// The pattern accepts an optional leading zero on the hour, matching what
// mobile clients actually send.
func ParseClock(s string) (float64, error) {
	if !clockPattern.MatchString(s) {
		return 0, &FormatError{Value: s}
	}
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, &FormatError{Value: s}
	}
	return float64(hh) + float64(mm)/60, nil
}

// FormatClock is the inverse of ParseClock for every value ParseClock can
// produce: floor to the hour, round the remainder to whole minutes, zero-pad
// both fields.
func FormatClock(f float64) string {
	hh := int(math.Floor(f))
	mm := int(math.Round((f - float64(hh)) * 60))
	if mm == 60 {
		hh++
		mm = 0
	}
	return fmt.Sprintf("%02d:%02d", hh, mm)
}

// SlotLabels generates the ordered slot start labels for the half-open
// window [startHour, endHour) at the given step. Pure function of its
// inputs; a non-positive or degenerate configuration yields nil.
func SlotLabels(startHour, endHour, stepMinutes int) []string {
	if stepMinutes <= 0 || endHour <= startHour {
		return nil
	}
	var labels []string
	for hour := startHour; hour < endHour; hour++ {
		for minute := 0; minute < 60; minute += stepMinutes {
			labels = append(labels, fmt.Sprintf("%02d:%02d", hour, minute))
		}
	}
	return labels
}
