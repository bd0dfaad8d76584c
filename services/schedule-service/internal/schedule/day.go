package schedule

import (
	"fmt"
	"strings"
)

// DayOfWeek is a closed enumeration over the seven weekdays. The canonical
// wire form is uppercase ("MONDAY"); parsing accepts any casing so the two
// client spellings observed in the wild ("monday" vs "MONDAY") converge here.
type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

// Days lists the weekdays in display order, Monday first.
var Days = [7]DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var dayIndex = map[DayOfWeek]int{
	Monday: 0, Tuesday: 1, Wednesday: 2, Thursday: 3, Friday: 4, Saturday: 5, Sunday: 6,
}

// ParseDay converts a raw day string into its canonical form.
func ParseDay(raw string) (DayOfWeek, error) {
	d := DayOfWeek(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := dayIndex[d]; !ok {
		return "", fmt.Errorf("unknown day of week %q", raw)
	}
	return d, nil
}

// Index returns the position of d in Monday-first order, or -1 for an
// unknown value.
func (d DayOfWeek) Index() int {
	i, ok := dayIndex[d]
	if !ok {
		return -1
	}
	return i
}

func (d DayOfWeek) Valid() bool {
	_, ok := dayIndex[d]
	return ok
}

func (d DayOfWeek) String() string { return string(d) }
