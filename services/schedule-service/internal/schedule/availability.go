package schedule

import (
	"fmt"
	"sort"
)

// Availability is one recurring weekly window: a half-open [Start, End)
// span of wall-clock time on a single weekday. It has no identity of its
// own; it lives inside exactly one Schedule.
type Availability struct {
	Day   DayOfWeek `json:"dayOfWeek"`
	Start string    `json:"startTime"`
	End   string    `json:"endTime"`
}

// InvalidWindowError reports a window whose start does not strictly precede
// its end. Zero-length windows are invalid.
type InvalidWindowError struct {
	Day   DayOfWeek
	Start string
	End   string
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("%s window %s-%s: start must be before end", e.Day, e.Start, e.End)
}

// Validate checks the day, both time fields, and the start<end invariant.
// It returns *FormatError or *InvalidWindowError.
func (a Availability) Validate() error {
	if !a.Day.Valid() {
		return fmt.Errorf("unknown day of week %q", string(a.Day))
	}
	start, err := ParseClock(a.Start)
	if err != nil {
		return err
	}
	end, err := ParseClock(a.End)
	if err != nil {
		return err
	}
	if start >= end {
		return &InvalidWindowError{Day: a.Day, Start: a.Start, End: a.End}
	}
	return nil
}

// Covers reports whether the slot starting at label falls inside the
// window. Half-open on purpose: a slot exactly at End is not covered, so
// adjacent windows never double-count a slot.
func (a Availability) Covers(label string) bool {
	t, err := ParseClock(label)
	if err != nil {
		return false
	}
	start, err := ParseClock(a.Start)
	if err != nil {
		return false
	}
	end, err := ParseClock(a.End)
	if err != nil {
		return false
	}
	return t >= start && t < end
}

// Schedule is the aggregate the engine transforms: an opaque IANA timezone
// name plus the owner's weekly windows. Raw input may carry windows out of
// order or overlapping; expansion tolerates that (union semantics) and
// compaction always emits the merged sorted form.
type Schedule struct {
	Timezone       string         `json:"timezone"`
	Availabilities []Availability `json:"availabilities"`
}

// SortWindows orders windows by day (Monday first) then start time.
// Unparseable start times sort last so validation errors stay visible.
func SortWindows(windows []Availability) {
	sort.SliceStable(windows, func(i, j int) bool {
		di, dj := windows[i].Day.Index(), windows[j].Day.Index()
		if di != dj {
			return di < dj
		}
		si, errI := ParseClock(windows[i].Start)
		sj, errJ := ParseClock(windows[j].Start)
		if errI != nil || errJ != nil {
			return errJ != nil && errI == nil
		}
		return si < sj
	})
}

// Normalize returns the schedule with its windows reduced to the minimal
// merged, sorted form: the same coverage expressed as the unique set of
// maximal non-overlapping windows per day, aligned to the given bounds.
func (s Schedule) Normalize(b Bounds) Schedule {
	return Schedule{
		Timezone:       s.Timezone,
		Availabilities: Compact(Expand(s, b)),
	}
}
