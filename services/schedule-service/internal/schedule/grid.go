package schedule

// SlotStatus is the state of one grid cell.
type SlotStatus string

const (
	StatusEmpty     SlotStatus = "empty"
	StatusAvailable SlotStatus = "available"
	StatusBooked    SlotStatus = "booked"
	StatusBlocked   SlotStatus = "blocked"
)

// ValidStatus reports whether s is one of the four known cell states.
func ValidStatus(s SlotStatus) bool {
	switch s {
	case StatusEmpty, StatusAvailable, StatusBooked, StatusBlocked:
		return true
	}
	return false
}

// Bounds configures slot generation: the daily window and the slot width.
type Bounds struct {
	StartHour   int
	EndHour     int
	StepMinutes int
}

// DefaultBounds mirrors the editor UI: 06:00-22:00 in 30-minute slots.
var DefaultBounds = Bounds{StartHour: 6, EndHour: 22, StepMinutes: 30}

// Labels returns the ordered slot labels for these bounds.
func (b Bounds) Labels() []string {
	return SlotLabels(b.StartHour, b.EndHour, b.StepMinutes)
}

// Grid is the dense per-slot form of a weekly schedule. Every day holds
// exactly the same ordered label set; the intervals on a Schedule are the
// sparse form of the same data.
type Grid struct {
	Bounds Bounds
	Cells  map[DayOfWeek]map[string]SlotStatus
}

// NewGrid builds an all-empty dense grid for the given bounds.
func NewGrid(b Bounds) Grid {
	labels := b.Labels()
	cells := make(map[DayOfWeek]map[string]SlotStatus, len(Days))
	for _, day := range Days {
		row := make(map[string]SlotStatus, len(labels))
		for _, label := range labels {
			row[label] = StatusEmpty
		}
		cells[day] = row
	}
	return Grid{Bounds: b, Cells: cells}
}

// Status returns the state of one cell, StatusEmpty for cells outside the
// grid.
func (g Grid) Status(day DayOfWeek, label string) SlotStatus {
	row, ok := g.Cells[day]
	if !ok {
		return StatusEmpty
	}
	s, ok := row[label]
	if !ok {
		return StatusEmpty
	}
	return s
}

// Set writes one cell. Labels outside the grid's label set are ignored; the
// dense invariant (same labels on every day) must hold at all times.
func (g Grid) Set(day DayOfWeek, label string, status SlotStatus) {
	row, ok := g.Cells[day]
	if !ok {
		return
	}
	if _, ok := row[label]; !ok {
		return
	}
	row[label] = status
}

// Expand converts the sparse interval form into the dense grid form. Every
// cell starts empty; each valid window marks the slots whose start falls in
// [start, end) as available. Overlapping and duplicate windows union
// cleanly. Windows that fail validation are skipped, not fatal.
func Expand(s Schedule, b Bounds) Grid {
	g, _ := expand(s, b, false)
	return g
}

// ExpandStrict is Expand with strict input handling: the first invalid
// window aborts the expansion.
func ExpandStrict(s Schedule, b Bounds) (Grid, error) {
	return expand(s, b, true)
}

func expand(s Schedule, b Bounds, strict bool) (Grid, error) {
	g := NewGrid(b)
	labels := b.Labels()
	for _, w := range s.Availabilities {
		if err := w.Validate(); err != nil {
			if strict {
				return Grid{}, err
			}
			continue
		}
		for _, label := range labels {
			if w.Covers(label) {
				g.Set(w.Day, label, StatusAvailable)
			}
		}
	}
	return g, nil
}
