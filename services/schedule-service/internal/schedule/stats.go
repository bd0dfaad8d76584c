package schedule

// Stats is derived occupancy data, never stored: it is always recomputable
// from either the interval or the grid form, and both routes agree.
type Stats struct {
	TotalSlots     int `json:"totalSlots"`
	AvailableSlots int `json:"availableSlots"`
	BookedSlots    int `json:"bookedSlots"`
	BlockedSlots   int `json:"blockedSlots"`
}

// StatsFromGrid counts cell states across the whole grid. TotalSlots is
// label count times day count; available+booked+blocked never exceeds it,
// the remainder being empty cells.
func StatsFromGrid(g Grid) Stats {
	stats := Stats{TotalSlots: len(g.Bounds.Labels()) * len(Days)}
	for _, row := range g.Cells {
		for _, status := range row {
			switch status {
			case StatusAvailable:
				stats.AvailableSlots++
			case StatusBooked:
				stats.BookedSlots++
			case StatusBlocked:
				stats.BlockedSlots++
			}
		}
	}
	return stats
}

// StatsFromSchedule expands the schedule and counts the result, so the two
// representations can never drift apart.
func StatsFromSchedule(s Schedule, b Bounds) Stats {
	return StatsFromGrid(Expand(s, b))
}
