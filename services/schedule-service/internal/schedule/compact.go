package schedule

import "sort"

// Compact is the inverse of Expand: it reduces a grid's available cells to
// the unique minimal set of maximal contiguous windows. Scanning each day's
// labels in ascending order, a run of available slots opens a window at its
// first slot and closes after its last: the window end is the final slot's
// start plus one step, so the window covers through the end of that slot.
// Any other status breaks the run. A day with no available slots simply
// contributes no windows.
func Compact(g Grid) []Availability {
	labels := g.Bounds.Labels()
	if len(labels) == 0 {
		return nil
	}
	// Label maps carry no order; scan in generated (ascending) order.
	sorted := make([]string, len(labels))
	copy(sorted, labels)
	sort.Strings(sorted)

	step := float64(g.Bounds.StepMinutes) / 60

	var out []Availability
	for _, day := range Days {
		row := g.Cells[day]
		if row == nil {
			continue
		}
		open := ""
		for i, label := range sorted {
			status := row[label]
			if status == StatusAvailable && open == "" {
				open = label
			}
			if status != StatusAvailable {
				continue
			}
			last := i == len(sorted)-1
			if !last && row[sorted[i+1]] == StatusAvailable {
				continue
			}
			// Run ends here.
			endFloat, err := ParseClock(label)
			if err != nil {
				open = ""
				continue
			}
			out = append(out, Availability{
				Day:   day,
				Start: open,
				End:   FormatClock(endFloat + step),
			})
			open = ""
		}
	}
	return out
}
