package schedule

import "testing"

func TestStatsFromGrid(t *testing.T) {
	g := NewGrid(DefaultBounds)
	g.Set(Monday, "09:00", StatusAvailable)
	g.Set(Monday, "09:30", StatusAvailable)
	g.Set(Monday, "10:00", StatusBooked)
	g.Set(Tuesday, "14:00", StatusBlocked)

	st := StatsFromGrid(g)
	if st.TotalSlots != 32*7 {
		t.Fatalf("TotalSlots = %d, want %d", st.TotalSlots, 32*7)
	}
	if st.AvailableSlots != 2 {
		t.Fatalf("AvailableSlots = %d, want 2", st.AvailableSlots)
	}
	if st.BookedSlots != 1 {
		t.Fatalf("BookedSlots = %d, want 1", st.BookedSlots)
	}
	if st.BlockedSlots != 1 {
		t.Fatalf("BlockedSlots = %d, want 1", st.BlockedSlots)
	}
}

func TestStatsEmptyGrid(t *testing.T) {
	st := StatsFromGrid(NewGrid(DefaultBounds))
	if st.TotalSlots != 224 || st.AvailableSlots != 0 || st.BookedSlots != 0 || st.BlockedSlots != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestStatsFromScheduleAgreesWithGrid(t *testing.T) {
	s := Schedule{Availabilities: []Availability{
		{Day: Monday, Start: "09:00", End: "12:00"},
		{Day: Friday, Start: "06:00", End: "22:00"},
	}}
	fromSchedule := StatsFromSchedule(s, DefaultBounds)
	fromGrid := StatsFromGrid(Expand(s, DefaultBounds))
	if fromSchedule != fromGrid {
		t.Fatalf("stats disagree: schedule=%+v grid=%+v", fromSchedule, fromGrid)
	}
	// Monday 09:00-12:00 is 6 slots, Friday spans the whole window.
	if fromSchedule.AvailableSlots != 6+32 {
		t.Fatalf("AvailableSlots = %d, want 38", fromSchedule.AvailableSlots)
	}
}
