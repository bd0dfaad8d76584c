package schedule

import "testing"

func TestExpandBoundary(t *testing.T) {
	s := Schedule{Availabilities: []Availability{
		{Day: Monday, Start: "09:00", End: "10:00"},
	}}
	g := Expand(s, DefaultBounds)

	if got := g.Status(Monday, "09:00"); got != StatusAvailable {
		t.Fatalf("09:00 = %q, want available", got)
	}
	if got := g.Status(Monday, "09:30"); got != StatusAvailable {
		t.Fatalf("09:30 = %q, want available", got)
	}
	if got := g.Status(Monday, "10:00"); got != StatusEmpty {
		t.Fatalf("10:00 = %q, want empty", got)
	}
	if got := g.Status(Tuesday, "09:00"); got != StatusEmpty {
		t.Fatalf("tuesday 09:00 = %q, want empty", got)
	}
}

func TestExpandDense(t *testing.T) {
	g := Expand(Schedule{}, DefaultBounds)
	labels := DefaultBounds.Labels()
	if len(labels) != 32 {
		t.Fatalf("label count = %d, want 32", len(labels))
	}
	for _, day := range Days {
		row, ok := g.Cells[day]
		if !ok {
			t.Fatalf("missing row for %s", day)
		}
		if len(row) != len(labels) {
			t.Fatalf("%s row has %d cells, want %d", day, len(row), len(labels))
		}
		for _, label := range labels {
			if row[label] != StatusEmpty {
				t.Fatalf("%s %s = %q, want empty", day, label, row[label])
			}
		}
	}
}

func TestExpandOverlapUnion(t *testing.T) {
	s := Schedule{Availabilities: []Availability{
		{Day: Monday, Start: "09:00", End: "11:00"},
		{Day: Monday, Start: "10:00", End: "12:00"},
	}}
	g := Expand(s, DefaultBounds)

	for _, label := range []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"} {
		if got := g.Status(Monday, label); got != StatusAvailable {
			t.Fatalf("%s = %q, want available", label, got)
		}
	}
	if got := g.Status(Monday, "12:00"); got != StatusEmpty {
		t.Fatalf("12:00 = %q, want empty", got)
	}
}

func TestExpandSkipsInvalidWindows(t *testing.T) {
	s := Schedule{Availabilities: []Availability{
		{Day: Monday, Start: "banana", End: "10:00"},
		{Day: Tuesday, Start: "09:00", End: "10:00"},
	}}
	g := Expand(s, DefaultBounds)
	if got := g.Status(Tuesday, "09:00"); got != StatusAvailable {
		t.Fatalf("valid window dropped alongside invalid one: %q", got)
	}
}

func TestExpandStrictRejectsInvalid(t *testing.T) {
	s := Schedule{Availabilities: []Availability{
		{Day: Monday, Start: "10:00", End: "09:00"},
	}}
	if _, err := ExpandStrict(s, DefaultBounds); err == nil {
		t.Fatal("expected error for inverted window")
	}

	valid := Schedule{Availabilities: []Availability{
		{Day: Monday, Start: "09:00", End: "10:00"},
	}}
	g, err := ExpandStrict(valid, DefaultBounds)
	if err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
	if got := g.Status(Monday, "09:30"); got != StatusAvailable {
		t.Fatalf("09:30 = %q, want available", got)
	}
}

func TestGridSetIgnoresUnknownCells(t *testing.T) {
	g := NewGrid(DefaultBounds)
	g.Set(Monday, "05:00", StatusAvailable)
	if _, ok := g.Cells[Monday]["05:00"]; ok {
		t.Fatal("out-of-bounds label must not be added")
	}
	g.Set(DayOfWeek("NODAY"), "09:00", StatusAvailable)
	if _, ok := g.Cells[DayOfWeek("NODAY")]; ok {
		t.Fatal("unknown day must not be added")
	}

	g.Set(Monday, "09:00", StatusBooked)
	if got := g.Status(Monday, "09:00"); got != StatusBooked {
		t.Fatalf("09:00 = %q, want booked", got)
	}
}
