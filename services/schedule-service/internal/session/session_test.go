package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iCoderabhishek/clandr-schedule-service/services/schedule-service/internal/schedule"
)

// stubSaver blocks each save until release is signalled, so tests can
// observe the in-flight state.
type stubSaver struct {
	release chan error

	windows []schedule.Schedule
	grids   []GridDocument
}

func newStubSaver() *stubSaver {
	return &stubSaver{release: make(chan error, 1)}
}

func (s *stubSaver) SaveWindows(_ context.Context, sched schedule.Schedule) error {
	s.windows = append(s.windows, sched)
	return <-s.release
}

func (s *stubSaver) SaveGrid(_ context.Context, doc GridDocument) error {
	s.grids = append(s.grids, doc)
	return <-s.release
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("save did not finish")
		return nil
	}
}

func waitState(t *testing.T, sess *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state = %q, want %q", sess.State(), want)
}

func TestWindowsEditLifecycle(t *testing.T) {
	saver := newStubSaver()
	sess := NewWindows(saver, schedule.DefaultBounds, schedule.Schedule{Timezone: "UTC"})

	if sess.State() != StateClean {
		t.Fatalf("state = %q, want clean", sess.State())
	}

	if err := sess.AddWindow(schedule.Monday); err != nil {
		t.Fatalf("AddWindow: %v", err)
	}
	if sess.State() != StateDirty {
		t.Fatalf("state after edit = %q, want dirty", sess.State())
	}
	got := sess.Windows(schedule.Monday)
	if len(got) != 1 || got[0].Start != "09:00" || got[0].End != "17:00" {
		t.Fatalf("unexpected default window: %+v", got)
	}

	saver.release <- nil
	done, err := sess.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := waitDone(t, done); err != nil {
		t.Fatalf("save outcome: %v", err)
	}
	waitState(t, sess, StateClean)

	if len(saver.windows) != 1 {
		t.Fatalf("saver called %d times, want 1", len(saver.windows))
	}
	saved := saver.windows[0]
	if saved.Timezone != "UTC" || len(saved.Availabilities) != 1 {
		t.Fatalf("unexpected saved schedule: %+v", saved)
	}
}

func TestSaveValidatesAllWindows(t *testing.T) {
	sess := NewWindows(newStubSaver(), schedule.DefaultBounds, schedule.Schedule{})

	sess.AddWindow(schedule.Monday)
	sess.AddWindow(schedule.Tuesday)
	sess.UpdateWindow(schedule.Monday, 0, FieldStart, "25:00")
	sess.UpdateWindow(schedule.Tuesday, 0, FieldEnd, "08:00")

	_, err := sess.Save(context.Background())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Save error = %v, want *ValidationError", err)
	}
	if len(verr.Fields) != 2 {
		t.Fatalf("reported %d invalid windows, want 2: %v", len(verr.Fields), verr)
	}
	if sess.State() != StateDirty {
		t.Fatalf("failed validation must leave session dirty, got %q", sess.State())
	}
}

func TestSaveInFlightRejectsSecondSave(t *testing.T) {
	saver := newStubSaver()
	sess := NewWindows(saver, schedule.DefaultBounds, schedule.Schedule{})
	sess.AddWindow(schedule.Monday)

	done, err := sess.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if sess.State() != StateSaving {
		t.Fatalf("state = %q, want saving", sess.State())
	}
	if _, err := sess.Save(context.Background()); !errors.Is(err, ErrSaveInFlight) {
		t.Fatalf("second Save error = %v, want ErrSaveInFlight", err)
	}

	saver.release <- nil
	waitDone(t, done)
}

func TestSaveFailureKeepsEdits(t *testing.T) {
	saver := newStubSaver()
	sess := NewWindows(saver, schedule.DefaultBounds, schedule.Schedule{})
	sess.AddWindow(schedule.Monday)

	done, err := sess.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	saver.release <- errors.New("backend unavailable")
	if err := waitDone(t, done); err == nil {
		t.Fatal("expected save failure")
	}
	waitState(t, sess, StateDirty)

	if got := sess.Windows(schedule.Monday); len(got) != 1 {
		t.Fatalf("edits lost on failed save: %+v", got)
	}

	// Retry succeeds without re-editing.
	saver.release <- nil
	done, err = sess.Save(context.Background())
	if err != nil {
		t.Fatalf("retry Save: %v", err)
	}
	if err := waitDone(t, done); err != nil {
		t.Fatalf("retry outcome: %v", err)
	}
	waitState(t, sess, StateClean)
}

func TestEditDuringSaveStaysDirty(t *testing.T) {
	saver := newStubSaver()
	sess := NewWindows(saver, schedule.DefaultBounds, schedule.Schedule{})
	sess.AddWindow(schedule.Monday)

	done, err := sess.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	sess.AddWindow(schedule.Friday)

	saver.release <- nil
	if err := waitDone(t, done); err != nil {
		t.Fatalf("save outcome: %v", err)
	}
	waitState(t, sess, StateDirty)
}

func TestSaveNormalizesWindows(t *testing.T) {
	saver := newStubSaver()
	sess := NewWindows(saver, schedule.DefaultBounds, schedule.Schedule{
		Availabilities: []schedule.Availability{
			{Day: schedule.Monday, Start: "09:00", End: "11:00"},
			{Day: schedule.Monday, Start: "10:00", End: "12:00"},
		},
	})
	sess.SetTimezone("Asia/Dhaka")

	saver.release <- nil
	done, err := sess.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	waitDone(t, done)

	saved := saver.windows[0]
	if saved.Timezone != "Asia/Dhaka" {
		t.Fatalf("timezone = %q", saved.Timezone)
	}
	if len(saved.Availabilities) != 1 {
		t.Fatalf("overlapping windows not merged: %+v", saved.Availabilities)
	}
	w := saved.Availabilities[0]
	if w.Start != "09:00" || w.End != "12:00" {
		t.Fatalf("unexpected merged window: %+v", w)
	}
}

func TestDiscardAfterEditDuringSave(t *testing.T) {
	saver := newStubSaver()
	sess := NewWindows(saver, schedule.DefaultBounds, schedule.Schedule{Timezone: "UTC"})
	sess.AddWindow(schedule.Monday)

	done, err := sess.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	// This edit arrives after the save payload was captured and is never
	// persisted by the in-flight save.
	sess.AddWindow(schedule.Friday)

	saver.release <- nil
	if err := waitDone(t, done); err != nil {
		t.Fatalf("save outcome: %v", err)
	}
	waitState(t, sess, StateDirty)

	sess.Discard()
	if sess.State() != StateClean {
		t.Fatalf("state after discard = %q, want clean", sess.State())
	}
	if got := sess.Windows(schedule.Friday); len(got) != 0 {
		t.Fatalf("unsaved mid-flight edit survived discard: %+v", got)
	}
	if got := sess.Windows(schedule.Monday); len(got) != 1 {
		t.Fatalf("saved window lost on discard: %+v", got)
	}
}

func TestDiscardRestoresSnapshot(t *testing.T) {
	sess := NewWindows(newStubSaver(), schedule.DefaultBounds, schedule.Schedule{
		Timezone: "UTC",
		Availabilities: []schedule.Availability{
			{Day: schedule.Monday, Start: "09:00", End: "10:00"},
		},
	})

	sess.RemoveWindow(schedule.Monday, 0)
	sess.SetTimezone("Europe/Berlin")
	if sess.State() != StateDirty {
		t.Fatalf("state = %q, want dirty", sess.State())
	}

	sess.Discard()
	if sess.State() != StateClean {
		t.Fatalf("state after discard = %q, want clean", sess.State())
	}
	if sess.Timezone() != "UTC" {
		t.Fatalf("timezone = %q, want UTC", sess.Timezone())
	}
	if got := sess.Windows(schedule.Monday); len(got) != 1 || got[0].Start != "09:00" {
		t.Fatalf("windows not restored: %+v", got)
	}
}

func TestRemoveWindowOutOfRange(t *testing.T) {
	sess := NewWindows(newStubSaver(), schedule.DefaultBounds, schedule.Schedule{})
	if err := sess.RemoveWindow(schedule.Monday, 3); err != nil {
		t.Fatalf("RemoveWindow: %v", err)
	}
	if sess.State() != StateClean {
		t.Fatalf("no-op removal must not dirty the session, got %q", sess.State())
	}
}

func TestToggleSlotCycle(t *testing.T) {
	grid := schedule.NewGrid(schedule.DefaultBounds)
	grid.Set(schedule.Monday, "10:00", schedule.StatusBooked)
	sess := NewGrid(newStubSaver(), GridDocument{Timezone: "UTC", Grid: grid})

	for _, want := range []schedule.SlotStatus{
		schedule.StatusAvailable,
		schedule.StatusBlocked,
		schedule.StatusEmpty,
	} {
		if err := sess.ToggleSlot(schedule.Monday, "09:00"); err != nil {
			t.Fatalf("ToggleSlot: %v", err)
		}
		if got := sess.Grid().Status(schedule.Monday, "09:00"); got != want {
			t.Fatalf("09:00 = %q, want %q", got, want)
		}
	}

	// Booked cells belong to the booking system and stay booked.
	if err := sess.ToggleSlot(schedule.Monday, "10:00"); err != nil {
		t.Fatalf("ToggleSlot booked: %v", err)
	}
	if got := sess.Grid().Status(schedule.Monday, "10:00"); got != schedule.StatusBooked {
		t.Fatalf("booked slot changed to %q", got)
	}
}

func TestGridSaveRecomputesStats(t *testing.T) {
	saver := newStubSaver()
	grid := schedule.NewGrid(schedule.DefaultBounds)
	sess := NewGrid(saver, GridDocument{Timezone: "UTC", Grid: grid})

	sess.ToggleSlot(schedule.Monday, "09:00")
	sess.ToggleSlot(schedule.Monday, "09:30")

	saver.release <- nil
	done, err := sess.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	waitDone(t, done)

	if len(saver.grids) != 1 {
		t.Fatalf("saver called %d times, want 1", len(saver.grids))
	}
	doc := saver.grids[0]
	if doc.Stats.AvailableSlots != 2 {
		t.Fatalf("AvailableSlots = %d, want 2", doc.Stats.AvailableSlots)
	}
	if doc.Stats.TotalSlots != 224 {
		t.Fatalf("TotalSlots = %d, want 224", doc.Stats.TotalSlots)
	}
}

func TestModeMismatch(t *testing.T) {
	windows := NewWindows(newStubSaver(), schedule.DefaultBounds, schedule.Schedule{})
	if err := windows.ToggleSlot(schedule.Monday, "09:00"); !errors.Is(err, ErrWrongMode) {
		t.Fatalf("ToggleSlot in windows mode = %v, want ErrWrongMode", err)
	}

	grid := NewGrid(newStubSaver(), GridDocument{Grid: schedule.NewGrid(schedule.DefaultBounds)})
	if err := grid.AddWindow(schedule.Monday); !errors.Is(err, ErrWrongMode) {
		t.Fatalf("AddWindow in grid mode = %v, want ErrWrongMode", err)
	}
}
