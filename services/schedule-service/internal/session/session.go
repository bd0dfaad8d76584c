package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/iCoderabhishek/clandr-schedule-service/services/schedule-service/internal/schedule"
)

// Mode selects which front-end drives the session. Both editors share the
// same expansion/compaction underneath; only the edited representation and
// the persisted wire shape differ.
type Mode string

const (
	ModeWindows Mode = "windows"
	ModeGrid    Mode = "grid"
)

// State is the session lifecycle: Clean mirrors the last-saved schedule,
// Dirty has local edits pending, Saving has one save in flight.
type State string

const (
	StateClean  State = "clean"
	StateDirty  State = "dirty"
	StateSaving State = "saving"
)

var (
	ErrSaveInFlight = errors.New("a save is already in flight")
	ErrWrongMode    = errors.New("operation not supported in this edit mode")
)

// Window is one editable per-day entry. Fields hold raw user input and stay
// unvalidated until save so typing "9" on the way to "09:00" never errors.
type Window struct {
	Start string
	End   string
}

// GridDocument is the grid-native persistence payload.
type GridDocument struct {
	Timezone string
	Grid     schedule.Grid
	Stats    schedule.Stats
}

// Saver is the external persistence collaborator. It receives the whole
// aggregate on every save; it is responsible for ignoring late responses
// after the editor closes.
type Saver interface {
	SaveWindows(ctx context.Context, s schedule.Schedule) error
	SaveGrid(ctx context.Context, doc GridDocument) error
}

// FieldError locates one invalid window inside a batched validation result.
type FieldError struct {
	Day   schedule.DayOfWeek
	Index int
	Err   error
}

// ValidationError carries every invalid window found at save time, so the
// user sees all problems at once instead of one per attempt.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("%s[%d]: %v", f.Day, f.Index, f.Err))
	}
	return "invalid windows: " + strings.Join(msgs, "; ")
}

// snapshot is a deep copy of the editable state at one point in time.
type snapshot struct {
	timezone string
	windows  map[schedule.DayOfWeek][]Window
	grid     schedule.Grid
}

// Session is the editing state machine behind one open editor. All edits
// mutate in-memory state only; nothing reaches the Saver until Save. The
// mutex is for the save goroutine; editors themselves are single-threaded.
type Session struct {
	mode   Mode
	bounds schedule.Bounds
	saver  Saver

	mu       sync.Mutex
	state    State
	timezone string
	windows  map[schedule.DayOfWeek][]Window
	grid     schedule.Grid

	// clean mirrors the last-saved state; pending is the state handed to
	// the Saver, held until the in-flight save settles.
	clean   snapshot
	pending snapshot

	editedWhileSaving bool
}

// NewWindows opens a window-list editing session over a loaded schedule.
// A schedule with no availabilities (including one a broken backend sent
// without the field) is just an empty editor, never an error.
func NewWindows(saver Saver, bounds schedule.Bounds, s schedule.Schedule) *Session {
	windows := make(map[schedule.DayOfWeek][]Window)
	for _, a := range s.Availabilities {
		day, err := schedule.ParseDay(string(a.Day))
		if err != nil {
			continue
		}
		windows[day] = append(windows[day], Window{Start: a.Start, End: a.End})
	}
	sess := &Session{
		mode:     ModeWindows,
		bounds:   bounds,
		saver:    saver,
		state:    StateClean,
		timezone: s.Timezone,
		windows:  windows,
	}
	sess.clean = sess.snapshotLocked()
	return sess
}

// NewGrid opens a grid-toggle editing session over a loaded grid document.
func NewGrid(saver Saver, doc GridDocument) *Session {
	sess := &Session{
		mode:     ModeGrid,
		bounds:   doc.Grid.Bounds,
		saver:    saver,
		state:    StateClean,
		timezone: doc.Timezone,
		grid:     cloneGrid(doc.Grid),
	}
	sess.clean = sess.snapshotLocked()
	return sess
}

func (s *Session) Mode() Mode { return s.mode }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Timezone() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timezone
}

// SetTimezone replaces the schedule's timezone. The value is opaque to the
// engine; it is stored and forwarded, never interpreted.
func (s *Session) SetTimezone(tz string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timezone = tz
	s.markDirtyLocked()
}

// Windows returns a copy of the day's editable window list.
func (s *Session) Windows(day schedule.DayOfWeek) []Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Window, len(s.windows[day]))
	copy(out, s.windows[day])
	return out
}

// Grid returns the session's current dense view: the edited grid in grid
// mode, or the expansion of the edited windows in windows mode. Windows
// that do not yet validate are simply absent from the expansion.
func (s *Session) Grid() schedule.Grid {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeGrid {
		return cloneGrid(s.grid)
	}
	return schedule.Expand(s.scheduleLocked(), s.bounds)
}

// Stats recomputes occupancy counts from the current view.
func (s *Session) Stats() schedule.Stats {
	return schedule.StatsFromGrid(s.Grid())
}

// AddWindow appends a default 09:00-17:00 window to the day's list.
func (s *Session) AddWindow(day schedule.DayOfWeek) error {
	if s.mode != ModeWindows {
		return ErrWrongMode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[day] = append(s.windows[day], Window{Start: "09:00", End: "17:00"})
	s.markDirtyLocked()
	return nil
}

// RemoveWindow deletes by position. Out-of-range indexes are a no-op; the
// UI may race its own list state and that should never crash the editor.
func (s *Session) RemoveWindow(day schedule.DayOfWeek, index int) error {
	if s.mode != ModeWindows {
		return ErrWrongMode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.windows[day]
	if index < 0 || index >= len(list) {
		return nil
	}
	s.windows[day] = append(list[:index], list[index+1:]...)
	s.markDirtyLocked()
	return nil
}

// Field names accepted by UpdateWindow.
const (
	FieldStart = "startTime"
	FieldEnd   = "endTime"
)

// UpdateWindow replaces one field of one window with raw user input. No
// validation happens here; Save validates the whole batch.
func (s *Session) UpdateWindow(day schedule.DayOfWeek, index int, field, value string) error {
	if s.mode != ModeWindows {
		return ErrWrongMode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.windows[day]
	if index < 0 || index >= len(list) {
		return nil
	}
	switch field {
	case FieldStart:
		list[index].Start = value
	case FieldEnd:
		list[index].End = value
	default:
		return fmt.Errorf("unknown window field %q", field)
	}
	s.markDirtyLocked()
	return nil
}

// ToggleSlot cycles one grid cell empty -> available -> blocked -> empty.
// Booked cells are externally owned and read-only here; toggling one is a
// no-op.
func (s *Session) ToggleSlot(day schedule.DayOfWeek, label string) error {
	if s.mode != ModeGrid {
		return ErrWrongMode
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.grid.Status(day, label) {
	case schedule.StatusEmpty:
		s.grid.Set(day, label, schedule.StatusAvailable)
	case schedule.StatusAvailable:
		s.grid.Set(day, label, schedule.StatusBlocked)
	case schedule.StatusBlocked:
		s.grid.Set(day, label, schedule.StatusEmpty)
	case schedule.StatusBooked:
		return nil
	}
	s.markDirtyLocked()
	return nil
}

// Save validates every window, hands the payload to the Saver, and
// transitions Clean on success or back to Dirty on failure with all edits
// preserved. At most one save is in flight; the returned channel resolves
// with the save outcome. Validation failures are reported synchronously as
// a single batched *ValidationError.
func (s *Session) Save(ctx context.Context) (<-chan error, error) {
	s.mu.Lock()
	if s.state == StateSaving {
		s.mu.Unlock()
		return nil, ErrSaveInFlight
	}

	var run func(context.Context) error
	if s.mode == ModeWindows {
		if err := s.validateLocked(); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		payload := s.scheduleLocked().Normalize(s.bounds)
		run = func(ctx context.Context) error { return s.saver.SaveWindows(ctx, payload) }
	} else {
		doc := GridDocument{
			Timezone: s.timezone,
			Grid:     cloneGrid(s.grid),
			Stats:    schedule.StatsFromGrid(s.grid),
		}
		run = func(ctx context.Context) error { return s.saver.SaveGrid(ctx, doc) }
	}

	// Capture the state being saved now: if it succeeds, this snapshot is
	// the new clean baseline even when edits land mid-flight.
	s.pending = s.snapshotLocked()
	s.state = StateSaving
	s.editedWhileSaving = false
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		err := run(ctx)
		s.finishSave(err)
		done <- err
	}()
	return done, nil
}

func (s *Session) finishSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pending
	s.pending = snapshot{}
	if err != nil {
		// Persistence failure is retryable, never data loss: local edits
		// stay exactly as they were.
		s.state = StateDirty
		return
	}
	// The clean baseline is what the Saver received, not the live state:
	// edits landed mid-flight were never persisted and must not survive a
	// later Discard.
	s.clean = pending
	if s.editedWhileSaving {
		s.state = StateDirty
	} else {
		s.state = StateClean
	}
}

// Discard resets in-memory state to the last clean snapshot.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timezone = s.clean.timezone
	s.windows = cloneWindows(s.clean.windows)
	s.grid = cloneGrid(s.clean.grid)
	if s.state == StateSaving {
		// Relative to the in-flight payload this is an edit; the save must
		// settle Dirty, not Clean.
		s.editedWhileSaving = true
		return
	}
	s.editedWhileSaving = false
	s.state = StateClean
}

// Validate runs the save-time validation without saving, for UIs that want
// to surface problems early.
func (s *Session) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeWindows {
		return nil
	}
	return s.validateLocked()
}

func (s *Session) validateLocked() error {
	var fields []FieldError
	for _, day := range schedule.Days {
		for i, w := range s.windows[day] {
			a := schedule.Availability{Day: day, Start: w.Start, End: w.End}
			if err := a.Validate(); err != nil {
				fields = append(fields, FieldError{Day: day, Index: i, Err: err})
			}
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (s *Session) scheduleLocked() schedule.Schedule {
	var windows []schedule.Availability
	for _, day := range schedule.Days {
		for _, w := range s.windows[day] {
			windows = append(windows, schedule.Availability{Day: day, Start: w.Start, End: w.End})
		}
	}
	return schedule.Schedule{Timezone: s.timezone, Availabilities: windows}
}

func (s *Session) markDirtyLocked() {
	if s.state == StateSaving {
		// Resolved by finishSave: success lands on Dirty, not Clean.
		s.editedWhileSaving = true
		return
	}
	s.state = StateDirty
}

func (s *Session) snapshotLocked() snapshot {
	return snapshot{
		timezone: s.timezone,
		windows:  cloneWindows(s.windows),
		grid:     cloneGrid(s.grid),
	}
}

func cloneWindows(in map[schedule.DayOfWeek][]Window) map[schedule.DayOfWeek][]Window {
	out := make(map[schedule.DayOfWeek][]Window, len(in))
	for day, list := range in {
		cp := make([]Window, len(list))
		copy(cp, list)
		out[day] = cp
	}
	return out
}

func cloneGrid(in schedule.Grid) schedule.Grid {
	out := schedule.Grid{Bounds: in.Bounds}
	if in.Cells == nil {
		return out
	}
	out.Cells = make(map[schedule.DayOfWeek]map[string]schedule.SlotStatus, len(in.Cells))
	for day, row := range in.Cells {
		cp := make(map[string]schedule.SlotStatus, len(row))
		for label, status := range row {
			cp[label] = status
		}
		out.Cells[day] = cp
	}
	return out
}
