package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iCoderabhishek/clandr-schedule-service/libs/db"
	"github.com/iCoderabhishek/clandr-schedule-service/services/schedule-service/internal/schedule"
)

// Format pins a stored schedule to the wire shape that first saved it.
// Mixing the two shapes for one schedule is rejected, not merged.
type Format string

const (
	FormatWindows Format = "windows"
	FormatGrid    Format = "grid"
)

// ErrFormatMismatch is returned when a save arrives through the wire shape
// the stored schedule is not pinned to.
var ErrFormatMismatch = errors.New("schedule is stored in the other wire format")

type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// GetSchedule loads the interval form of a user's schedule. A missing row
// or missing availabilities degrades to an empty schedule with the supplied
// default timezone so the editor always opens.
func (r *ScheduleRepository) GetSchedule(ctx context.Context, userID, defaultTimezone string) (schedule.Schedule, Format, error) {
	var tz, rawFormat string
	err := r.pool.QueryRow(ctx, `
		SELECT timezone, format
		FROM schedules
		WHERE user_id = $1
	`, userID).Scan(&tz, &rawFormat)
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.Schedule{Timezone: defaultTimezone}, "", nil
	}
	if err != nil {
		return schedule.Schedule{}, "", err
	}
	if tz == "" {
		tz = defaultTimezone
	}

	rows, err := r.pool.Query(ctx, `
		SELECT day_of_week, start_time, end_time
		FROM schedule_availabilities
		WHERE user_id = $1
		ORDER BY position ASC
	`, userID)
	if err != nil {
		return schedule.Schedule{}, "", err
	}
	defer rows.Close()

	s := schedule.Schedule{Timezone: tz}
	for rows.Next() {
		var rawDay, start, end string
		if err := rows.Scan(&rawDay, &start, &end); err != nil {
			return schedule.Schedule{}, "", err
		}
		day, err := schedule.ParseDay(rawDay)
		if err != nil {
			// Rows written before day casing was pinned down; skip rather
			// than lock the user out of the editor.
			continue
		}
		s.Availabilities = append(s.Availabilities, schedule.Availability{Day: day, Start: start, End: end})
	}
	if rows.Err() != nil {
		return schedule.Schedule{}, "", rows.Err()
	}
	return s, Format(rawFormat), nil
}

// ReplaceSchedule persists the interval form with whole-aggregate semantics:
// the previous window rows are deleted and the new set inserted in one
// transaction. The schedule row is pinned to the windows format.
func (r *ScheduleRepository) ReplaceSchedule(ctx context.Context, tx pgx.Tx, userID string, s schedule.Schedule) error {
	if err := r.pinFormat(ctx, tx, userID, s.Timezone, FormatWindows); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM schedule_availabilities WHERE user_id = $1
	`, userID); err != nil {
		return err
	}
	for i, a := range s.Availabilities {
		if _, err := tx.Exec(ctx, `
			INSERT INTO schedule_availabilities (user_id, day_of_week, start_time, end_time, position)
			VALUES ($1, $2, $3, $4, $5)
		`, userID, string(a.Day), a.Start, a.End, i); err != nil {
			return err
		}
	}
	return nil
}

// gridDoc is the stored JSON shape of a grid document.
type gridDoc struct {
	Bounds struct {
		StartHour   int `json:"startHour"`
		EndHour     int `json:"endHour"`
		StepMinutes int `json:"stepMinutes"`
	} `json:"bounds"`
	WeeklySchedule map[string]map[string]string `json:"weeklySchedule"`
}

// ReplaceGrid persists the dense form as a single JSONB document, pinned to
// the grid format.
func (r *ScheduleRepository) ReplaceGrid(ctx context.Context, tx pgx.Tx, userID string, timezone string, g schedule.Grid) error {
	if err := r.pinFormat(ctx, tx, userID, timezone, FormatGrid); err != nil {
		return err
	}

	var doc gridDoc
	doc.Bounds.StartHour = g.Bounds.StartHour
	doc.Bounds.EndHour = g.Bounds.EndHour
	doc.Bounds.StepMinutes = g.Bounds.StepMinutes
	doc.WeeklySchedule = make(map[string]map[string]string, len(g.Cells))
	for day, row := range g.Cells {
		cells := make(map[string]string, len(row))
		for label, status := range row {
			cells[label] = string(status)
		}
		doc.WeeklySchedule[string(day)] = cells
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO schedule_grids (user_id, doc)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET doc = EXCLUDED.doc, updated_at = now()
	`, userID, payload)
	return err
}

// GetGrid loads the stored grid document. A missing row yields an all-empty
// grid at default bounds.
func (r *ScheduleRepository) GetGrid(ctx context.Context, userID string) (schedule.Grid, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `
		SELECT doc FROM schedule_grids WHERE user_id = $1
	`, userID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.NewGrid(schedule.DefaultBounds), nil
	}
	if err != nil {
		return schedule.Grid{}, err
	}

	var doc gridDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		// A corrupt document should not lock the editor; start fresh.
		return schedule.NewGrid(schedule.DefaultBounds), nil
	}
	bounds := schedule.Bounds{
		StartHour:   doc.Bounds.StartHour,
		EndHour:     doc.Bounds.EndHour,
		StepMinutes: doc.Bounds.StepMinutes,
	}
	if len(bounds.Labels()) == 0 {
		bounds = schedule.DefaultBounds
	}
	g := schedule.NewGrid(bounds)
	for rawDay, row := range doc.WeeklySchedule {
		day, err := schedule.ParseDay(rawDay)
		if err != nil {
			continue
		}
		for label, rawStatus := range row {
			status := schedule.SlotStatus(rawStatus)
			if !schedule.ValidStatus(status) {
				continue
			}
			g.Set(day, label, status)
		}
	}
	return g, nil
}

// pinFormat creates or updates the schedule row, enforcing the one-format
// rule.
func (r *ScheduleRepository) pinFormat(ctx context.Context, tx pgx.Tx, userID, timezone string, want Format) error {
	var rawCurrent string
	err := tx.QueryRow(ctx, `
		SELECT format FROM schedules WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&rawCurrent)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `
			INSERT INTO schedules (user_id, timezone, format)
			VALUES ($1, $2, $3)
		`, userID, timezone, string(want))
		return err
	case err != nil:
		return err
	case Format(rawCurrent) != want:
		return fmt.Errorf("%w: stored as %s", ErrFormatMismatch, rawCurrent)
	}
	_, err = tx.Exec(ctx, `
		UPDATE schedules
		SET timezone = $2, updated_at = now()
		WHERE user_id = $1
	`, userID, timezone)
	return err
}

// BookedSlot is one externally booked grid cell, owned by the booking
// system and read-only to schedule editors.
type BookedSlot struct {
	Day  schedule.DayOfWeek
	Slot string
}

func (r *ScheduleRepository) ListBookedSlots(ctx context.Context, userID string) ([]BookedSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT day_of_week, slot
		FROM schedule_slot_bookings
		WHERE user_id = $1
		ORDER BY day_of_week, slot
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BookedSlot
	for rows.Next() {
		var rawDay, slot string
		if err := rows.Scan(&rawDay, &slot); err != nil {
			return nil, err
		}
		day, err := schedule.ParseDay(rawDay)
		if err != nil {
			continue
		}
		out = append(out, BookedSlot{Day: day, Slot: slot})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ScheduleRepository) UpsertBookedSlot(ctx context.Context, tx pgx.Tx, userID string, b BookedSlot) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO schedule_slot_bookings (user_id, day_of_week, slot)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, day_of_week, slot) DO NOTHING
	`, userID, string(b.Day), b.Slot)
	return err
}

func (r *ScheduleRepository) DeleteBookedSlot(ctx context.Context, tx pgx.Tx, userID string, b BookedSlot) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM schedule_slot_bookings
		WHERE user_id = $1 AND day_of_week = $2 AND slot = $3
	`, userID, string(b.Day), b.Slot)
	return err
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
