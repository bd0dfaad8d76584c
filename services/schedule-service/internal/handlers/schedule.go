package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/iCoderabhishek/clandr-schedule-service/services/schedule-service/internal/outbox"
	"github.com/iCoderabhishek/clandr-schedule-service/services/schedule-service/internal/schedule"
	"github.com/iCoderabhishek/clandr-schedule-service/services/schedule-service/internal/storage"
)

// ScheduleStore is the persistence surface the handler needs, satisfied by
// storage.ScheduleRepository.
type ScheduleStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetSchedule(ctx context.Context, userID, defaultTimezone string) (schedule.Schedule, storage.Format, error)
	ReplaceSchedule(ctx context.Context, tx pgx.Tx, userID string, s schedule.Schedule) error
	ReplaceGrid(ctx context.Context, tx pgx.Tx, userID, timezone string, g schedule.Grid) error
	GetGrid(ctx context.Context, userID string) (schedule.Grid, error)
	ListBookedSlots(ctx context.Context, userID string) ([]storage.BookedSlot, error)
}

// ScheduleCache is the read-cache surface, satisfied by
// cache.ScheduleCache.
type ScheduleCache interface {
	Get(ctx context.Context, userID string) (schedule.Schedule, bool)
	Set(ctx context.Context, userID string, s schedule.Schedule)
	Invalidate(ctx context.Context, userID string)
}

type ScheduleHandler struct {
	repo       ScheduleStore
	outboxRepo *outbox.Repository
	cache      ScheduleCache
	logger     *slog.Logger
	bounds     schedule.Bounds
}

func NewScheduleHandler(repo ScheduleStore, outboxRepo *outbox.Repository, scheduleCache ScheduleCache, logger *slog.Logger, bounds schedule.Bounds) *ScheduleHandler {
	if len(bounds.Labels()) == 0 {
		bounds = schedule.DefaultBounds
	}
	return &ScheduleHandler{
		repo:       repo,
		outboxRepo: outboxRepo,
		cache:      scheduleCache,
		logger:     logger,
		bounds:     bounds,
	}
}

func userIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

// defaultTimezone is the caller-supplied platform timezone for schedules
// that have never been saved. The engine stores and forwards it, nothing
// more.
func defaultTimezone(r *http.Request) string {
	if tz := strings.TrimSpace(r.Header.Get("X-Timezone")); tz != "" {
		return tz
	}
	return "UTC"
}

type availabilityItem struct {
	DayOfWeek string `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type scheduleResponse struct {
	Timezone       string             `json:"timezone"`
	Availabilities []availabilityItem `json:"availabilities"`
}

type fieldErrorItem struct {
	DayOfWeek string `json:"dayOfWeek"`
	Index     int    `json:"index"`
	Message   string `json:"message"`
}

type gridResponse struct {
	Timezone       string                       `json:"timezone"`
	WeeklySchedule map[string]map[string]string `json:"weeklySchedule"`
	Stats          schedule.Stats               `json:"stats"`
}

// Get serves the interval form: GET /api/schedule. A user with no saved
// schedule gets an empty one with their platform timezone, never a 404.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		http.Error(w, "missing X-User-Id", http.StatusBadRequest)
		return
	}

	if s, ok := h.cache.Get(r.Context(), userID); ok {
		writeJSON(w, http.StatusOK, toScheduleResponse(s))
		return
	}

	s, format, err := h.repo.GetSchedule(r.Context(), userID, defaultTimezone(r))
	if err != nil {
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	// A never-saved schedule carries this caller's own X-Timezone default;
	// caching it would serve that default to other callers until the TTL.
	if format != "" {
		h.cache.Set(r.Context(), userID, s)
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(s))
}

// Save replaces the whole schedule through the windows wire shape:
// PUT /api/schedule. Validation runs over every window and all failures
// come back together.
func (h *ScheduleHandler) Save(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		http.Error(w, "missing X-User-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Timezone       string             `json:"timezone"`
		Availabilities []availabilityItem `json:"availabilities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Timezone == "" {
		req.Timezone = defaultTimezone(r)
	}

	s, fieldErrs := parseAvailabilities(req.Timezone, req.Availabilities)
	if len(fieldErrs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": fieldErrs})
		return
	}

	// Persist the minimal merged form, not whatever window order and
	// overlap the client happened to send.
	s = s.Normalize(h.bounds)

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.ReplaceSchedule(ctx, tx, userID, s); err != nil {
		if errors.Is(err, storage.ErrFormatMismatch) {
			http.Error(w, "schedule is stored in grid format", http.StatusConflict)
			return
		}
		http.Error(w, "failed to save schedule", http.StatusInternalServerError)
		return
	}
	if err := h.insertUpdatedEvent(ctx, tx, userID, storage.FormatWindows, schedule.StatsFromSchedule(s, h.bounds)); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.cache.Invalidate(ctx, userID)
	writeJSON(w, http.StatusOK, toScheduleResponse(s))
}

// GetGrid serves the dense form with booked slots overlaid:
// GET /api/schedule/grid.
func (h *ScheduleHandler) GetGrid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		http.Error(w, "missing X-User-Id", http.StatusBadRequest)
		return
	}

	g, tz, err := h.loadGrid(r.Context(), userID, defaultTimezone(r))
	if err != nil {
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toGridResponse(tz, g))
}

// SaveGrid replaces the whole grid document through the grid wire shape:
// PUT /api/schedule/grid. Client-computed stats are ignored; the response
// carries the server's own count.
func (h *ScheduleHandler) SaveGrid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		http.Error(w, "missing X-User-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Timezone       string                       `json:"timezone"`
		WeeklySchedule map[string]map[string]string `json:"weeklySchedule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Timezone == "" {
		req.Timezone = defaultTimezone(r)
	}

	g := schedule.NewGrid(h.bounds)
	for rawDay, row := range req.WeeklySchedule {
		day, err := schedule.ParseDay(rawDay)
		if err != nil {
			http.Error(w, fmt.Sprintf("unknown day of week %q", rawDay), http.StatusBadRequest)
			return
		}
		for label, rawStatus := range row {
			status := schedule.SlotStatus(rawStatus)
			if !schedule.ValidStatus(status) {
				http.Error(w, fmt.Sprintf("unknown slot status %q", rawStatus), http.StatusBadRequest)
				return
			}
			// Booked cells are owned by the booking feed; a client echoing
			// a read back must not persist them.
			if status == schedule.StatusBooked {
				status = schedule.StatusEmpty
			}
			g.Set(day, label, status)
		}
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.ReplaceGrid(ctx, tx, userID, req.Timezone, g); err != nil {
		if errors.Is(err, storage.ErrFormatMismatch) {
			http.Error(w, "schedule is stored in windows format", http.StatusConflict)
			return
		}
		http.Error(w, "failed to save schedule", http.StatusInternalServerError)
		return
	}
	if err := h.insertUpdatedEvent(ctx, tx, userID, storage.FormatGrid, schedule.StatsFromGrid(g)); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.cache.Invalidate(ctx, userID)
	writeJSON(w, http.StatusOK, toGridResponse(req.Timezone, g))
}

// Stats recomputes occupancy from whichever form the schedule is stored
// in: GET /api/schedule/stats.
func (h *ScheduleHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		http.Error(w, "missing X-User-Id", http.StatusBadRequest)
		return
	}

	g, _, err := h.loadGrid(r.Context(), userID, defaultTimezone(r))
	if err != nil {
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, schedule.StatsFromGrid(g))
}

// loadGrid materializes the user's dense view regardless of stored format
// and overlays externally booked slots on top. Booked wins over whatever
// the editor had in the cell.
func (h *ScheduleHandler) loadGrid(ctx context.Context, userID, defaultTZ string) (schedule.Grid, string, error) {
	s, format, err := h.repo.GetSchedule(ctx, userID, defaultTZ)
	if err != nil {
		return schedule.Grid{}, "", err
	}

	var g schedule.Grid
	if format == storage.FormatGrid {
		g, err = h.repo.GetGrid(ctx, userID)
		if err != nil {
			return schedule.Grid{}, "", err
		}
	} else {
		g = schedule.Expand(s, h.bounds)
	}

	booked, err := h.repo.ListBookedSlots(ctx, userID)
	if err != nil {
		return schedule.Grid{}, "", err
	}
	for _, b := range booked {
		g.Set(b.Day, b.Slot, schedule.StatusBooked)
	}
	return g, s.Timezone, nil
}

func (h *ScheduleHandler) insertUpdatedEvent(ctx context.Context, tx pgx.Tx, userID string, format storage.Format, stats schedule.Stats) error {
	payload, err := json.Marshal(map[string]any{
		"user_id": userID,
		"format":  string(format),
		"stats":   stats,
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "schedule",
		AggregateID:   userID,
		EventType:     outbox.EventScheduleUpdated,
		Payload:       payload,
	})
}

// parseAvailabilities converts the wire items to the domain form, batching
// every problem instead of stopping at the first.
func parseAvailabilities(timezone string, items []availabilityItem) (schedule.Schedule, []fieldErrorItem) {
	s := schedule.Schedule{Timezone: timezone}
	var fieldErrs []fieldErrorItem
	perDay := map[schedule.DayOfWeek]int{}
	for _, item := range items {
		day, err := schedule.ParseDay(item.DayOfWeek)
		if err != nil {
			fieldErrs = append(fieldErrs, fieldErrorItem{DayOfWeek: item.DayOfWeek, Index: 0, Message: err.Error()})
			continue
		}
		index := perDay[day]
		perDay[day]++
		a := schedule.Availability{Day: day, Start: item.StartTime, End: item.EndTime}
		if err := a.Validate(); err != nil {
			fieldErrs = append(fieldErrs, fieldErrorItem{DayOfWeek: string(day), Index: index, Message: err.Error()})
			continue
		}
		s.Availabilities = append(s.Availabilities, a)
	}
	return s, fieldErrs
}

func toScheduleResponse(s schedule.Schedule) scheduleResponse {
	resp := scheduleResponse{
		Timezone:       s.Timezone,
		Availabilities: make([]availabilityItem, 0, len(s.Availabilities)),
	}
	for _, a := range s.Availabilities {
		resp.Availabilities = append(resp.Availabilities, availabilityItem{
			DayOfWeek: string(a.Day),
			StartTime: a.Start,
			EndTime:   a.End,
		})
	}
	return resp
}

func toGridResponse(timezone string, g schedule.Grid) gridResponse {
	weekly := make(map[string]map[string]string, len(g.Cells))
	for day, row := range g.Cells {
		cells := make(map[string]string, len(row))
		for label, status := range row {
			cells[label] = string(status)
		}
		weekly[string(day)] = cells
	}
	return gridResponse{
		Timezone:       timezone,
		WeeklySchedule: weekly,
		Stats:          schedule.StatsFromGrid(g),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
