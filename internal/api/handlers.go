// Package api exposes HTTP handlers for the planner service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"example.com/planner/internal/auth"
	"example.com/planner/internal/domain"
	"example.com/planner/internal/persistence"
	"example.com/planner/internal/tracker"
)

// Option configures optional behaviour for the Handler.
type Option func(*Handler)

// WithLogger overrides the logger used for unexpected errors.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithClock replaces time.Now when a request omits its date.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  *log.Logger
	now     func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		logger:  log.Default().WithPrefix("api"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("POST /v1/activities", h.createActivity)
	mux.HandleFunc("GET /v1/activities", h.listActivities)
	mux.HandleFunc("GET /v1/activities/{id}", h.getActivity)
	mux.HandleFunc("PATCH /v1/activities/{id}", h.updateActivity)
	mux.HandleFunc("POST /v1/activities/{id}/archive", h.archive(true))
	mux.HandleFunc("POST /v1/activities/{id}/unarchive", h.archive(false))
	mux.HandleFunc("PUT /v1/activities/{id}/completions", h.toggleCompletion)
	mux.HandleFunc("GET /v1/tracker/due", h.due)
	mux.HandleFunc("GET /v1/tracker/views/{view}", h.view)
	mux.HandleFunc("GET /v1/tracker/period-key", h.periodKey)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireScope(w, r, auth.CanWrite)
	if !ok {
		return
	}

	var req CreateActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	aggregate, replay, err := h.service.CreateActivity(r.Context(), domain.CreateActivityInput{
		OwnerID:        owner,
		Title:          req.Title,
		FrequencyType:  req.FrequencyType,
		ScheduledDays:  req.ScheduledDays,
		TimeOfDay:      req.TimeOfDay,
		DomainID:       req.DomainID,
		GoalID:         req.GoalID,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, CreateActivityResponse{Activity: toAggregateView(*aggregate), Replay: replay})
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireScope(w, r, auth.CanRead)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	aggregates, next, err := h.service.ListActivities(r.Context(), owner, cursor, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	items := make([]ActivityView, 0, len(aggregates))
	for _, agg := range aggregates {
		items = append(items, toAggregateView(agg))
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: items, NextCursor: persistence.EncodeCursor(next)})
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireScope(w, r, auth.CanRead)
	if !ok {
		return
	}

	aggregate, err := h.service.GetActivity(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregateView(*aggregate))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireScope(w, r, auth.CanWrite)
	if !ok {
		return
	}

	var req UpdateActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	aggregate, err := h.service.UpdateActivity(r.Context(), domain.UpdateActivityInput{
		OwnerID:       owner,
		ActivityID:    r.PathValue("id"),
		Title:         req.Title,
		FrequencyType: req.FrequencyType,
		ScheduledDays: req.ScheduledDays,
		TimeOfDay:     req.TimeOfDay,
		DomainID:      req.DomainID,
		GoalID:        req.GoalID,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregateView(*aggregate))
}

func (h *Handler) archive(archived bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := requireScope(w, r, auth.CanWrite)
		if !ok {
			return
		}

		aggregate, err := h.service.SetArchived(r.Context(), owner, r.PathValue("id"), archived)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAggregateView(*aggregate))
	}
}

func (h *Handler) toggleCompletion(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireScope(w, r, auth.CanWrite)
	if !ok {
		return
	}

	var req ToggleCompletionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, ok := h.dateOrToday(w, req.Date)
	if !ok {
		return
	}

	completion, err := h.service.ToggleCompletion(r.Context(), domain.ToggleCompletionInput{
		OwnerID:    owner,
		ActivityID: r.PathValue("id"),
		Date:       date,
		Completed:  req.Completed,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompletionView(completion))
}

func (h *Handler) due(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireScope(w, r, auth.CanRead)
	if !ok {
		return
	}
	date, ok := h.dateOrToday(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	result, err := h.service.Due(r.Context(), owner, date, filterFrom(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DueResponse{
		Date:       result.Date.String(),
		Activities: toActivityViews(result.Activities),
		Rate:       toRateView(result.Rate),
	})
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireScope(w, r, auth.CanRead)
	if !ok {
		return
	}
	mode, err := tracker.ParseViewMode(r.PathValue("view"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	date, ok := h.dateOrToday(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	view, err := h.service.View(r.Context(), owner, mode, date, filterFrom(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewResponse(view))
}

func (h *Handler) periodKey(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.CanRead); !ok {
		return
	}
	date, ok := h.dateOrToday(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	freq := tracker.NormalizeFrequency(r.URL.Query().Get("frequency"))
	writeJSON(w, http.StatusOK, PeriodKeyResponse{
		Frequency: string(freq),
		Date:      date.String(),
		PeriodKey: tracker.PeriodKey(freq, date),
	})
}

func (h *Handler) dateOrToday(w http.ResponseWriter, raw string) (tracker.Date, bool) {
	if strings.TrimSpace(raw) == "" {
		return tracker.DateOf(h.now()), true
	}
	date, err := tracker.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return tracker.Date{}, false
	}
	return date, true
}

func filterFrom(r *http.Request) tracker.Filter {
	q := r.URL.Query()
	return tracker.Filter{
		DomainID: strings.TrimSpace(q.Get("domain_id")),
		GoalID:   strings.TrimSpace(q.Get("goal_id")),
	}
}

// requireScope resolves the owner from the bearer token and checks its scopes.
func requireScope(w http.ResponseWriter, r *http.Request, allowed func(*auth.Claims) bool) (string, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return "", false
	}
	if !allowed(claims) {
		writeError(w, http.StatusForbidden, "forbidden", "token lacks the required planner scope")
		return "", false
	}
	return claims.Subject, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.Is(err, domain.ErrActivityArchived):
		writeError(w, http.StatusConflict, "activity_archived", err.Error())
	case errors.Is(err, domain.ErrIdempotentReplay):
		writeError(w, http.StatusConflict, "idempotent_replay", err.Error())
	default:
		h.logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
