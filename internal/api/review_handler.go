package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lingolab/vocab-srs/internal/api/shared"
	"github.com/lingolab/vocab-srs/internal/domain"
	"github.com/lingolab/vocab-srs/internal/platform/logger"
	"github.com/lingolab/vocab-srs/internal/redact"
	"github.com/lingolab/vocab-srs/internal/service/repetition"
)

// ListIDParam is the chi URL parameter holding the vocabulary list id.
const ListIDParam = "listID"

// ApplyReviewRequest represents the request body for submitting a review outcome
type ApplyReviewRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=recalled forgotten"`
}

// RecordResponse represents a review record with its derived due fields.
type RecordResponse struct {
	ID              string     `json:"id"`
	UserID          int64      `json:"user_id"`
	ListID          int64      `json:"list_id"`
	ReviewCount     int        `json:"review_count"`
	IntervalDays    int        `json:"interval_days"`
	Status          string     `json:"status"`
	LastReviewedAt  *time.Time `json:"last_reviewed_at"`
	NextReviewAt    time.Time  `json:"next_review_at"`
	IsDue           bool       `json:"is_due"`
	DaysUntilReview int        `json:"days_until_review"`
}

// ReviewResponse is returned after a review outcome has been applied.
type ReviewResponse struct {
	Record               RecordResponse `json:"record"`
	PreviousIntervalDays int            `json:"previous_interval_days"`
	NewIntervalDays      int            `json:"new_interval_days"`
}

// DueListResponse lists the records due for review.
type DueListResponse struct {
	Records []RecordResponse `json:"records"`
	Count   int              `json:"count"`
	AsOf    time.Time        `json:"as_of"`
}

// ReviewHandler handles review-related HTTP requests
type ReviewHandler struct {
	engine repetition.Engine
	due    repetition.DueService
	clock  repetition.Clock
	logger *slog.Logger
}

// NewReviewHandler creates a new ReviewHandler.
// A nil clock selects repetition.SystemClock.
func NewReviewHandler(
	engine repetition.Engine,
	due repetition.DueService,
	clock repetition.Clock,
	logger *slog.Logger,
) *ReviewHandler {
	if engine == nil {
		panic("engine cannot be nil for ReviewHandler")
	}
	if due == nil {
		panic("due service cannot be nil for ReviewHandler")
	}
	if logger == nil {
		panic("logger cannot be nil for ReviewHandler")
	}
	if clock == nil {
		clock = repetition.SystemClock
	}

	return &ReviewHandler{
		engine: engine,
		due:    due,
		clock:  clock,
		logger: logger.With(slog.String("component", "review_handler")),
	}
}

// CreateOrGetRecord handles POST /lists/{listID}/record requests.
// It starts tracking a list for the authenticated user, or returns the
// existing record unchanged.
func (h *ReviewHandler) CreateOrGetRecord(w http.ResponseWriter, r *http.Request) {
	userID, listID, ok := h.identify(w, r)
	if !ok {
		return
	}

	record, err := h.engine.CreateOrGet(r.Context(), userID, listID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, recordToResponse(record.Due(h.clock())))
}

// GetRecord handles GET /lists/{listID}/record requests.
func (h *ReviewHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	userID, listID, ok := h.identify(w, r)
	if !ok {
		return
	}

	due, err := h.engine.Get(r.Context(), userID, listID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, recordToResponse(due))
}

// ApplyReview handles POST /lists/{listID}/reviews requests.
// It applies a review outcome and returns the rescheduled record.
func (h *ReviewHandler) ApplyReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, listID, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req ApplyReviewRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Debug("invalid request format", slog.String("error", redact.Error(err)))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	result, err := h.engine.ApplyReview(r.Context(), userID, listID, domain.ReviewOutcome(req.Outcome))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	log.Debug("review applied",
		slog.Int64("list_id", listID),
		slog.String("outcome", req.Outcome),
		slog.Int("new_interval_days", result.NewIntervalDays))

	shared.RespondWithJSON(w, r, http.StatusOK, ReviewResponse{
		Record:               recordToResponse(result.Record.Due(h.clock())),
		PreviousIntervalDays: result.PreviousIntervalDays,
		NewIntervalDays:      result.NewIntervalDays,
	})
}

// ListDue handles GET /reviews/due requests.
// An optional as_of query parameter (RFC 3339) overrides the current time.
func (h *ReviewHandler) ListDue(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	resp := DueListResponse{Records: []RecordResponse{}, AsOf: asOf}
	for due, err := range h.due.ListDue(r.Context(), userID, &asOf) {
		if err != nil {
			h.respondWithServiceError(w, r, err)
			return
		}
		resp.Records = append(resp.Records, recordToResponse(due))
	}
	resp.Count = len(resp.Records)

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// NextDue handles GET /reviews/next requests.
// It responds 204 No Content when nothing is due.
func (h *ReviewHandler) NextDue(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	asOf, ok := h.asOf(w, r)
	if !ok {
		return
	}

	due, err := h.due.NextDue(r.Context(), userID, &asOf)
	if errors.Is(err, repetition.ErrNoneDue) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, recordToResponse(due))
}

func (h *ReviewHandler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		logger.FromContextOrDefault(r.Context(), h.logger).Warn("user ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return 0, false
	}
	return userID, true
}

func (h *ReviewHandler) identify(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, ok := h.userID(w, r)
	if !ok {
		return 0, 0, false
	}

	raw := chi.URLParam(r, ListIDParam)
	listID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || listID <= 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid list ID")
		return 0, 0, false
	}
	return userID, listID, true
}

func (h *ReviewHandler) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return h.clock(), true
	}
	asOf, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid as_of timestamp, expected RFC 3339")
		return time.Time{}, false
	}
	return asOf.UTC(), true
}

func (h *ReviewHandler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var opts []shared.ResponseOption
	if IsRetryable(err) {
		opts = append(opts, shared.WithRetryable())
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err, opts...)
}

func recordToResponse(due *domain.DueRecord) RecordResponse {
	return RecordResponse{
		ID:              due.ID.String(),
		UserID:          due.UserID,
		ListID:          due.ListID,
		ReviewCount:     due.ReviewCount,
		IntervalDays:    due.IntervalDays,
		Status:          string(due.Status),
		LastReviewedAt:  due.LastReviewedAt,
		NextReviewAt:    due.NextReviewAt,
		IsDue:           due.IsDue,
		DaysUntilReview: due.DaysUntilReview,
	}
}
