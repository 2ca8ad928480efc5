package challenge

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/challenge-engine/internal/logging"
	httperrors "github.com/gokatarajesh/challenge-engine/pkg/http/errors"
)

const maxSubmitBody = 16 << 10

// HTTPHandler exposes a Service under /v1/{variant}/.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs a challenge HTTP handler.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logging.Component(logger, "challenge_http").With().Str("variant", string(svc.Variant())).Logger(),
	}
}

// Register mounts the variant's routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	prefix := "/v1/" + string(h.svc.Variant())
	mux.HandleFunc("GET "+prefix+"/today", h.HandleToday)
	mux.HandleFunc("GET "+prefix+"/active", h.HandleActive)
	mux.HandleFunc("GET "+prefix+"/history", h.HandleHistory)
	mux.HandleFunc("GET "+prefix+"/challenges/{id}", h.HandleGet)
	mux.HandleFunc("GET "+prefix+"/challenges/{id}/leaderboard", h.HandleLeaderboard)
	mux.HandleFunc("POST "+prefix+"/challenges/{id}/submissions", h.HandleSubmit)
	mux.HandleFunc("POST "+prefix+"/challenges/{id}/activate", h.HandleActivate)
	mux.HandleFunc("POST "+prefix+"/challenges/{id}/close", h.HandleClose)
	mux.HandleFunc("POST "+prefix+"/days/{day}/post", h.HandlePost)
	mux.HandleFunc("POST "+prefix+"/tick", h.HandleTick)
}

// entityView is the public shape of an entity. Answers stay private until
// the leaderboard is read.
type entityView struct {
	ID              uuid.UUID  `json:"id"`
	Variant         Variant    `json:"variant"`
	Day             string     `json:"day"`
	PromptText      string     `json:"prompt_text"`
	Topic           string     `json:"topic,omitempty"`
	Difficulty      string     `json:"difficulty,omitempty"`
	Status          Status     `json:"status"`
	WindowStart     time.Time  `json:"window_start"`
	WindowEnd       time.Time  `json:"window_end"`
	SubmissionCount int        `json:"submission_count"`
	LiveLeaderID    *uuid.UUID `json:"live_leader_id,omitempty"`
	ClosingWinnerID *uuid.UUID `json:"closing_winner_id,omitempty"`
	ActivatedAt     *time.Time `json:"activated_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
}

func toView(e *Entity) entityView {
	return entityView{
		ID:              e.ID,
		Variant:         e.Variant,
		Day:             e.Day,
		PromptText:      e.PromptText,
		Topic:           e.Topic,
		Difficulty:      e.Difficulty,
		Status:          e.Status,
		WindowStart:     e.WindowStart,
		WindowEnd:       e.WindowEnd,
		SubmissionCount: len(e.Submissions),
		LiveLeaderID:    e.LiveLeaderID,
		ClosingWinnerID: e.ClosingWinnerID,
		ActivatedAt:     e.ActivatedAt,
		ClosedAt:        e.ClosedAt,
	}
}

// HandleToday responds with today's challenge.
// Route: GET /v1/{variant}/today
func (h *HTTPHandler) HandleToday(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.GetToday(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, toView(e))
}

// HandleActive responds with the challenge currently accepting answers.
// Route: GET /v1/{variant}/active
func (h *HTTPHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.GetActive(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, toView(e))
}

// HandleHistory lists recent challenges, newest first.
// Route: GET /v1/{variant}/history?limit=30
func (h *HTTPHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httperrors.RespondValidationError(w, "limit must be a positive integer", "limit")
			return
		}
		limit = parsed
	}

	entities, err := h.svc.GetHistory(r.Context(), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]entityView, 0, len(entities))
	for _, e := range entities {
		views = append(views, toView(e))
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"variant":    h.svc.Variant(),
		"challenges": views,
	})
}

// HandleGet responds with one challenge.
// Route: GET /v1/{variant}/challenges/{id}
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, toView(e))
}

// HandleLeaderboard responds with the ranked submissions.
// Route: GET /v1/{variant}/challenges/{id}/leaderboard
func (h *HTTPHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	board, err := h.svc.GetLeaderboard(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, board)
}

// HandleSubmit grades and records an answer.
// Route: POST /v1/{variant}/challenges/{id}/submissions
func (h *HTTPHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBody)).Decode(&req); err != nil {
		httperrors.RespondError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidRequest, "request body must be JSON")
		return
	}
	req.EntityID = id

	res, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusCreated, res)
}

// HandleActivate opens a scheduled challenge; ?now=true starts it immediately.
// Route: POST /v1/{variant}/challenges/{id}/activate
func (h *HTTPHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	activate := h.svc.Activate
	if r.URL.Query().Get("now") == "true" {
		activate = h.svc.ActivateNow
	}
	e, changed, err := activate(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{"changed": changed, "challenge": toView(e)})
}

// HandleClose finalizes a challenge whose window has ended.
// Route: POST /v1/{variant}/challenges/{id}/close
func (h *HTTPHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, changed, err := h.svc.Close(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{"changed": changed, "challenge": toView(e)})
}

// HandlePost creates the day's challenge if needed and activates it.
// Route: POST /v1/{variant}/days/{day}/post?immediate=true
func (h *HTTPHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.PostOrActivate(r.Context(), r.PathValue("day"), r.URL.Query().Get("immediate") == "true")
	if err != nil {
		h.respondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, toView(e))
}

// HandleTick runs one lifecycle pass.
// Route: POST /v1/{variant}/tick
func (h *HTTPHandler) HandleTick(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.TickAll(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, report)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httperrors.RespondError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidID, "challenge id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		httperrors.RespondValidationError(w, err.Error(), "")
	case errors.Is(err, ErrNotFound):
		httperrors.RespondNotFound(w, err.Error())
	case errors.Is(err, ErrInactiveWindow):
		httperrors.RespondConflict(w, httperrors.ErrCodeInactiveWindow, err.Error())
	case errors.Is(err, ErrDuplicateSubmission):
		httperrors.RespondConflict(w, httperrors.ErrCodeDuplicateSubmission, err.Error())
	default:
		h.logger.Error().Err(err).Msg("request failed")
		httperrors.RespondInternalError(w, "internal error")
	}
}
