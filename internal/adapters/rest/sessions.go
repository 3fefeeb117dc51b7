package rest

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
	"github.com/ewilliams-labs/moodlist/internal/core/services"
	"github.com/ewilliams-labs/moodlist/internal/worker"
)

type resolvedResponse struct {
	Emotion     domain.EmotionLabel         `json:"emotion"`
	SampleCount int                         `json:"sample_count"`
	Counts      map[domain.EmotionLabel]int `json:"counts"`
	Generation  uint64                      `json:"generation"`
	ResolvedAt  time.Time                   `json:"resolved_at"`
}

type sessionResponse struct {
	ID         string                      `json:"id"`
	Status     services.Status             `json:"status"`
	Generation uint64                      `json:"generation"`
	Accepted   int                         `json:"accepted"`
	Required   int                         `json:"required"`
	Ticks      int                         `json:"ticks"`
	Counts     map[domain.EmotionLabel]int `json:"counts"`
	Languages  []string                    `json:"languages"`
	Resolved   *resolvedResponse           `json:"resolved,omitempty"`
}

func toSessionResponse(s services.SessionSnapshot) sessionResponse {
	out := sessionResponse{
		ID:         s.ID,
		Status:     s.Status,
		Generation: s.Generation,
		Accepted:   s.Accepted,
		Required:   services.RequiredSamples,
		Ticks:      s.Ticks,
		Counts:     s.Counts,
		Languages:  s.Languages,
	}
	if s.Resolved != nil {
		out.Resolved = &resolvedResponse{
			Emotion:     s.Resolved.Label,
			SampleCount: s.Resolved.SampleCount,
			Counts:      s.Resolved.Counts,
			Generation:  s.Resolved.Generation,
			ResolvedAt:  s.Resolved.Timestamp,
		}
	}
	return out
}

type createSessionRequest struct {
	Languages []string `json:"languages"`
}

// CreateSession handles POST /sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	snap, err := h.sessions.Create(r.Context(), req.Languages)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+snap.ID)
	writeJSON(w, http.StatusCreated, toSessionResponse(snap))
}

// GetSession handles GET /sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(snap))
}

// DeleteSession handles DELETE /sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartSession handles POST /sessions/{id}/start
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Start(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(snap))
}

// ResetSession handles POST /sessions/{id}/reset
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sessions.Reset(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(snap))
}

// expressionsRequest carries one client-side classification tagged with the
// generation returned by start. Error marks a frame the client could not
// classify; it still counts as a tick.
type expressionsRequest struct {
	Generation  uint64             `json:"generation"`
	Expressions domain.Expressions `json:"expressions"`
	Error       string             `json:"error,omitempty"`
}

type tickResponse struct {
	Accepted bool            `json:"accepted"`
	Session  sessionResponse `json:"session"`
}

// PostExpressions handles POST /sessions/{id}/expressions
func (h *Handler) PostExpressions(w http.ResponseWriter, r *http.Request) {
	var req expressionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Generation == 0 {
		writeErrorWithCode(w, http.StatusBadRequest, "generation is required; use the one returned by start", codeInvalidInput)
		return
	}
	tick := domain.Tick{Generation: req.Generation, Expressions: req.Expressions}
	if req.Error != "" {
		tick.Err = errors.New(req.Error)
	}

	res, err := h.sessions.DeliverTick(r.Context(), chi.URLParam(r, "id"), tick)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tickResponse{Accepted: res.Accepted, Session: toSessionResponse(res.Session)})
}

type frameRequest struct {
	Generation uint64 `json:"generation"`
	Frame      []byte `json:"frame"` // base64 in JSON
}

// PostFrame handles POST /sessions/{id}/frames. The frame is classified in
// the background; poll the session for the outcome.
func (h *Handler) PostFrame(w http.ResponseWriter, r *http.Request) {
	if h.frames == nil {
		writeErrorWithCode(w, http.StatusNotImplemented, "server-side classification is not configured", codeNotImplemented)
		return
	}
	var req frameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Frame) == 0 {
		writeErrorWithCode(w, http.StatusBadRequest, "frame is required", codeInvalidInput)
		return
	}

	if req.Generation == 0 {
		writeErrorWithCode(w, http.StatusBadRequest, "generation is required; use the one returned by start", codeInvalidInput)
		return
	}

	id := chi.URLParam(r, "id")
	current, err := h.sessions.SamplingGeneration(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if req.Generation != current {
		writeErrorWithCode(w, http.StatusConflict,
			fmt.Sprintf("frame generation %d is not the sampling generation %d", req.Generation, current), codeNotSampling)
		return
	}

	if !h.frames.Submit(worker.Job{SessionID: id, Generation: current, Frame: req.Frame}) {
		writeErrorWithCode(w, http.StatusTooManyRequests, "frame queue is full", codeQueueFull)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]uint64{"generation": current})
}
