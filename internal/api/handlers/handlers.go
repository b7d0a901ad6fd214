// Package handlers implements the HTTP handlers for the turn-processing
// API. All dependencies are injected; nothing here holds global state.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Alhassan777/Nura-AI-sub001/internal/cache"
	"github.com/Alhassan777/Nura-AI-sub001/internal/coordinator"
	"github.com/Alhassan777/Nura-AI-sub001/internal/fastpath"
	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

// Handlers bundles the injected collaborators behind the HTTP surface.
type Handlers struct {
	orchestrator *fastpath.Orchestrator
	coordinator  *coordinator.Coordinator
	store        *cache.Store
}

// New creates the handler set.
func New(orchestrator *fastpath.Orchestrator, coord *coordinator.Coordinator, store *cache.Store) *Handlers {
	return &Handlers{orchestrator: orchestrator, coordinator: coord, store: store}
}

// turnRequest is the POST /api/v1/turns body.
type turnRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	Mode           string `json:"mode,omitempty"`
}

// ProcessTurn handles POST /api/v1/turns.
func (h *Handlers) ProcessTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "user_id and message are required")
		return
	}

	mode := models.Mode(req.Mode)
	if req.Mode != "" && !mode.Valid() {
		respondError(w, http.StatusBadRequest, "unknown mode: "+req.Mode)
		return
	}

	turn := models.Turn{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
		Mode:           mode,
	}

	result, err := h.orchestrator.ProcessTurn(r.Context(), turn)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("Turn processing failed")
		respondError(w, http.StatusInternalServerError, "turn processing failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetBackgroundResult handles GET /api/v1/tasks/{taskID}.
func (h *Handlers) GetBackgroundResult(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "task id is required")
		return
	}

	envelope, err := h.coordinator.GetResult(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, coordinator.ErrTaskNotFound) {
			respondError(w, http.StatusNotFound, "unknown or expired task id")
			return
		}
		respondError(w, http.StatusInternalServerError, "task lookup failed")
		return
	}

	respondJSON(w, http.StatusOK, envelope)
}

// InvalidateUserCache handles DELETE /api/v1/cache/users/{userID}.
func (h *Handlers) InvalidateUserCache(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user id is required")
		return
	}

	if err := h.store.Invalidate(r.Context(), cache.UserScope(userID)); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Cache invalidation failed")
		respondError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	log.Info().Str("user_id", userID).Msg("User cache invalidated")
	respondJSON(w, http.StatusOK, map[string]string{"status": "invalidated", "user_id": userID})
}

// ── Response helpers ────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Response encoding failed")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
