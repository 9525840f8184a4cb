package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xingyu42/farm-game-sub000/internal/domain"
)

// HealthResponse represents the response for health endpoints
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondJSON sends a JSON response with the given status code and payload
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError sends a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondServiceError maps domain errors onto HTTP status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrLockTimeout), errors.Is(err, domain.ErrConcurrencyAborted):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReadyz verifies the data directory is listable: if the player
// index cannot be read, nothing else will work either.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.players.ListPlayerIDs(r.Context()); err != nil {
		slog.Error("Readiness check failed", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Message: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.players.Load(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetLands(w http.ResponseWriter, r *http.Request) {
	lands, err := s.land.GetAllLands(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, lands)
}

func (s *Server) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	p, err := s.players.Load(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"inventory": p.Inventory,
		"usage":     p.InventoryUsage(),
	})
}

func (s *Server) handleGetProtection(w http.ResponseWriter, r *http.Request) {
	status, err := s.protection.GetStatus(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleGetRanking(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	result, err := s.ranking.GetPage(r.Context(), page, r.URL.Query().Get("self"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	topN, _ := strconv.Atoi(r.URL.Query().Get("top"))
	if topN < 1 {
		topN = 10
	}
	respondJSON(w, http.StatusOK, s.market.GetRenderData(topN))
}

func (s *Server) handleSchedulerStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.scheduler.Stats(r.Context()))
}
