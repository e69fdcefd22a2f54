package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gridclash/api/internal/registry"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// MatchHandler serves the read-only HTTP views of running matches.
type MatchHandler struct {
	reg *registry.Registry
	hub *Hub
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(reg *registry.Registry, hub *Hub) *MatchHandler {
	return &MatchHandler{reg: reg, hub: hub}
}

type matchSummary struct {
	MatchID       string `json:"matchId"`
	CurrentRound  int    `json:"currentRound"`
	CurrentPlayer string `json:"currentPlayer"`
	GameOver      bool   `json:"gameOver"`
	Winner        string `json:"winner,omitempty"`
	Seated        bool   `json:"seated"`
}

// ListMatches handles GET /api/v1/matches: summaries of every match in
// the registry.
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	matches := h.reg.List()
	out := make([]matchSummary, 0, len(matches))
	for _, m := range matches {
		s := matchSummary{
			MatchID:       m.ID,
			CurrentRound:  m.State.CurrentRound,
			CurrentPlayer: string(m.State.CurrentPlayer),
			GameOver:      m.State.GameOver,
			Seated:        h.hub.BothSeated(m.ID),
		}
		if m.State.Winner != nil {
			s.Winner = string(*m.State.Winner)
		}
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": out})
}

// Healthz handles GET /healthz.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
