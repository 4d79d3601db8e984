package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleEmbeddingStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "embedding stats unavailable", http.StatusServiceUnavailable)
		return
	}

	body := map[string]any{
		"provider":    s.provider,
		"queue_depth": s.orchestrator.QueueDepth(),
		"stats":       s.stats.Snapshot(),
	}
	if s.metrics != nil {
		summaries, err := s.metrics.Summaries(r.Context())
		if err != nil {
			s.log.Warn("collect metrics", "error", err)
		} else {
			body["metrics"] = summaries
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
