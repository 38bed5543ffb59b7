package routes

import (
	"net/http"

	"squeeze/failures"
	"squeeze/logger"
	"squeeze/results"
)

// JobStatusResponse represents the job status response
type JobStatusResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// JobStatusHandler reports whether a job is queued, running, finished or failed.
func (s *Server) JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		logger.Warn("Missing id parameter in status request")
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	if state, ok := s.runner.GetJobState(id); ok {
		writeJSON(w, http.StatusOK, JobStatusResponse{ID: id, State: state.String()})
		return
	}

	rec, err := results.GetRecord(id)
	if err != nil {
		logger.Errorf("Failed to query result %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if rec != nil {
		writeJSON(w, http.StatusOK, JobStatusResponse{ID: id, State: "completed"})
		return
	}

	failure, err := failures.GetFailure(id)
	if err != nil {
		logger.Errorf("Failed to query failure %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if failure != nil {
		writeJSON(w, http.StatusOK, JobStatusResponse{ID: id, State: "failed", Error: failure.Message})
		return
	}

	http.Error(w, "Job "+id+" not found", http.StatusNotFound)
}
