package routes

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"

	"squeeze/job"
	"squeeze/logger"
)

// CancelJobHandler cancels a job that is still waiting for a worker
func (s *Server) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		logger.Warn("Missing id parameter in cancel request")
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	logger.Infof("Attempting to cancel job: %s", id)
	if err := s.runner.CancelJob(id); err != nil {
		logger.Warnf("Failed to cancel job %s: %v", id, err)
		if errors.Is(err, job.ErrJobNotFound) {
			http.Error(w, fmt.Sprintf("Job not found: %v", err), http.StatusNotFound)
		} else {
			http.Error(w, fmt.Sprintf("Cannot cancel job: %v", err), http.StatusConflict)
		}
		return
	}

	logger.Infof("Job cancelled successfully: %s", id)
	w.WriteHeader(http.StatusNoContent)
}
