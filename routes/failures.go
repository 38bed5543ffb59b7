package routes

import (
	"net/http"

	"squeeze/failures"
	"squeeze/logger"
)

// FailureQueryHandler handles queries for failed requests
func FailureQueryHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id parameter required", http.StatusBadRequest)
		return
	}

	record, err := failures.GetFailure(id)
	if err != nil {
		logger.Errorf("Failed to query failure for id %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if record == nil {
		// No failure recorded for this id
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":      id,
			"status":  "ok",
			"message": "No failure recorded for this id",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":        record.ID,
		"status":    "failed",
		"timestamp": record.Timestamp,
		"stage":     record.Stage,
		"error":     record.Error,
		"message":   record.Message,
		"request":   record.Request,
	})
}

// FailureListHandler handles listing all failures
func FailureListHandler(w http.ResponseWriter, r *http.Request) {
	failuresList, err := failures.ListFailures()
	if err != nil {
		logger.Errorf("Failed to list failures: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"failures": failuresList,
		"count":    len(failuresList),
	})
}
