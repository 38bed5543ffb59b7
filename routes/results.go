package routes

import (
	"net/http"

	"squeeze/logger"
	"squeeze/results"
)

// ResultQueryHandler returns the metadata of a stored result
func ResultQueryHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id parameter required", http.StatusBadRequest)
		return
	}

	record, err := results.GetRecord(id)
	if err != nil {
		logger.Errorf("Failed to query result %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if record == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"id":      id,
			"status":  "not_found",
			"message": "No result found for this id",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     record.ID,
		"status": "success",
		"result": record,
	})
}

// ResultListHandler lists every result that has not expired yet
func ResultListHandler(w http.ResponseWriter, r *http.Request) {
	records, err := results.List()
	if err != nil {
		logger.Errorf("Failed to list results: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": records,
		"count":   len(records),
	})
}
