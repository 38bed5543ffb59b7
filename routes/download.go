package routes

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"squeeze/logger"
	"squeeze/metrics"
	"squeeze/results"
	writerbackends "squeeze/writerBackends"
)

// DownloadHandler serves a stored result as compressed_image.jpg.
func DownloadHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, data, err := results.Get(id)
	if err != nil {
		logger.Errorf("Failed to load result %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "Result not found or expired", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", `attachment; filename="`+writerbackends.OutputFilename+`"`)
	w.Header().Set("ETag", `"`+rec.Digest+`"`)
	w.Header().Set("Cache-Control", "private, max-age=0, must-revalidate")

	metrics.Downloads.Inc()
	http.ServeContent(w, r, writerbackends.OutputFilename, rec.CreatedAt, bytes.NewReader(data))
}
