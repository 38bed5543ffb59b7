package routes

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/google/uuid"

	"squeeze/logger"
	"squeeze/pipeline"
)

const (
	qualityMin     = 10
	qualityMax     = 100
	qualityDefault = 70
	factorMin      = 1.0
	factorMax      = 2.0
	factorDefault  = 1.2
)

// pageData feeds templates/page.html.
type pageData struct {
	Title           string
	JobID           string
	QualityMin      int
	QualityMax      int
	FactorMin       float64
	FactorMax       float64
	Enhancements    []string
	DeliveryBackend string
	Form            compressForm
	Error           string
	Result          *resultView
}

// resultView is the rendered outcome of one compression.
type resultView struct {
	ID                string
	OriginalSize      string
	CompressedSize    string
	IntermediateSize  string
	DownloadURL       string
	DeliveredTo       string
	DeliveryError     string
	OriginalPreview   template.URL
	CompressedPreview template.URL
}

func (s *Server) newPage(form compressForm) *pageData {
	labels := make([]string, 0, len(pipeline.Enhancements))
	for _, e := range pipeline.Enhancements {
		labels = append(labels, e.Label())
	}
	return &pageData{
		Title:           s.cfg.UI.Title,
		JobID:           uuid.NewString(),
		QualityMin:      qualityMin,
		QualityMax:      qualityMax,
		FactorMin:       factorMin,
		FactorMax:       factorMax,
		Enhancements:    labels,
		DeliveryBackend: s.cfg.Delivery.Backend,
		Form:            form,
	}
}

func defaultForm() compressForm {
	return compressForm{
		Quality:     qualityDefault,
		Enhancement: pipeline.EnhanceNone.Label(),
		Kind:        pipeline.EnhanceNone,
		Factor:      factorDefault,
	}
}

// IndexHandler renders the upload form.
func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.newPage(defaultForm()))
}

func (s *Server) render(w http.ResponseWriter, status int, data *pageData) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, "page.html", data); err != nil {
		logger.Errorf("Failed to render page: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logger.Debugf("Failed to write page: %v", err)
	}
}
