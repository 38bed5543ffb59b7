package routes

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"squeeze/failures"
	"squeeze/job"
	"squeeze/logger"
	"squeeze/metrics"
	"squeeze/pipeline"
	"squeeze/preview"
	"squeeze/results"
	"squeeze/utils"
	writerbackends "squeeze/writerBackends"
)

// deliveryTimeout bounds a single backend upload.
const deliveryTimeout = 30 * time.Second

// errUnsupportedType marks uploads that are not JPEG or PNG.
var errUnsupportedType = errors.New("unsupported upload type")

// compressForm is the parsed and normalized form submission.
type compressForm struct {
	JobID       string  `json:"job_id" validate:"omitempty,uuid"`
	Quality     int     `json:"quality" validate:"min=10,max=100"`
	Enhancement string  `json:"enhancement" validate:"required"`
	Factor      float64 `json:"factor" validate:"min=1,max=2"`
	Deliver     bool    `json:"deliver"`
	Filename    string  `json:"filename,omitempty" validate:"-"`

	// Kind is Enhancement as parsed; Enhancement keeps the display label.
	Kind pipeline.Enhancement `json:"-" validate:"-"`
}

// parseForm reads the form values, filling in UI defaults for missing ones.
// The factor is forced to 1.0 when no enhancement is selected.
func parseForm(r *http.Request, v *validator.Validate) (compressForm, error) {
	form := defaultForm()
	form.JobID = strings.TrimSpace(r.FormValue("job_id"))

	if q := strings.TrimSpace(r.FormValue("quality")); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			return form, errors.WithHint(errors.Wrap(err, "parsing quality"), "Quality must be a whole number.")
		}
		form.Quality = n
	}

	kind, err := pipeline.ParseEnhancement(r.FormValue("enhancement"))
	if err != nil {
		return form, err
	}
	form.Kind = kind
	form.Enhancement = kind.Label()

	if f := strings.TrimSpace(r.FormValue("factor")); f != "" {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return form, errors.WithHint(errors.Wrap(err, "parsing factor"), "The enhancement factor must be a number.")
		}
		form.Factor = n
	}
	if kind == pipeline.EnhanceNone {
		form.Factor = 1.0
	}

	switch strings.ToLower(r.FormValue("deliver")) {
	case "on", "true", "1", "yes":
		form.Deliver = true
	}

	if err := v.Struct(form); err != nil {
		return form, errors.WithHint(errors.Wrap(err, "invalid form"), formHint(err))
	}
	return form, nil
}

func formHint(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "The form contains invalid values."
	}
	switch verrs[0].Field() {
	case "Quality":
		return fmt.Sprintf("Quality must be between %d and %d.", qualityMin, qualityMax)
	case "Factor":
		return fmt.Sprintf("The enhancement factor must be between %.1f and %.1f.", factorMin, factorMax)
	case "JobID":
		return "The job id is malformed."
	default:
		return "The form contains invalid values."
	}
}

// checkImageType accepts .jpg/.jpeg/.png names whose content sniffs as JPEG
// or PNG. The file is rewound afterwards.
func checkImageType(filename string, file multipart.File) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png":
	default:
		return errors.Mark(errors.Newf("file extension of %q not allowed", filename), errUnsupportedType)
	}

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return errors.Wrap(err, "sniffing upload")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "rewinding upload")
	}
	if !mtype.Is("image/jpeg") && !mtype.Is("image/png") {
		return errors.Mark(errors.Newf("content of %q detected as %s", filename, mtype.String()), errUnsupportedType)
	}
	return nil
}

// CompressHandler accepts an upload, runs it through the pipeline on a worker
// slot and renders the result page.
func (s *Server) CompressHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	maxBytes := s.cfg.Server.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.reject(w, http.StatusRequestEntityTooLarge, defaultForm(),
				fmt.Sprintf("The upload exceeds the %d MB limit.", s.cfg.Server.MaxUploadMB))
			return
		}
		s.reject(w, http.StatusBadRequest, defaultForm(), "Failed to parse the upload form.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	form, formErr := parseForm(r, s.validate)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.reject(w, http.StatusBadRequest, form, "Please choose an image to upload.")
		return
	}
	defer file.Close()
	form.Filename = header.Filename

	if err := checkImageType(header.Filename, file); err != nil {
		if errors.Is(err, errUnsupportedType) {
			logger.Infof("Rejected upload %q: %v", header.Filename, err)
			metrics.ObserveFailure("type")
			s.reject(w, http.StatusUnsupportedMediaType, form, "Only JPEG and PNG images are supported.")
			return
		}
		logger.Errorf("Failed to inspect upload %q: %v", header.Filename, err)
		s.reject(w, http.StatusInternalServerError, form, "The upload could not be read.")
		return
	}

	if formErr != nil {
		metrics.ObserveFailure("validate")
		s.reject(w, http.StatusBadRequest, form, pipeline.UserMessage(formErr))
		return
	}

	id := s.jobID(form.JobID)
	form.JobID = id
	req := pipeline.CompressionRequest{Quality: form.Quality, Enhancement: form.Kind, Factor: form.Factor}

	var res *pipeline.CompressionResult
	view := &resultView{ID: id}
	err = s.runner.Run(r.Context(), id, func(ctx context.Context) error {
		var err error
		res, err = s.pipe.Process(ctx, file, req)
		if err != nil {
			return err
		}
		s.renderPreviews(file, res, view)
		return nil
	})
	if err != nil {
		s.fail(w, id, form, err)
		return
	}

	rec, err := results.Store(results.Record{
		ID:                id,
		OriginalSize:      res.OriginalSize,
		OriginalSizeKnown: res.OriginalSizeKnown,
		IntermediateSize:  res.IntermediateSize,
		Width:             res.Width,
		Height:            res.Height,
		SourceFormat:      res.SourceFormat,
		SourceMode:        res.SourceMode.String(),
		Quality:           res.Quality,
		Enhancement:       res.Enhancement.String(),
		Factor:            res.Factor,
	}, res.Data)
	if err != nil {
		logger.Errorf("Failed to store result %s: %v", id, err)
		s.reject(w, http.StatusInternalServerError, form, "The result could not be stored.")
		return
	}

	view.DownloadURL = "/download/" + rec.ID
	view.CompressedSize = utils.FormatKB(res.CompressedSize)
	view.OriginalSize = "unknown"
	originalSize := int64(-1)
	if res.OriginalSizeKnown {
		view.OriginalSize = utils.FormatKB(res.OriginalSize)
		originalSize = res.OriginalSize
	}
	if res.IntermediateMeasured {
		view.IntermediateSize = utils.FormatKB(res.IntermediateSize)
	}

	if form.Deliver && s.cfg.Delivery.Enabled() {
		s.deliver(r.Context(), rec, res.Data, form, view)
	}

	metrics.ObserveCompression(res.Enhancement.String(), time.Since(start), originalSize, res.CompressedSize)
	logger.Infof("Compressed %q (%s %dx%d) q=%d %s x%.1f: %s -> %s in %s [%s]",
		header.Filename, res.SourceFormat, res.Width, res.Height, res.Quality, res.Enhancement, res.Factor,
		view.OriginalSize, view.CompressedSize, time.Since(start).Round(time.Millisecond), id)

	page := s.newPage(form)
	page.Result = view
	s.render(w, http.StatusOK, page)
}

// jobID keeps the id the form was rendered with unless it is missing or
// already in use.
func (s *Server) jobID(candidate string) string {
	if candidate == "" {
		return uuid.NewString()
	}
	if _, running := s.runner.GetJobState(candidate); running {
		return uuid.NewString()
	}
	if rec, err := results.GetRecord(candidate); err != nil || rec != nil {
		return uuid.NewString()
	}
	return candidate
}

func (s *Server) renderPreviews(file multipart.File, res *pipeline.CompressionResult, view *resultView) {
	width, quality := s.cfg.UI.PreviewWidth, s.cfg.UI.PreviewQuality

	if _, err := file.Seek(0, io.SeekStart); err == nil {
		if img, _, err := image.Decode(file); err == nil {
			if uri, err := preview.Render(img, width, quality); err == nil {
				view.OriginalPreview = template.URL(uri)
			} else {
				logger.Warnf("Failed to render original preview: %v", err)
			}
		}
	}

	if uri, err := preview.FromJPEG(res.Data, width, quality); err == nil {
		view.CompressedPreview = template.URL(uri)
	} else {
		logger.Warnf("Failed to render compressed preview: %v", err)
	}
}

// deliver publishes the result to the configured backend. Failures are
// reported on the page and in the failure log but never fail the request.
func (s *Server) deliver(ctx context.Context, rec *results.Record, data []byte, form compressForm, view *resultView) {
	backend := s.cfg.Delivery.Backend
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	name := writerbackends.ObjectName(s.cfg.Delivery.SubDir, rec.Digest)
	loc, err := writerbackends.WriteImage(ctx, backend, s.cfg.Delivery.AccessInfo(), name, bytes.NewReader(data))
	metrics.ObserveDelivery(backend, err)
	if err != nil {
		logger.Warnf("Delivery of %s to %s failed: %v", rec.ID, backend, err)
		msg := fmt.Sprintf("The image could not be published to %s. The download below is unaffected.", backend)
		if storeErr := failures.StoreFailure(rec.ID, "delivery", err, msg, form); storeErr != nil {
			logger.Errorf("Failed to record delivery failure for %s: %v", rec.ID, storeErr)
		}
		view.DeliveryError = msg
		return
	}

	if err := results.SetDelivery(rec.ID, loc); err != nil {
		logger.Warnf("Failed to record delivery location for %s: %v", rec.ID, err)
	}
	view.DeliveredTo = loc
}

// fail maps a pipeline or runner error to a status code, records it and
// renders the form with the user-facing message.
func (s *Server) fail(w http.ResponseWriter, id string, form compressForm, err error) {
	status := http.StatusInternalServerError
	stage := pipeline.Stage(err)
	msg := pipeline.UserMessage(err)

	switch {
	case errors.Is(err, job.ErrBusy):
		status, stage = http.StatusServiceUnavailable, "busy"
		msg = "The server is busy. Please try again in a moment."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, stage = http.StatusServiceUnavailable, "cancelled"
		msg = "The request was cancelled before it finished."
	case errors.Is(err, pipeline.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, pipeline.ErrDecode):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrEncode):
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError && stage != "busy" && stage != "cancelled" {
		logger.Errorf("Job %s failed at %s: %+v", id, stage, err)
	} else {
		logger.Warnf("Job %s failed at %s: %v", id, stage, err)
	}
	if storeErr := failures.StoreFailure(id, stage, err, msg, form); storeErr != nil {
		logger.Errorf("Failed to record failure for %s: %v", id, storeErr)
	}
	metrics.ObserveFailure(stage)
	s.reject(w, status, form, msg)
}

func (s *Server) reject(w http.ResponseWriter, status int, form compressForm, msg string) {
	page := s.newPage(form)
	page.Error = msg
	s.render(w, status, page)
}
