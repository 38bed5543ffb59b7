package routes

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzhttp"

	"squeeze/config"
	"squeeze/job"
	"squeeze/logger"
	"squeeze/metrics"
	"squeeze/pipeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed templates/*.html
var templateFS embed.FS

// Server holds what the handlers share: configuration, the image pipeline
// and the worker runner.
type Server struct {
	cfg      *config.Config
	pipe     *pipeline.Pipeline
	runner   *job.Runner
	tmpl     *template.Template
	validate *validator.Validate
}

// NewServer parses the page templates and wires the handlers' dependencies.
func NewServer(cfg *config.Config, pipe *pipeline.Pipeline, runner *job.Runner) (*Server, error) {
	tmpl, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parsing templates")
	}
	return &Server{
		cfg:      cfg,
		pipe:     pipe,
		runner:   runner,
		tmpl:     tmpl,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Router builds the HTTP handler for every endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.IndexHandler)
	r.Post("/compress", s.CompressHandler)
	r.Get("/download/{id}", DownloadHandler)

	r.Get("/health", s.HealthHandler)
	r.Get("/version", VersionHandler)
	r.Get("/status", s.JobStatusHandler)
	r.Delete("/cancel", s.CancelJobHandler)
	r.Get("/results", ResultQueryHandler)
	r.Get("/results/list", ResultListHandler)
	r.Get("/failures", FailureQueryHandler)
	r.Get("/failures/list", FailureListHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if s.cfg.Delivery.Backend == "directServe" {
		fs := http.StripPrefix("/files/", http.FileServer(http.Dir(s.cfg.Delivery.ServeDir)))
		r.Method(http.MethodGet, "/files/*", fs)
	}

	return gzhttp.GzipHandler(r)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debugf("%s %s -> %d (%d bytes, %s) req=%s remoteAddr=%s",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start),
			middleware.GetReqID(r.Context()), r.RemoteAddr)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}
