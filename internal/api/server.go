// Package api serves the onboarding remote-service API consumed by the
// gateway. Handlers are thin: every operation is delegated to the job worker
// handler that implements it, so the HTTP surface and the BPMN workers share
// one code path.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/common/metrics"
	"merchant-onboarding/internal/common/observability"
	checkapplicationstatus "merchant-onboarding/internal/workers/application/check-application-status"
	generatecontract "merchant-onboarding/internal/workers/contract/generate-contract"
	processdocument "merchant-onboarding/internal/workers/document/process-document"
)

const BasePath = "/api/v1"

// DocumentProcessor is satisfied by *processdocument.Handler.
type DocumentProcessor interface {
	Execute(ctx context.Context, input *processdocument.Input) (*processdocument.Output, error)
}

// StatusChecker is satisfied by *checkapplicationstatus.Handler.
type StatusChecker interface {
	Execute(ctx context.Context, input *checkapplicationstatus.Input) (*checkapplicationstatus.Output, error)
}

// ContractService is satisfied by *generatecontract.Handler.
type ContractService interface {
	Execute(ctx context.Context, input *generatecontract.Input) (*generatecontract.Output, error)
	Open(ctx context.Context, filename string) (io.ReadCloser, int64, error)
}

type Options struct {
	Documents      DocumentProcessor
	Submissions    Submitter
	Status         StatusChecker
	Contracts      ContractService
	MaxUploadBytes int64
	Logger         logger.Logger
	Observability  *observability.Observability
}

type Server struct {
	documents      DocumentProcessor
	submissions    Submitter
	status         StatusChecker
	contracts      ContractService
	maxUploadBytes int64
	validate       *validator.Validate
	logger         logger.Logger
	obs            *observability.Observability
	tracer         trace.Tracer
	router         *mux.Router
}

func NewServer(opts Options) (*Server, error) {
	if opts.Documents == nil || opts.Submissions == nil || opts.Status == nil || opts.Contracts == nil {
		return nil, fmt.Errorf("api server requires document, submission, status and contract services")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}

	s := &Server{
		documents:      opts.Documents,
		submissions:    opts.Submissions,
		status:         opts.Status,
		contracts:      opts.Contracts,
		maxUploadBytes: maxUpload,
		validate:       newValidator(),
		logger:         log.WithFields(map[string]interface{}{"component": "api"}),
		obs:            opts.Observability,
		tracer:         observability.Tracer("merchant-onboarding/api"),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix(BasePath).Subrouter()
	api.HandleFunc("/test", s.testConnection).Methods(http.MethodGet)
	api.HandleFunc("/upload-and-process", s.uploadAndProcess).Methods(http.MethodPost)
	api.HandleFunc("/submit-application", s.submitApplication).Methods(http.MethodPost)
	api.HandleFunc("/application/{id}/status", s.applicationStatus).Methods(http.MethodGet)
	api.HandleFunc("/generate-contract/{id}", s.generateContract).Methods(http.MethodPost)
	api.HandleFunc("/download-contract/{filename}", s.downloadContract).Methods(http.MethodGet, http.MethodHead)
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// instrument wraps every route with a server span, request metrics and an
// access log line. The route label is the mux template, not the raw path.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		ctx, span := s.tracer.Start(r.Context(), r.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
			))
		defer span.End()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		elapsed := time.Since(start)

		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
		metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.obs.RecordRequest(ctx, route, rec.status, elapsed)

		s.logger.Info("HTTP Request", map[string]interface{}{
			"method":      r.Method,
			"route":       route,
			"status":      rec.status,
			"duration_ms": elapsed.Milliseconds(),
		})
	})
}
