package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/seqdex/internal/domain"
	"github.com/kailas-cloud/seqdex/internal/domain/eql"
	"github.com/kailas-cloud/seqdex/internal/domain/search/request"
	eventuc "github.com/kailas-cloud/seqdex/internal/usecase/event"
	healthuc "github.com/kailas-cloud/seqdex/internal/usecase/health"
	indexuc "github.com/kailas-cloud/seqdex/internal/usecase/index"
	searchuc "github.com/kailas-cloud/seqdex/internal/usecase/search"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeBadRequest         = "bad_request"
	CodeUnauthorized       = "unauthorized"
	CodeSyntaxError        = "syntax_error"
	CodeValidationFailed   = "validation_failed"
	CodeIndexNotFound      = "index_not_found"
	CodeEventNotFound      = "event_not_found"
	CodeIndexAlreadyExists = "index_already_exists"
	CodeInvalidSchema      = "invalid_schema"
	CodeInvalidEvent       = "invalid_event"
	CodeRateLimited        = "rate_limited"
	CodeExecutionError     = "execution_error"
	CodeTimeout            = "timeout"
	CodeNotImplemented     = "not_implemented"
	CodeInternalError      = "internal_error"
)

const (
	defaultSearchTimeout = 30 * time.Second
	maxBodyBytes         = 1 << 20
	maxBulkBytes         = 64 << 20
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the seqdex HTTP API.
type Server struct {
	indices       *indexuc.Service
	events        *eventuc.Service
	search        *searchuc.Service
	health        *healthuc.Service
	defaults      request.Defaults
	timeout       time.Duration
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// Option customizes a Server.
type Option func(*Server)

// WithSearchDefaults sets the values applied when a search request omits a key.
func WithSearchDefaults(d request.Defaults) Option { return func(s *Server) { s.defaults = d } }

// WithSearchTimeout sets the timeout applied when a search request has no ?timeout.
func WithSearchTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewServer creates an HTTP API server.
func NewServer(
	indices *indexuc.Service,
	events *eventuc.Service,
	search *searchuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		indices:  indices,
		events:   events,
		search:   search,
		health:   health,
		defaults: request.DefaultDefaults(),
		timeout:  defaultSearchTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.errorHandlers = []errorHandler{
		syntaxErrorHandler,
		validationErrorHandler,
		stageErrorHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeIndexNotFound),
		sentinelHandler(domain.ErrEventNotFound, http.StatusNotFound, CodeEventNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, CodeIndexAlreadyExists),
		reasonHandler(domain.ErrInvalidSchema, http.StatusBadRequest, CodeInvalidSchema),
		reasonHandler(domain.ErrInvalidEvent, http.StatusBadRequest, CodeInvalidEvent),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/_indices", s.ListIndices)

	r.Route("/{index}", func(r chi.Router) {
		r.Put("/", s.CreateIndex)
		r.Get("/", s.GetIndex)
		r.Delete("/", s.DeleteIndex)

		r.Get("/_eql/search", s.Search)
		r.Post("/_eql/search", s.Search)

		r.Post("/_doc", s.IndexEvent)
		r.Put("/_doc/{id}", s.IndexEvent)
		r.Get("/_doc/{id}", s.GetEvent)
		r.Delete("/_doc/{id}", s.DeleteEvent)
		r.Post("/_bulk", s.Bulk)
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:  string(report.Status),
		Checks:  report.Checks,
		Indices: report.Indices,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type healthResponse struct {
	Status  string                          `json:"status"`
	Checks  map[string]healthuc.CheckResult `json:"checks"`
	Indices int                             `json:"indices"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrEventNotFound,
		domain.ErrAlreadyExists,
		domain.ErrInvalidSchema,
		domain.ErrInvalidEvent,
		domain.ErrRateLimited,
		domain.ErrNotImplemented,
		domain.ErrSyntax,
		domain.ErrValidation,
		domain.ErrTimeout,
		domain.ErrExecution,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// reasonHandler is sentinelHandler for client mistakes: the full error text
// is returned so the caller can fix the request.
func reasonHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, _ string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func syntaxErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var se *eql.SyntaxError
	if !errors.As(err, &se) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Code:    CodeSyntaxError,
		Message: se.Error(),
		Details: map[string]any{"position": se.Pos},
	})
	return true
}

func validationErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	resp := ErrorResponse{Code: CodeValidationFailed, Message: ve.Message}
	if ve.Field != "" {
		resp.Details = map[string]any{"field": ve.Field}
	}
	writeJSON(w, http.StatusBadRequest, resp)
	return true
}

// stageErrorHandler reports the failing stage of timeouts and backend failures.
func stageErrorHandler(w http.ResponseWriter, err error, msg string) bool {
	var te *domain.TimeoutError
	if errors.As(err, &te) {
		writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{
			Code:    CodeTimeout,
			Message: msg,
			Details: map[string]any{"stage": te.Stage},
		})
		return true
	}
	var ee *domain.ExecutionError
	if errors.As(err, &ee) {
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Code:    CodeExecutionError,
			Message: msg,
			Details: map[string]any{"stage": ee.Stage},
		})
		return true
	}
	return false
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

// errorCode maps an item-level error to the code used in bulk responses.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return CodeIndexNotFound
	case errors.Is(err, domain.ErrInvalidEvent):
		return CodeInvalidEvent
	case errors.Is(err, domain.ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternalError
	}
}
