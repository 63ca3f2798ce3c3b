package chi

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/seqdex/internal/domain"
	"github.com/kailas-cloud/seqdex/internal/domain/search/request"
)

// Search handles GET|POST /{index}/_eql/search. {index} is a comma-separated
// list of names and patterns.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	timeout, err := s.searchTimeout(r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := request.Parse(splitIndices(chi.URLParam(r, "index")), body, s.defaults)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	resp, err := s.search.Search(ctx, &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// searchTimeout reads ?timeout= as a Go duration ("500ms", "30s").
func (s *Server) searchTimeout(r *http.Request) (time.Duration, error) {
	var raw string
	if err := runtime.BindQueryParameter("form", true, false, "timeout", r.URL.Query(), &raw); err != nil {
		return 0, domain.NewValidationError("timeout", "invalid timeout: %v", err)
	}
	if raw == "" {
		return s.timeout, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, domain.NewValidationError("timeout", "timeout must be a positive duration, got [%s]", raw)
	}
	return d, nil
}

func splitIndices(param string) []string {
	parts := strings.Split(param, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
