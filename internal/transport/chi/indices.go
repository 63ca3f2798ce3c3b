package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
)

// FieldDefinition is one schema field on the wire.
type FieldDefinition struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// CreateIndexRequest is the body of PUT /{index}.
type CreateIndexRequest struct {
	Fields []FieldDefinition `json:"fields"`
}

// IndexResponse describes an index.
type IndexResponse struct {
	Name      string            `json:"name"`
	Fields    []FieldDefinition `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
}

// IndexListResponse is the body of GET /_indices.
type IndexListResponse struct {
	Indices []IndexResponse `json:"indices"`
}

// CreateIndex handles PUT /{index}.
func (s *Server) CreateIndex(w http.ResponseWriter, r *http.Request) {
	var req CreateIndexRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	fields, err := fieldsFromRequest(req.Fields)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidSchema, err.Error())
		return
	}

	idx, err := s.indices.Create(r.Context(), chi.URLParam(r, "index"), fields)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/"+idx.Name())
	writeJSON(w, http.StatusCreated, indexToResponse(idx))
}

// GetIndex handles GET /{index}.
func (s *Server) GetIndex(w http.ResponseWriter, r *http.Request) {
	idx, err := s.indices.Get(r.Context(), chi.URLParam(r, "index"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, indexToResponse(idx))
}

// DeleteIndex handles DELETE /{index}.
func (s *Server) DeleteIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.indices.Delete(r.Context(), chi.URLParam(r, "index")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListIndices handles GET /_indices.
func (s *Server) ListIndices(w http.ResponseWriter, r *http.Request) {
	indices, err := s.indices.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]IndexResponse, len(indices))
	for i, idx := range indices {
		items[i] = indexToResponse(idx)
	}
	writeJSON(w, http.StatusOK, IndexListResponse{Indices: items})
}

func fieldsFromRequest(defs []FieldDefinition) ([]field.Field, error) {
	fields := make([]field.Field, 0, len(defs))
	for _, d := range defs {
		f, err := field.New(d.Name, field.Type(d.Type))
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", d.Name, err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func indexToResponse(idx domidx.Index) IndexResponse {
	fields := make([]FieldDefinition, len(idx.Fields()))
	for i, f := range idx.Fields() {
		fields[i] = FieldDefinition{Name: f.Name(), Type: string(f.FieldType())}
	}
	return IndexResponse{
		Name:      idx.Name(),
		Fields:    fields,
		CreatedAt: time.UnixMilli(idx.CreatedAt()).UTC(),
	}
}
