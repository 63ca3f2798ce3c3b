package chi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	dombatch "github.com/kailas-cloud/seqdex/internal/domain/batch"
	domevent "github.com/kailas-cloud/seqdex/internal/domain/event"
	eventuc "github.com/kailas-cloud/seqdex/internal/usecase/event"
)

// idKey carries the event ID inside a bulk line.
const idKey = "_id"

// EventResponse acknowledges a write or returns a stored event.
type EventResponse struct {
	Index     string         `json:"_index"`
	ID        string         `json:"_id"`
	Result    string         `json:"result,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
	Source    map[string]any `json:"_source,omitempty"`
}

// BulkItem is the outcome of one bulk line.
type BulkItem struct {
	Line   int            `json:"line"`
	ID     string         `json:"_id,omitempty"`
	Status string         `json:"status"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// BulkResponse is the body of POST /{index}/_bulk.
type BulkResponse struct {
	Took      int64      `json:"took"`
	Errors    bool       `json:"errors"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Items     []BulkItem `json:"items"`
}

// IndexEvent handles POST /{index}/_doc and PUT /{index}/_doc/{id}.
func (s *Server) IndexEvent(w http.ResponseWriter, r *http.Request) {
	index := chi.URLParam(r, "index")

	source, err := decodeSource(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ev, created, err := s.events.Index(r.Context(), index, chi.URLParam(r, "id"), source)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status, result := http.StatusOK, "updated"
	if created {
		status, result = http.StatusCreated, "created"
		w.Header().Set("Location", fmt.Sprintf("/%s/_doc/%s", index, ev.ID()))
	}
	writeJSON(w, status, EventResponse{
		Index:     index,
		ID:        ev.ID(),
		Result:    result,
		Timestamp: ev.Timestamp(),
	})
}

// GetEvent handles GET /{index}/_doc/{id}.
func (s *Server) GetEvent(w http.ResponseWriter, r *http.Request) {
	index := chi.URLParam(r, "index")
	ev, err := s.events.Get(r.Context(), index, chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EventResponse{
		Index:     index,
		ID:        ev.ID(),
		Timestamp: ev.Timestamp(),
		Source:    ev.Source(),
	})
}

// DeleteEvent handles DELETE /{index}/_doc/{id}.
func (s *Server) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	index, id := chi.URLParam(r, "index"), chi.URLParam(r, "id")
	if err := s.events.Delete(r.Context(), index, id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EventResponse{Index: index, ID: id, Result: "deleted"})
}

// Bulk handles POST /{index}/_bulk. The body holds one event source per
// line; an "_id" key names the event. Malformed lines fail individually.
func (s *Server) Bulk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	scanner := bufio.NewScanner(http.MaxBytesReader(w, r.Body, maxBulkBytes))
	scanner.Buffer(make([]byte, 0, 64*1024), 2*domevent.MaxSourceSize)

	var (
		items  []BulkItem
		batch  []eventuc.Item
		batchN []int // position in items of each batch entry
	)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		item, err := bulkItem(raw)
		if err != nil {
			items = append(items, BulkItem{
				Line:   line,
				Status: string(dombatch.StatusError),
				Error:  &ErrorResponse{Code: CodeBadRequest, Message: err.Error()},
			})
			continue
		}
		batchN = append(batchN, len(items))
		items = append(items, BulkItem{Line: line, ID: item.ID})
		batch = append(batch, item)
	}
	if err := scanner.Err(); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid bulk body: "+err.Error())
		return
	}
	if len(items) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "bulk body has no events")
		return
	}

	if len(batch) > 0 {
		for n, res := range s.events.Bulk(r.Context(), chi.URLParam(r, "index"), batch) {
			it := &items[batchN[n]]
			it.ID = res.ID()
			it.Status = string(res.Status())
			if res.Err() != nil {
				it.Error = &ErrorResponse{Code: errorCode(res.Err()), Message: res.Err().Error()}
			}
		}
	}

	resp := BulkResponse{Items: items}
	for _, it := range items {
		if it.Error != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	resp.Errors = resp.Failed > 0
	resp.Took = time.Since(start).Milliseconds()
	writeJSON(w, http.StatusOK, resp)
}

func bulkItem(raw []byte) (eventuc.Item, error) {
	source, err := decodeSource(bytes.NewReader(raw))
	if err != nil {
		return eventuc.Item{}, err
	}
	var id string
	if v, ok := source[idKey]; ok {
		if id, ok = v.(string); !ok {
			return eventuc.Item{}, fmt.Errorf("%s must be a string", idKey)
		}
		delete(source, idKey)
	}
	return eventuc.Item{ID: id, Source: source}, nil
}

// decodeSource reads a single JSON object, keeping numbers exact.
func decodeSource(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var source map[string]any
	if err := dec.Decode(&source); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if source == nil {
		return nil, errors.New("event must be a JSON object")
	}
	if dec.More() {
		return nil, errors.New("unexpected data after event object")
	}
	return source, nil
}
