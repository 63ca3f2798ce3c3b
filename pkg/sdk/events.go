package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// IndexEvent stores source in the index. An empty id lets the server
// assign one.
func (c *Client) IndexEvent(ctx context.Context, index, id string, source map[string]any) (EventAck, error) {
	rc := call{
		op:     "index_event",
		method: http.MethodPost,
		path:   "/" + index + "/_doc",
		body:   source,
	}
	if id != "" {
		rc.method = http.MethodPut
		rc.path += "/" + id
	}
	var out EventAck
	rc.out = &out
	err := c.do(ctx, rc)
	return out, err
}

// GetEvent returns a stored event.
func (c *Client) GetEvent(ctx context.Context, index, id string) (StoredEvent, error) {
	var out StoredEvent
	err := c.do(ctx, call{
		op:     "get_event",
		method: http.MethodGet,
		path:   "/" + index + "/_doc/" + id,
		out:    &out,
	})
	return out, err
}

// DeleteEvent removes an event.
func (c *Client) DeleteEvent(ctx context.Context, index, id string) error {
	return c.do(ctx, call{
		op:     "delete_event",
		method: http.MethodDelete,
		path:   "/" + index + "/_doc/" + id,
	})
}

// BulkEvents stores events in one request, one NDJSON line per event.
// An "_id" key in an event is used as its ID. Per-event failures are
// reported in the result, not as an error.
func (c *Client) BulkEvents(ctx context.Context, index string, events []map[string]any) (BulkResult, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return BulkResult{}, fmt.Errorf("seqdex: encode event %d: %w", i, err)
		}
	}
	return c.BulkNDJSON(ctx, index, buf.Bytes())
}

// BulkNDJSON sends pre-encoded newline-delimited JSON events.
func (c *Client) BulkNDJSON(ctx context.Context, index string, ndjson []byte) (BulkResult, error) {
	var out BulkResult
	err := c.do(ctx, call{
		op:          "bulk",
		method:      http.MethodPost,
		path:        "/" + index + "/_bulk",
		body:        bytes.NewReader(ndjson),
		contentType: "application/x-ndjson",
		out:         &out,
	})
	return out, err
}
