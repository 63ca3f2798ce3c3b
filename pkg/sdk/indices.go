package sdk

import (
	"context"
	"net/http"
)

type createIndexRequest struct {
	Fields []Field `json:"fields"`
}

type indexList struct {
	Indices []Index `json:"indices"`
}

// CreateIndex creates an index with the given schema.
// Returns an error matching ErrAlreadyExists if the name is taken.
func (c *Client) CreateIndex(ctx context.Context, name string, fields []Field) (Index, error) {
	var out Index
	err := c.do(ctx, call{
		op:     "create_index",
		method: http.MethodPut,
		path:   "/" + name,
		body:   createIndexRequest{Fields: fields},
		out:    &out,
	})
	return out, err
}

// GetIndex returns the index definition.
func (c *Client) GetIndex(ctx context.Context, name string) (Index, error) {
	var out Index
	err := c.do(ctx, call{
		op:     "get_index",
		method: http.MethodGet,
		path:   "/" + name,
		out:    &out,
	})
	return out, err
}

// ListIndices returns all indices.
func (c *Client) ListIndices(ctx context.Context) ([]Index, error) {
	var out indexList
	err := c.do(ctx, call{
		op:     "list_indices",
		method: http.MethodGet,
		path:   "/_indices",
		out:    &out,
	})
	return out.Indices, err
}

// DeleteIndex removes the index and all of its events.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	return c.do(ctx, call{
		op:     "delete_index",
		method: http.MethodDelete,
		path:   "/" + name,
	})
}
