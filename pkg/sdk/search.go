package sdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SearchOption tunes a single search call.
type SearchOption func(*url.Values)

// WithSearchTimeout bounds the search on the server side. The server
// answers 504 when it runs out.
func WithSearchTimeout(d time.Duration) SearchOption {
	return func(q *url.Values) {
		q.Set("timeout", d.String())
	}
}

// Search runs an EQL query over indices. Each entry may be a name or a
// wildcard pattern such as "logs-*".
func (c *Client) Search(ctx context.Context, indices []string, req SearchRequest, opts ...SearchOption) (*SearchResponse, error) {
	q := url.Values{}
	for _, o := range opts {
		o(&q)
	}

	var out SearchResponse
	if err := c.do(ctx, call{
		op:     "search",
		method: http.MethodPost,
		path:   "/" + strings.Join(indices, ",") + "/_eql/search",
		query:  q,
		body:   req,
		out:    &out,
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchAll follows search_after until results run out or fn returns false.
// Meaningful for queries without a head or tail pipe.
func (c *Client) SearchAll(
	ctx context.Context, indices []string, req SearchRequest,
	fn func(*SearchResponse) bool, opts ...SearchOption,
) error {
	for {
		resp, err := c.Search(ctx, indices, req, opts...)
		if err != nil {
			return err
		}
		if !fn(resp) || len(resp.SearchAfter) == 0 {
			return nil
		}
		req.SearchAfter = resp.SearchAfter
	}
}
