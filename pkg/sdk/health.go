package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// Health returns the server health report. An unhealthy server answers
// 503; the report is then decoded from the error body and returned along
// with the error.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, call{
		op:     "health",
		method: http.MethodGet,
		path:   "/health",
		out:    &out,
	})
	var re *ResponseError
	if errors.As(err, &re) && re.StatusCode == http.StatusServiceUnavailable {
		_ = json.Unmarshal(re.Body, &out)
	}
	return out, err
}
