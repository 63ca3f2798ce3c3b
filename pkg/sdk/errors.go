package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Sentinel errors matched by *ResponseError through errors.Is.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrExecution     = errors.New("execution error")
	ErrTimeout       = errors.New("timeout")
)

// ResponseError is a non-2xx response from the server. Body holds the
// whole response body, read before the error was built.
type ResponseError struct {
	Method     string
	Target     string // host and request URI
	StatusCode int
	StatusLine string // e.g. "HTTP/1.1 404 Not Found"
	Body       []byte
}

// newResponseError drains and closes resp.Body.
func newResponseError(resp *http.Response) *ResponseError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()

	e := &ResponseError{
		StatusCode: resp.StatusCode,
		StatusLine: fmt.Sprintf("%s %s", resp.Proto, resp.Status),
		Body:       body,
	}
	if req := resp.Request; req != nil {
		e.Method = req.Method
		e.Target = req.URL.Host + req.URL.RequestURI()
	}
	return e
}

func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.Target, e.StatusLine)
	if len(e.Body) > 0 {
		msg += "\n" + string(e.Body)
	}
	return msg
}

// Is maps the status code onto the package sentinels.
func (e *ResponseError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return target == ErrBadRequest
	case http.StatusUnauthorized:
		return target == ErrUnauthorized
	case http.StatusNotFound:
		return target == ErrNotFound
	case http.StatusConflict:
		return target == ErrAlreadyExists
	case http.StatusTooManyRequests:
		return target == ErrRateLimited
	case http.StatusBadGateway:
		return target == ErrExecution
	case http.StatusGatewayTimeout:
		return target == ErrTimeout
	}
	return false
}

// APIError is the structured error body the server sends.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// API decodes the body as an APIError. ok is false when the body is not one.
func (e *ResponseError) API() (apiErr APIError, ok bool) {
	if err := json.Unmarshal(e.Body, &apiErr); err != nil || apiErr.Code == "" {
		return APIError{}, false
	}
	return apiErr, true
}
