package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kailas-cloud/seqdex/internal/version"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 1 << 20
)

// Client talks to a seqdex server over HTTP. Safe for concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	token     string
	userAgent string
	obs       *observer
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("seqdex: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("seqdex: base url %q must be http or https", baseURL)
	}

	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.userAgent == "" {
		cfg.userAgent = "seqdex-go/" + version.Version
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		base:      base,
		http:      cfg.httpClient,
		token:     cfg.token,
		userAgent: cfg.userAgent,
		obs:       obs,
	}, nil
}

// call is one API request. body is JSON-encoded unless it is an io.Reader;
// out, when non-nil, receives the decoded 2xx response.
type call struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        any
	contentType string
	out         any
}

func (c *Client) do(ctx context.Context, rc call) (err error) {
	start := time.Now()
	defer func() { c.obs.observe(rc.op, start, err) }()

	req, err := c.newRequest(ctx, rc)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("seqdex: %s %s: %w", rc.method, rc.path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newResponseError(resp)
	}
	defer func() { _ = resp.Body.Close() }()

	if rc.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(rc.out); err != nil {
		return fmt.Errorf("seqdex: decode %s response: %w", rc.op, err)
	}
	return nil
}

// newRequest joins the unescaped rc.path onto the base URL; url.URL escapes
// it on the way out, leaving "," and "*" in index lists readable.
func (c *Client) newRequest(ctx context.Context, rc call) (*http.Request, error) {
	u := *c.base
	u.RawPath = ""
	u.Path = c.base.Path + rc.path
	u.RawQuery = rc.query.Encode()

	var body io.Reader
	contentType := rc.contentType
	switch b := rc.body.(type) {
	case nil:
	case io.Reader:
		body = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("seqdex: encode %s request: %w", rc.op, err)
		}
		body = bytes.NewReader(data)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, rc.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("seqdex: build %s request: %w", rc.op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
