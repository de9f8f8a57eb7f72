// Package client is the typed HTTP client for the CareHub API: generic
// resource CRUD, background jobs and file uploads.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api/v1.
	BaseURL string
	// ResourceURLs overrides BaseURL for individual resources.
	ResourceURLs map[string]string
	// Token is sent as a bearer token when set.
	Token string
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration
	// RetryMax is the number of retries for idempotent requests that fail
	// with a network error or a 5xx. Zero disables retries.
	RetryMax int
	Logger   zerolog.Logger
}

// Client talks to one CareHub deployment.
type Client struct {
	cfg    Config
	http   *retryablehttp.Client
	logger zerolog.Logger
}

// New builds a Client from cfg, filling in the default timeout.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = leveledLogger{cfg.Logger}
	rc.CheckRetry = idempotentRetryPolicy
	// Hand the last response back instead of a "giving up" error so callers
	// still see the status code.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{cfg: cfg, http: rc, logger: cfg.Logger}
}

// BaseURL returns the base URL serving resource.
func (c *Client) BaseURL(resource string) string {
	if u, ok := c.cfg.ResourceURLs[resource]; ok && u != "" {
		return strings.TrimRight(u, "/")
	}
	return c.cfg.BaseURL
}

type retryKey struct{}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func idempotentRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ok, _ := ctx.Value(retryKey{}).(bool); !ok {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// encodeQuery renders params in key order. Values are escaped; keys are
// passed through as given.
func encodeQuery(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(escapeValue(params[k]))
	}
	return b.String()
}

// send issues one request. body may be nil, a []byte, or a value to encode
// as JSON. The caller owns the response body.
func (c *Client) send(ctx context.Context, method, url string, body interface{}, contentType string) (*http.Response, error) {
	var raw interface{}
	switch b := body.(type) {
	case nil:
	case []byte:
		raw = b
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		raw = data
		contentType = "application/json"
	}

	req, err := retryablehttp.NewRequest(method, url, raw)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req = req.WithContext(context.WithValue(ctx, retryKey{}, isIdempotent(method)))
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: url, Err: err}
	}
	c.logger.Debug().
		Str("method", method).
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("api request")
	return resp, nil
}

// doJSON sends a request and decodes a 2xx JSON body into out, which may be
// nil to discard it.
func (c *Client) doJSON(ctx context.Context, method, url string, body, out interface{}) error {
	resp, err := c.send(ctx, method, url, body, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Method: resp.Request.Method, URL: resp.Request.URL.String(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct{ l zerolog.Logger }

func (z leveledLogger) Error(msg string, kv ...interface{}) { z.l.Error().Fields(kv).Msg(msg) }
func (z leveledLogger) Warn(msg string, kv ...interface{})  { z.l.Warn().Fields(kv).Msg(msg) }
func (z leveledLogger) Info(msg string, kv ...interface{})  { z.l.Debug().Fields(kv).Msg(msg) }
func (z leveledLogger) Debug(msg string, kv ...interface{}) { z.l.Debug().Fields(kv).Msg(msg) }
