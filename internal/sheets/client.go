// Package sheets implements the resilient HTTP client for the Apps Script
// spreadsheet backend. The backend is a single web-app URL dispatching on an
// `action` parameter, and its failure modes are unusual for an HTTP API:
// quota exhaustion and script timeouts come back as HTML pages with a 200
// status, permission problems come back as Google login/consent pages, and
// under load the body can be truncated mid-JSON.
//
// The client therefore classifies every response before trusting it:
//
//	404            -> ErrEndpointNotFound (fatal)
//	401/403        -> ErrPermissionDenied (fatal)
//	other non-2xx  -> transient, retried after the HTTP backoff
//	HTML body      -> ErrPermissionDenied when it matches the Google
//	                  permission pattern without a quota marker; otherwise
//	                  transient (quota/timeout), retried after the quota backoff
//	{error: …}     -> ErrBackend (fatal for that call)
//	unparsable     -> transient, retried after the HTTP backoff
//	transport err  -> transient, retried after the network backoff
//
// Transient failures are retried without an attempt limit: the client is
// meant to be left running until connectivity or quota recovers. Callers that
// need a bounded wait use Probe or cancel the context. Identical concurrent
// calls (same action, method, and body) are coalesced into one network
// request via singleflight.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/scanline/go-qc-backend/internal/config"
)

// maxResponseBytes caps how much of a response body is read. Sheet exports
// are large but bounded; anything beyond this is a runaway error page.
const maxResponseBytes = 10 << 20

// htmlPermissionMarkers identify the Google sign-in/consent pages the script
// serves when the deployment is not public. Matched case-insensitively.
var htmlPermissionMarkers = []string{
	"docs.google.com",
	"script.google.com",
	"accounts.google.com",
	"you need access",
}

// htmlQuotaMarkers identify quota/timeout HTML pages, which are transient.
// Their presence overrides the permission classification.
var htmlQuotaMarkers = []string{
	"quota",
	"exceeded",
	"timed out",
}

// EndpointFunc resolves the web-app URL for each request. It is a function
// rather than a string so a runtime settings change (the persisted endpoint
// override) takes effect on the very next call.
type EndpointFunc func() string

// SleepFunc suspends between retry attempts. Implementations must honor
// context cancellation. Injected in tests to avoid wall-clock waits.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client issues classified, retried, coalesced requests against the backend.
// It is safe for concurrent use.
type Client struct {
	cfg      config.SheetsConfig
	endpoint EndpointFunc
	http     *http.Client
	log      zerolog.Logger
	sleep    SleepFunc
	now      func() time.Time
	group    singleflight.Group
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithSleeper substitutes the backoff sleeper (tests pass a no-op recorder).
func WithSleeper(s SleepFunc) Option {
	return func(c *Client) {
		if s != nil {
			c.sleep = s
		}
	}
}

// WithClock substitutes the clock used for the _t cache-buster.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a Client. endpoint may be nil, in which case the configured
// default URL is used for every request.
func New(cfg config.SheetsConfig, endpoint EndpointFunc, opts ...Option) *Client {
	c := &Client{
		cfg:      cfg,
		endpoint: endpoint,
		// No overall request timeout here: Apps Script executions can run
		// up to several minutes, and the retry loop owns failure handling.
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log:   zerolog.Nop(),
		sleep: sleepCtx,
		now:   time.Now,
	}
	if c.endpoint == nil {
		c.endpoint = func() string { return cfg.DefaultURL }
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call performs an action against the backend and returns the parsed JSON
// payload. Transient failures are absorbed by indefinite retry; only the
// fatal taxonomy (see errors.go) and context cancellation are returned.
//
// Concurrent calls with an identical (action, method, body) tuple share a
// single network request and observe the same result.
func (c *Client) Call(ctx context.Context, action, method string, body map[string]any) (json.RawMessage, error) {
	key, payload, err := requestKey(action, method, body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.callLoop(ctx, action, method, payload)
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

// Probe performs a single bounded attempt of the given action. It never
// retries: its purpose is fast feedback on a settings/diagnostics screen, so
// transient failures surface as errors instead of being absorbed.
func (c *Client) Probe(ctx context.Context, action string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()
	_, _, err := c.roundTrip(ctx, action, http.MethodGet, nil)
	return err
}

// callLoop drives the retry state machine: attempt, classify, back off,
// repeat. Fatal errors and cancellation are the only exits besides success.
func (c *Client) callLoop(ctx context.Context, action, method string, payload []byte) (json.RawMessage, error) {
	for attempt := 1; ; attempt++ {
		raw, backoff, err := c.roundTrip(ctx, action, method, payload)
		if err == nil {
			return raw, nil
		}
		if IsFatal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		c.log.Warn().
			Str("action", action).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Err(err).
			Msg("transient sheets failure, retrying")
		if serr := c.sleep(ctx, backoff); serr != nil {
			return nil, serr
		}
	}
}

// roundTrip performs one HTTP exchange and classifies the outcome. On
// transient failure the returned duration is the backoff to apply before the
// next attempt; on fatal failure or success it is zero.
func (c *Client) roundTrip(ctx context.Context, action, method string, payload []byte) (json.RawMessage, time.Duration, error) {
	base := strings.TrimSpace(c.endpoint())
	if base == "" {
		return nil, 0, fmt.Errorf("%w: no endpoint configured", ErrEndpointNotFound)
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, 0, fmt.Errorf("%w: invalid endpoint %q", ErrEndpointNotFound, base)
	}
	q := u.Query()
	q.Set("action", action)
	// Cache-buster: Apps Script fronts cache GET responses aggressively.
	q.Set("_t", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	var rd io.Reader
	if method == http.MethodPost && payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrEndpointNotFound, err)
	}
	if method == http.MethodPost {
		// text/plain keeps the original browser client preflight-free; the
		// script parses the body as JSON regardless, so parity is kept here.
		req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, err
		}
		return nil, c.cfg.NetworkBackoff, fmt.Errorf("network failure: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, err
		}
		return nil, c.cfg.NetworkBackoff, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, 0, fmt.Errorf("%w: HTTP 404 from %s", ErrEndpointNotFound, u.Host)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, 0, fmt.Errorf("%w: HTTP %d", ErrPermissionDenied, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, c.cfg.HTTPBackoff, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body := strings.TrimSpace(string(b))
	if strings.HasPrefix(body, "<") {
		low := strings.ToLower(body)
		if containsAny(low, htmlPermissionMarkers) && !containsAny(low, htmlQuotaMarkers) {
			return nil, 0, fmt.Errorf("%w: script returned a permission page", ErrPermissionDenied)
		}
		return nil, c.cfg.QuotaBackoff, errors.New("HTML response (quota or execution timeout)")
	}

	var probe any
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, c.cfg.HTTPBackoff, fmt.Errorf("malformed JSON: %w", err)
	}
	if obj, ok := probe.(map[string]any); ok {
		if msg, ok := obj["error"]; ok && msg != nil && msg != "" {
			return nil, 0, fmt.Errorf("%w: %v", ErrBackend, msg)
		}
	}
	return json.RawMessage(b), 0, nil
}

// Rows normalizes the two success shapes the backend produces, a bare array
// or {data: [...]}, into a slice of loosely-typed row objects.
func Rows(raw json.RawMessage) ([]map[string]any, error) {
	var arr []map[string]any
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}
	var wrapped struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return nil, errors.New("unexpected response shape: want array or {data: [...]}")
}

// requestKey builds the coalescing key and, for POST, the final body with the
// action injected. encoding/json sorts map keys, so the serialization is
// canonical and identical bodies always coalesce. The _t cache-buster is
// deliberately excluded from the key.
func requestKey(action, method string, body map[string]any) (string, []byte, error) {
	var payload []byte
	if method == http.MethodPost {
		m := make(map[string]any, len(body)+1)
		for k, v := range body {
			m[k] = v
		}
		m["action"] = action
		var err error
		payload, err = json.Marshal(m)
		if err != nil {
			return "", nil, err
		}
	}
	return method + "|" + action + "|" + string(payload), payload, nil
}

// containsAny reports whether s contains any of the markers.
func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
