// Package transport is the HTTP client shared by the LMS and Reporting
// integrations. It applies authentication, unwraps the platform's response
// envelope, turns non-success answers into typed API errors and governs
// request rate from the quota header the platforms send back.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Platform describes how a remote system frames its responses.
type Platform struct {
	// Name identifies the system in errors and logs ("lms", "reporting").
	Name string

	// SuccessStatus lists the status codes treated as success.
	SuccessStatus []int

	// Envelope is the top-level field holding the payload.
	Envelope string

	// MessageFields are tried in order to extract a message from a
	// structured error body.
	MessageFields []string

	// NormalizeKeys, when set, rewrites the keys of every JSON object in
	// the payload before it is decoded.
	NormalizeKeys func(map[string]any) map[string]any
}

func (p Platform) isSuccess(status int) bool {
	for _, s := range p.SuccessStatus {
		if s == status {
			return true
		}
	}
	return false
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Client provides HTTP client functionality with authentication and quota
// governance. A Client is safe for concurrent use, but the quota counter
// assumes one logical pipeline per platform.
type Client struct {
	http     *http.Client
	baseURL  *url.URL
	platform Platform
	auth     Authenticator
	limiter  *rate.Limiter

	quotaHeader string
	lowWater    int
	cooldown    time.Duration
	sleep       Sleeper

	mu        sync.Mutex
	remaining int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimit paces requests to r per second with the given burst, on
// top of the quota cool-down.
func WithRateLimit(r float64, burst int) Option {
	return func(c *Client) {
		if r > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(r), max(burst, 1))
		}
	}
}

// WithLowWater sets the remaining-quota threshold below which the client
// cools down.
func WithLowWater(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.lowWater = n
		}
	}
}

// WithCooldown sets how long the client pauses when the quota is low.
func WithCooldown(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.cooldown = d
		}
	}
}

// WithQuotaHeader overrides the response header carrying the remaining
// quota.
func WithQuotaHeader(header string) Option {
	return func(c *Client) {
		if header != "" {
			c.quotaHeader = header
		}
	}
}

// WithSleeper replaces the function used for the cool-down pause.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		if s != nil {
			c.sleep = s
		}
	}
}

// New creates a transport client for platform rooted at baseURL.
func New(baseURL string, platform Platform, auth Authenticator, opts ...Option) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.NewConfigError(platform.Name, "invalid base URL "+baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.NewConfigError(platform.Name, "base URL must be absolute: "+baseURL, nil)
	}
	if auth == nil {
		auth = &NoAuth{}
	}

	c := &Client{
		http:        &http.Client{Timeout: DefaultHTTPTimeout},
		baseURL:     u,
		platform:    platform,
		auth:        auth,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		quotaHeader: constants.RateLimitHeader,
		lowWater:    constants.RateLimitLowWater,
		cooldown:    constants.RateLimitCooldown,
		sleep:       sleepContext,
		remaining:   constants.InitialRateLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Platform returns the platform the client talks to.
func (c *Client) Platform() Platform {
	return c.platform
}

// Remaining returns the last observed remaining quota.
func (c *Client) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// URL resolves path against the base URL.
func (c *Client) URL(path string) (string, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", errors.WrapParse("url", path, err)
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

// Request sends payload (JSON encoded, may be nil) to path and decodes the
// payload envelope of a successful answer into out (may be nil). A low
// quota in the response makes Request pause before returning, so the next
// call is always preceded by the cool-down.
func (c *Client) Request(ctx context.Context, method, path string, payload, out any) error {
	raw, err := c.do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return c.decodeEnvelope(raw, path, out)
}

// RequestFirst is Request for endpoints whose envelope is a list holding
// the single created or updated record.
func (c *Client) RequestFirst(ctx context.Context, method, path string, payload, out any) error {
	raw, err := c.do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	var list []json.RawMessage
	if err := c.decodeEnvelope(raw, path, &list); err != nil {
		return err
	}
	if len(list) == 0 {
		return errors.NewParseError("json", path, "response envelope "+c.platform.Envelope+" is empty", nil)
	}
	if err := json.Unmarshal(list[0], out); err != nil {
		return errors.WrapParse("json", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	logger := logging.FromContext(ctx).With().
		Str("system", c.platform.Name).
		Str("method", method).
		Str("path", path).
		Logger()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.WrapResource("wait", "rate limiter", c.platform.Name, err)
	}

	target, err := c.URL(path)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.WrapParse("json", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.WrapResource("create", "request", method+" "+path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.auth.Apply(req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errors.APIError{
			System:   c.platform.Name,
			Endpoint: path,
			Message:  "request failed: " + err.Error(),
			Err:      err,
		}
	}

	raw, readErr := readBody(resp)
	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("API request")

	// The quota is observed on every answer, including errors.
	if err := c.observeQuota(ctx, resp.Header); err != nil {
		return nil, err
	}

	if readErr != nil {
		return nil, readErr
	}
	if !c.platform.isSuccess(resp.StatusCode) {
		return nil, newAPIError(c.platform.Name, resp.StatusCode, path, raw, c.platform.MessageFields)
	}
	return raw, nil
}

// observeQuota records the remaining quota and pauses when it is below the
// low-water mark. A missing or malformed header leaves the counter as is.
func (c *Client) observeQuota(ctx context.Context, h http.Header) error {
	value := strings.TrimSpace(h.Get(c.quotaHeader))
	if value == "" {
		return nil
	}
	remaining, err := strconv.Atoi(value)
	if err != nil {
		logging.FromContext(ctx).Debug().
			Str("system", c.platform.Name).
			Str("header", value).
			Msg("Ignoring malformed rate limit header")
		return nil
	}

	c.mu.Lock()
	c.remaining = remaining
	c.mu.Unlock()

	if remaining >= c.lowWater {
		return nil
	}

	logging.FromContext(ctx).Warn().
		Str("system", c.platform.Name).
		Int("remaining", remaining).
		Dur("cooldown", c.cooldown).
		Msg("Rate limit is low, pausing")

	if err := c.sleep(ctx, c.cooldown); err != nil {
		return errors.WrapResource("wait", "rate limit cooldown", c.platform.Name, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
