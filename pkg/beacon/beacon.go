// Package beacon sends small fire-and-forget JSON requests whose outcome
// never blocks the form: the tutorial-completed marker and the "email me
// this form" action. Failures are logged and otherwise ignored.
package beacon

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
	"sync"
	"time"

	"go.uber.org/zap"
)

// TutorialCompletedPath is joined to the base URL by TutorialCompleted.
const TutorialCompletedPath = "/profile/tutorial_completed"

// DefaultTimeout bounds each request.
const DefaultTimeout = 10 * time.Second

// ErrNoURL is returned when a request has no target.
var ErrNoURL = errors.New("beacon: url is required")

// Client dispatches beacons in the background.
type Client struct {
	http       *http.Client
	base       string
	csrfHeader string
	csrfToken  string
	timeout    time.Duration
	logger     *zap.Logger

	wg sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.Named("beacon")
		}
	}
}

// WithCSRF sends token in header on every request.
func WithCSRF(header, token string) Option {
	return func(c *Client) {
		c.csrfHeader = strings.TrimSpace(header)
		c.csrfToken = token
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New returns a client posting relative paths against baseURL. A nil
// httpClient uses http.DefaultClient.
func New(httpClient *http.Client, baseURL string, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		http:    httpClient,
		base:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// TutorialCompleted records that the user finished the onboarding tour.
func (c *Client) TutorialCompleted(ctx context.Context) {
	if c == nil {
		return
	}
	target := ""
	if c.base != "" {
		target = c.base + TutorialCompletedPath
	}
	c.dispatch(ctx, "tutorial_completed", target, map[string]any{})
}

// SendEmail posts payload to target, which may be absolute or relative to
// the base URL.
func (c *Client) SendEmail(ctx context.Context, target string, payload any) {
	if c == nil {
		return
	}
	c.dispatch(ctx, "send_email", c.resolve(target), payload)
}

// Wait blocks until every dispatched beacon has finished.
func (c *Client) Wait() {
	if c == nil {
		return
	}
	c.wg.Wait()
}

func (c *Client) dispatch(ctx context.Context, name, target string, payload any) {
	if ctx == nil {
		ctx = context.Background()
	}
	// The request outlives the caller's cancellation but keeps its values.
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.post(ctx, target, payload); err != nil {
			c.logger.Warn("beacon failed", zap.String("beacon", name), zap.Error(err))
			return
		}
		c.logger.Debug("beacon sent", zap.String("beacon", name))
	}()
}

func (c *Client) post(ctx context.Context, target string, payload any) error {
	if target == "" {
		return ErrNoURL
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("beacon: encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("beacon: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.csrfHeader != "" && c.csrfToken != "" {
		req.Header.Set(c.csrfHeader, c.csrfToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("beacon: post %s: %w", target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("beacon: post %s: %s", target, resp.Status)
	}
	return nil
}

func (c *Client) resolve(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	if u, err := url.Parse(target); err == nil && u.IsAbs() {
		return target
	}
	if c.base == "" {
		return ""
	}
	return c.base + "/" + strings.TrimLeft(target, "/")
}
