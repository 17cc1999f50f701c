package autosave

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/form"
)

// Accept headers understood by the save endpoint.
const (
	AcceptJSON        = "application/json"
	AcceptTurboStream = "text/vnd.turbo-stream.html"
)

// DefaultCSRFHeader is the header Rails reads the authenticity token from.
const DefaultCSRFHeader = "X-CSRF-Token"

const maxErrorBody = 64 << 10

// Submission is one snapshot sent to the server.
type Submission struct {
	Data form.Data
	// RequestID doubles as the Idempotency-Key so a retried snapshot is
	// recognisable server side.
	RequestID string
}

// Saver persists a submission remotely.
type Saver interface {
	Save(ctx context.Context, sub Submission) error
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, sub Submission) error

// Save implements Saver.
func (f SaverFunc) Save(ctx context.Context, sub Submission) error { return f(ctx, sub) }

// HiddenField is a name/value pair appended to every request body, such as
// "_method" or an authenticity token field.
type HiddenField struct {
	Name  string
	Value string
}

// Client PATCHes form-encoded snapshots to the save URL.
type Client struct {
	url        string
	http       *http.Client
	accept     string
	csrfHeader string
	csrfToken  string
	hidden     map[string]string
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides http.DefaultClient.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithAccept sets the Accept header, AcceptJSON by default.
func WithAccept(accept string) ClientOption {
	return func(cl *Client) {
		if accept = strings.TrimSpace(accept); accept != "" {
			cl.accept = accept
		}
	}
}

// WithCSRF sends token in header. An empty header uses DefaultCSRFHeader.
func WithCSRF(header, token string) ClientOption {
	return func(cl *Client) {
		if header = strings.TrimSpace(header); header != "" {
			cl.csrfHeader = header
		}
		cl.csrfToken = token
	}
}

// WithHiddenFields merges fields into every body. Later fields win on
// name collisions and empty names are ignored.
func WithHiddenFields(fields ...HiddenField) ClientOption {
	return func(cl *Client) {
		if cl.hidden == nil {
			cl.hidden = make(map[string]string, len(fields))
		}
		for _, f := range fields {
			if name := strings.TrimSpace(f.Name); name != "" {
				cl.hidden[name] = f.Value
			}
		}
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger.Named("autosave.client")
		}
	}
}

// NewClient returns a client for saveURL.
func NewClient(saveURL string, opts ...ClientOption) (*Client, error) {
	saveURL = strings.TrimSpace(saveURL)
	if saveURL == "" {
		return nil, ErrNoSaveURL
	}
	c := &Client{
		url:        saveURL,
		http:       http.DefaultClient,
		accept:     AcceptJSON,
		csrfHeader: DefaultCSRFHeader,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// URL reports the save endpoint.
func (c *Client) URL() string { return c.url }

// Save implements Saver. Any non-2xx status is returned as *HTTPError.
func (c *Client) Save(ctx context.Context, sub Submission) error {
	body := sub.Data.Clone()
	if body == nil {
		body = form.Data{}
	}
	for name, value := range c.hidden {
		body[name] = value
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.url, strings.NewReader(body.Encode()))
	if err != nil {
		return fmt.Errorf("autosave: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", c.accept)
	if c.csrfToken != "" {
		req.Header.Set(c.csrfHeader, c.csrfToken)
	}
	requestID := sub.RequestID
	if requestID == "" {
		requestID = NewRequestID(time.Now())
	}
	req.Header.Set("Idempotency-Key", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("autosave: patch %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Debug("saved", zap.String("request_id", requestID), zap.Int("fields", len(sub.Data)))
		return nil
	}

	httpErr := &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	if resp.StatusCode == http.StatusUnprocessableEntity && isJSON(resp.Header.Get("Content-Type")) {
		payload, err := decodeErrorPayload(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil {
			c.logger.Warn("decode validation payload", zap.Error(err))
		} else {
			httpErr.Errors = MapErrorPayload(sub.Data.Names(), payload)
		}
	}
	return httpErr
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// decodeErrorPayload accepts {"errors": {...}} or a bare object, with each
// value either a string or a list of strings.
func decodeErrorPayload(r io.Reader) (map[string][]string, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}
	if nested, ok := raw["errors"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err == nil {
			raw = inner
		} else {
			raw = map[string]json.RawMessage{"form": nested}
		}
	}

	out := make(map[string][]string, len(raw))
	for key, value := range raw {
		var list []string
		if err := json.Unmarshal(value, &list); err == nil {
			out[key] = list
			continue
		}
		var single string
		if err := json.Unmarshal(value, &single); err == nil {
			out[key] = []string{single}
		}
	}
	return out, nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRequestID returns a monotonic ULID for t.
func NewRequestID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
