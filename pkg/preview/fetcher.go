package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-formwizard/pkg/clock"
)

// ErrNoDocument is returned when the preview endpoint sends no bytes.
var ErrNoDocument = errors.New("preview: empty document")

// ErrDocumentTooLarge is returned when the preview exceeds the size limit.
var ErrDocumentTooLarge = errors.New("preview: document too large")

// maxDocument bounds a fetched preview.
var maxDocument int64 = 64 << 20

// Fetcher retrieves the current PDF proof.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context) ([]byte, error) { return f(ctx) }

// CacheBust appends t=<unix ms> to raw, keeping existing query values.
func CacheBust(raw string, now time.Time) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("preview: parse url: %w", err)
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// HTTPFetcher GETs the preview URL with a cache-busting timestamp.
type HTTPFetcher struct {
	url    string
	client *http.Client
	clock  clock.Clock
}

// NewHTTPFetcher returns a fetcher for previewURL. A nil client uses
// http.DefaultClient and a nil clock the real one.
func NewHTTPFetcher(previewURL string, client *http.Client, c clock.Clock) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{url: previewURL, client: client, clock: clock.OrReal(c)}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	target, err := CacheBust(f.url, f.clock.Now())
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("preview: build request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("preview: get %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("preview: get %s: %s", f.url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocument+1))
	if err != nil {
		return nil, fmt.Errorf("preview: read body: %w", err)
	}
	if int64(len(data)) > maxDocument {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrDocumentTooLarge, maxDocument)
	}
	if len(data) == 0 {
		return nil, ErrNoDocument
	}
	return data, nil
}
