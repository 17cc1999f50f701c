package preview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/goliatone/go-formwizard/pkg/clock"
)

func TestCacheBust(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	got, err := CacheBust("https://example.test/forms/sc-100/preview?lang=es", now)
	if err != nil {
		t.Fatalf("cache bust: %v", err)
	}
	want := "https://example.test/forms/sc-100/preview?lang=es&t=1700000000123"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestHTTPFetcher(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_500)
	seen := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7 body"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL+"/preview?lang=en", srv.Client(), clock.NewManual(now))
	data, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "%PDF-1.7 body" {
		t.Fatalf("body: got %q", data)
	}
	req := <-seen
	if gotT := req.URL.Query().Get("t"); gotT != strconv.FormatInt(now.UnixMilli(), 10) {
		t.Fatalf("cache-busting t param: got %q", gotT)
	}
	if gotLang := req.URL.Query().Get("lang"); gotLang != "en" {
		t.Fatalf("existing query lost: got %q", gotLang)
	}
	if gotAccept := req.Header.Get("Accept"); gotAccept != "application/pdf" {
		t.Fatalf("accept: got %q", gotAccept)
	}
}

func TestHTTPFetcher_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL+"/empty", srv.Client(), nil).Fetch(context.Background())
	if !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
	if _, err := NewHTTPFetcher(srv.URL+"/broken", srv.Client(), nil).Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for 502")
	}
}

func TestHTTPFetcher_RejectsOversizedDocument(t *testing.T) {
	prev := maxDocument
	maxDocument = 8
	t.Cleanup(func() { maxDocument = prev })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fits" {
			_, _ = w.Write([]byte("%PDF-1.7"))
			return
		}
		_, _ = w.Write([]byte("%PDF-1.7 trailing"))
	}))
	defer srv.Close()

	data, err := NewHTTPFetcher(srv.URL+"/fits", srv.Client(), nil).Fetch(context.Background())
	if err != nil {
		t.Fatalf("document at the limit: %v", err)
	}
	if string(data) != "%PDF-1.7" {
		t.Fatalf("got %q", data)
	}

	_, err = NewHTTPFetcher(srv.URL+"/big", srv.Client(), nil).Fetch(context.Background())
	if !errors.Is(err, ErrDocumentTooLarge) {
		t.Fatalf("expected ErrDocumentTooLarge, got %v", err)
	}
}
