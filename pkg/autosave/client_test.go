package autosave

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/oklog/ulid/v2"

	"github.com/goliatone/go-formwizard/pkg/form"
)

func TestClient_SendsFormEncodedPatch(t *testing.T) {
	type captured struct {
		Method      string
		ContentType string
		Accept      string
		CSRF        string
		Key         string
		Body        url.Values
	}
	var (
		mu  sync.Mutex
		got captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body, _ := url.ParseQuery(string(raw))
		mu.Lock()
		defer mu.Unlock()
		got = captured{
			Method:      r.Method,
			ContentType: r.Header.Get("Content-Type"),
			Accept:      r.Header.Get("Accept"),
			CSRF:        r.Header.Get("X-CSRF-Token"),
			Key:         r.Header.Get("Idempotency-Key"),
			Body:        body,
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL,
		WithHTTPClient(srv.Client()),
		WithCSRF("", "tok-123"),
		WithAccept(AcceptTurboStream),
		WithHiddenFields(HiddenField{Name: "_method", Value: "patch"}, HiddenField{Name: " ", Value: "x"}),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	id := NewRequestID(time.Now())
	if err := client.Save(context.Background(), Submission{
		Data:      form.Data{"plaintiff_name": "Jane & Co"},
		RequestID: id,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	want := captured{
		Method:      http.MethodPatch,
		ContentType: "application/x-www-form-urlencoded",
		Accept:      AcceptTurboStream,
		CSRF:        "tok-123",
		Key:         id,
		Body: url.Values{
			"_method":        {"patch"},
			"plaintiff_name": {"Jane & Co"},
		},
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_GeneratesIdempotencyKey(t *testing.T) {
	keys := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get("Idempotency-Key")
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	if err := client.Save(context.Background(), Submission{Data: form.Data{"a": "1"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	key := <-keys
	if _, err := ulid.Parse(key); err != nil {
		t.Fatalf("idempotency key %q is not a ULID: %v", key, err)
	}
}

func TestClient_MapsValidationErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"errors":{"submission[plaintiff_name]":["can't be blank"],"base":"Form is locked"}}`)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	err := client.Save(context.Background(), Submission{Data: form.Data{"plaintiff_name": ""}})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %v", err)
	}
	want := ErrorMapping{
		Fields: map[string][]string{"plaintiff_name": {"can't be blank"}},
		Form:   []string{"Form is locked"},
	}
	if diff := cmp.Diff(want, httpErr.Errors); diff != "" {
		t.Fatalf("mapping mismatch (-want +got):\n%s", diff)
	}
	if httpErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d", httpErr.StatusCode)
	}
}

func TestClient_ServerErrorAndTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	client, _ := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	err := client.Save(context.Background(), Submission{Data: form.Data{}})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 HTTPError, got %v", err)
	}

	srv.Close()
	err = client.Save(context.Background(), Submission{Data: form.Data{}})
	if err == nil || errors.As(err, &httpErr) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestNewClient_RequiresURL(t *testing.T) {
	if _, err := NewClient("  "); !errors.Is(err, ErrNoSaveURL) {
		t.Fatalf("expected ErrNoSaveURL, got %v", err)
	}
}

func TestMapErrorPayload(t *testing.T) {
	fields := []string{"plaintiff_name", "claim.amount", "defendant_address"}

	tests := []struct {
		name    string
		payload map[string][]string
		want    ErrorMapping
	}{
		{
			name:    "rails brackets",
			payload: map[string][]string{"form_submission[plaintiff_name]": {" required ", "required"}},
			want:    ErrorMapping{Fields: map[string][]string{"plaintiff_name": {"required"}}},
		},
		{
			name:    "json pointer with wrapper and index",
			payload: map[string][]string{"/data/claim/0/amount": {"too large"}},
			want:    ErrorMapping{Fields: map[string][]string{"claim.amount": {"too large"}}},
		},
		{
			name:    "underscore join",
			payload: map[string][]string{"defendant.address": {"missing"}},
			want:    ErrorMapping{Fields: map[string][]string{"defendant_address": {"missing"}}},
		},
		{
			name:    "unknown becomes form level",
			payload: map[string][]string{"nope": {"bad"}, "__all__": {"locked", ""}},
			want:    ErrorMapping{Form: []string{"locked", "bad"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapErrorPayload(fields, tt.payload)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("mapping mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
