package autosave

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/form"
	"github.com/goliatone/go-formwizard/pkg/offline"
	"github.com/goliatone/go-formwizard/pkg/storage"
)

func TestReconcile(t *testing.T) {
	store := offline.NewStore(storage.NewMemory())
	store.SaveRecord(offline.Record{Key: "/forms/a", FormData: form.Data{"x": "1"}, RequestID: "req-a"})
	store.SaveRecord(offline.Record{Key: "/forms/b", FormData: form.Data{"x": "2"}})
	store.SaveRecord(offline.Record{Key: "/forms/c", FormData: form.Data{"x": "3"}})

	var gotIDs []string
	ok := SaverFunc(func(_ context.Context, sub Submission) error {
		gotIDs = append(gotIDs, sub.RequestID)
		return nil
	})
	failing := SaverFunc(func(context.Context, Submission) error { return errors.New("503") })

	res, err := Reconcile(context.Background(), store, func(key string) Saver {
		switch key {
		case "/forms/a":
			return ok
		case "/forms/b":
			return failing
		default:
			return nil
		}
	}, nil)
	if err == nil {
		t.Fatalf("expected joined error for the failed record")
	}

	want := ReconcileResult{Synced: []string{"/forms/a"}, Failed: []string{"/forms/b"}, Skipped: []string{"/forms/c"}}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"req-a"}, gotIDs); diff != "" {
		t.Fatalf("request ids mismatch (-want +got):\n%s", diff)
	}
	if store.Load("/forms/a") != nil {
		t.Fatalf("synced record should be deleted")
	}
	failed := store.Load("/forms/b")
	if failed == nil || failed.Status != offline.StatusError || failed.Attempts != 1 {
		t.Fatalf("failed record should be errored with one attempt, got %+v", failed)
	}
	if store.Load("/forms/c").Status != offline.StatusPending {
		t.Fatalf("skipped record must be untouched")
	}
}
