package autosave

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/offline"
)

// SaverResolver picks the saver for a page key. Returning nil skips the
// record.
type SaverResolver func(pageKey string) Saver

// ReconcileResult summarises a Reconcile pass.
type ReconcileResult struct {
	Synced  []string
	Failed  []string
	Skipped []string
}

// Reconcile sends every pending record in store through the saver resolve
// picks for it, outside any page. It follows the page-level rules: a
// success deletes the record, a failure marks it errored and counts the
// attempt. Per-record failures are joined into the returned error.
func Reconcile(ctx context.Context, store *offline.Store, resolve SaverResolver, logger *zap.Logger) (ReconcileResult, error) {
	var res ReconcileResult
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("reconcile")

	var errs []error
	for _, rec := range store.Records() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		saver := resolve(rec.Key)
		if saver == nil {
			res.Skipped = append(res.Skipped, rec.Key)
			continue
		}

		store.UpdateStatus(rec.Key, offline.StatusSyncing, false)
		err := saver.Save(ctx, Submission{Data: rec.FormData, RequestID: rec.RequestID})
		if err != nil {
			store.UpdateStatus(rec.Key, offline.StatusError, true)
			logger.Warn("sync failed", zap.String("page", rec.Key), zap.Int("attempts", rec.Attempts+1), zap.Error(err))
			res.Failed = append(res.Failed, rec.Key)
			errs = append(errs, fmt.Errorf("autosave: sync %s: %w", rec.Key, err))
			continue
		}
		store.Delete(rec.Key)
		logger.Debug("synced", zap.String("page", rec.Key))
		res.Synced = append(res.Synced, rec.Key)
	}
	return res, errors.Join(errs...)
}
