package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard"
	"github.com/goliatone/go-formwizard/pkg/autosave"
	"github.com/goliatone/go-formwizard/pkg/offline"
)

var syncBaseURL string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Send every locally saved form to the server",
	Long: `sync reconciles the pending records in the configured store.

Each record is sent to --base-url joined with its page key, or to save_url
from the configuration when no base URL is given. Successful records are
removed; failures are kept with their attempt count.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var closers []func() error
		defer func() {
			for _, fn := range closers {
				_ = fn()
			}
		}()
		backend, err := formwizard.OpenStore(cfg.Store, nil, func(fn func() error) { closers = append(closers, fn) })
		if err != nil {
			return err
		}
		store := offline.NewStore(backend, offline.WithLogger(logger))
		client := &http.Client{Timeout: 30 * time.Second}

		res, err := autosave.Reconcile(cmd.Context(), store, func(key string) autosave.Saver {
			target := cfg.SaveURL
			if base := strings.TrimRight(syncBaseURL, "/"); base != "" {
				target = base + key
			}
			c, cerr := autosave.NewClient(target,
				autosave.WithHTTPClient(client),
				autosave.WithAccept(cfg.Accept),
				autosave.WithCSRF(cfg.CSRFHeader, cfg.CSRFToken),
				autosave.WithClientLogger(logger),
			)
			if cerr != nil {
				logger.Warn("no save url for record", zap.String("page", key), zap.Error(cerr))
				return nil
			}
			return c
		}, logger)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "synced %d, failed %d, skipped %d\n", len(res.Synced), len(res.Failed), len(res.Skipped))
		for _, key := range res.Failed {
			fmt.Fprintf(out, "  failed: %s\n", key)
		}
		return err
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncBaseURL, "base-url", "", "origin the page keys are resolved against")
}
