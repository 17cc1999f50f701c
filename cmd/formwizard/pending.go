package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formwizard"
	"github.com/goliatone/go-formwizard/pkg/config"
	"github.com/goliatone/go-formwizard/pkg/offline"
)

var pendingWatch bool

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Print how many forms wait to be synced",
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
		out := cmd.OutOrStdout()

		if !pendingWatch {
			for _, rec := range store.Records() {
				fmt.Fprintf(out, "%-40s %-8s attempts=%d saved=%s\n", rec.Key, rec.Status, rec.Attempts, rec.SavedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(out, "pending: %d\n", store.PendingCount())
			return nil
		}

		if cfg.Store.Driver != config.StoreFile {
			return errors.New("--watch needs the file store driver")
		}
		w, err := offline.NewWatcher(store, cfg.Store.Path, logger)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		err = w.Run(ctx, func(n int) { fmt.Fprintf(out, "pending: %d\n", n) })
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	pendingCmd.Flags().BoolVarP(&pendingWatch, "watch", "w", false, "keep printing the count as records change")
}
