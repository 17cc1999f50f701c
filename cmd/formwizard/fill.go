package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-formwizard"
	"github.com/goliatone/go-formwizard/pkg/schema"
	"github.com/goliatone/go-formwizard/pkg/wizard"
	"github.com/goliatone/go-formwizard/pkg/wizard/terminal"
)

var (
	fillOpenAPI   bool
	fillOperation string
	fillOffline   bool
)

var fillCmd = &cobra.Command{
	Use:   "fill <definition>",
	Short: "Answer a form question by question with autosave",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runFill(ctx, args[0])
	},
}

func init() {
	fillCmd.Flags().BoolVar(&fillOpenAPI, "openapi", false, "treat the definition as an OpenAPI document")
	fillCmd.Flags().StringVar(&fillOperation, "operation", "", "operation id to build the form from (with --openapi)")
	fillCmd.Flags().BoolVar(&fillOffline, "offline", false, "start offline and keep edits in the local store")
}

func loadDefinition(ctx context.Context, path string) (*schema.Definition, error) {
	if !fillOpenAPI {
		return schema.LoadFile(path)
	}
	if strings.TrimSpace(fillOperation) == "" {
		return nil, errors.New("--operation is required with --openapi")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return schema.FromOpenAPI(ctx, data, fillOperation)
}

func runFill(ctx context.Context, path string) error {
	def, err := loadDefinition(ctx, path)
	if err != nil {
		return err
	}

	driver := terminal.NewSurveyDriver(os.Stdout)
	feedback := terminal.NewFeedback(ctx, driver)
	client := &http.Client{Timeout: 30 * time.Second}

	page, err := formwizard.NewPage(def, cfg,
		formwizard.WithLogger(logger),
		formwizard.WithHTTPClient(client),
		formwizard.WithOnline(!fillOffline),
		formwizard.WithToggle(feedback, nil),
		formwizard.WithWizardOptions(
			wizard.WithPresenter(feedback),
			wizard.WithAnnouncer(feedback),
		),
	)
	if err != nil {
		return err
	}
	defer page.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		runner := terminal.NewRunner(page.Wizard,
			terminal.WithPromptDriver(driver),
			terminal.WithBus(page.Bus),
			terminal.WithLogger(logger),
		)
		return runner.Run(gctx)
	})
	if url := cfg.Probe.URL; url != "" && !fillOffline {
		g.Go(func() error {
			err := page.Monitor.Probe(gctx, client, url, cfg.Probe.Interval.D())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		err = nil
	}
	if errors.Is(err, terminal.ErrAborted) {
		logger.Info("wizard aborted, flushing answers")
		err = nil
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer flushCancel()
	if ferr := page.Autosave.SaveNow(flushCtx); ferr != nil {
		logger.Warn("final save failed", zap.Error(ferr))
	}
	if n := page.Offline.PendingCount(); n > 0 {
		fmt.Fprintf(os.Stdout, "%d form(s) saved locally; run \"formwizard sync\" when online.\n", n)
	} else if page.Wizard.Finished() {
		fmt.Fprintln(os.Stdout, "All answers saved.")
	}
	return err
}
