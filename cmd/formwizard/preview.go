package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/preview"
)

var (
	previewOut string
	previewURL string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Download the current PDF proof",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := strings.TrimSpace(previewURL)
		if target == "" {
			target = cfg.PreviewURL
		}
		if target == "" {
			return errors.New("no preview url: pass --url or set preview_url")
		}
		fetcher := preview.NewHTTPFetcher(target, &http.Client{Timeout: time.Minute}, nil)
		data, err := fetcher.Fetch(cmd.Context())
		if err != nil {
			return err
		}
		if err := os.WriteFile(previewOut, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", previewOut, err)
		}
		logger.Debug("preview written", zap.String("path", previewOut), zap.Int("bytes", len(data)))
		fmt.Fprintf(cmd.OutOrStdout(), "Preview written to %s\n", previewOut)
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVarP(&previewOut, "out", "o", "preview.pdf", "output file")
	previewCmd.Flags().StringVar(&previewURL, "url", "", "preview url (defaults to preview_url)")
}
