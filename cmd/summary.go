// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-insights/internal/gateway"
	"github.com/naka-gawa/repo-insights/internal/usecase"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Prints a statistical digest of the stored dataset",
	Long: `Loads the collected dataset from the storage branch and prints per-metric
distributions (mean, median, p90, max of daily views, uniques and clones)
along with the latest repository totals. Read-only; nothing is published.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ctx := context.Background()

		t, err := resolveTarget(cmd)
		if err != nil {
			return err
		}
		logger := logrus.WithFields(logrus.Fields{
			"owner": t.cfg.Owner,
			"repo":  t.cfg.Repo,
		})

		httpClient, err := gateway.NewHTTPClient(t.token)
		if err != nil {
			return err
		}
		store := gateway.NewGitHubStore(httpClient, t.storeOwner, t.storeRepo, logger)
		summarizer := usecase.NewSummarizer(store, t.cfg, logger)

		summary, err := summarizer.Summarize(ctx)
		if err != nil {
			return fmt.Errorf("summary failed: %w", err)
		}

		jsonData, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal summary to JSON: %w", err)
		}
		fmt.Println(string(jsonData))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	addTargetFlags(summaryCmd)
}
