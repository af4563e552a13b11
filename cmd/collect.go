// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-insights/internal/domain"
	"github.com/naka-gawa/repo-insights/internal/gateway"
	"github.com/naka-gawa/repo-insights/internal/usecase"
)

// target bundles the flag values shared by the collect and summary commands.
type target struct {
	cfg        usecase.Config
	storeOwner string
	storeRepo  string
	token      string
}

// resolveTarget reads the shared flags and environment. The format string
// is validated here so an unsupported format aborts before any remote call.
func resolveTarget(cmd *cobra.Command) (*target, error) {
	owner, _ := cmd.Flags().GetString("owner")
	repo, _ := cmd.Flags().GetString("repo")
	storeOwner, _ := cmd.Flags().GetString("store-owner")
	storeRepo, _ := cmd.Flags().GetString("store-repo")
	branch, _ := cmd.Flags().GetString("branch")
	dir, _ := cmd.Flags().GetString("dir")
	formatStr, _ := cmd.Flags().GetString("format")

	format, err := domain.ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}

	// The storage repository defaults to the tracked repository itself.
	if storeOwner == "" {
		storeOwner = owner
	}
	if storeRepo == "" {
		storeRepo = repo
	}

	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN environment variable is not set")
	}

	return &target{
		cfg: usecase.Config{
			Owner:  owner,
			Repo:   repo,
			Branch: branch,
			Dir:    dir,
			Format: format,
		},
		storeOwner: storeOwner,
		storeRepo:  storeRepo,
		token:      token,
	}, nil
}

// addTargetFlags registers the shared flags on a command.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("owner", "o", "", "Tracked repository owner (required)")
	cmd.Flags().StringP("repo", "r", "", "Tracked repository name (required)")
	cmd.Flags().String("store-owner", "", "Storage repository owner (defaults to --owner)")
	cmd.Flags().String("store-repo", "", "Storage repository name (defaults to --repo)")
	cmd.Flags().String("branch", "repository-insights", "Storage branch for the dataset")
	cmd.Flags().String("dir", ".insights", "Root directory for the dataset inside the branch")
	cmd.Flags().String("format", "json", "Dataset format: json or csv")
	cmd.MarkFlagRequired("owner")
	cmd.MarkFlagRequired("repo")
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collects today's repository metrics and commits them to the storage branch",
	Long: `Collects stargazer, commit, contributor, traffic and clone counts for the
tracked repository, upserts yesterday's record into the stored dataset
(backfilling the most recent 14 days if the dataset is thin), and publishes
the updated dataset as a new commit on the storage branch.`,
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
		fetcher := gateway.NewGitHubGateway(httpClient, logger)
		store := gateway.NewGitHubStore(httpClient, t.storeOwner, t.storeRepo, logger)
		collector := usecase.NewCollector(fetcher, store, t.cfg, logger)

		result, err := collector.Run(ctx)
		if err != nil {
			return fmt.Errorf("collection failed: %w", err)
		}

		jsonData, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result to JSON: %w", err)
		}
		fmt.Println(string(jsonData))

		// When running under a workflow runner, expose the counters as
		// named outputs for downstream steps.
		if outPath := os.Getenv("GITHUB_OUTPUT"); outPath != "" {
			if err := writeRunnerOutputs(outPath, result); err != nil {
				return err
			}
		}
		return nil
	},
}

// writeRunnerOutputs appends name=value result lines to the runner's
// output file.
func writeRunnerOutputs(path string, result *usecase.Result) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open runner output file: %w", err)
	}
	defer f.Close()

	outputs := []struct {
		name  string
		value interface{}
	}{
		{"date", result.Date},
		{"stargazers", result.Stargazers},
		{"commits", result.Commits},
		{"contributors", result.Contributors},
		{"traffic_views", result.TrafficViews},
		{"traffic_uniques", result.TrafficUniques},
		{"clones_count", result.ClonesCount},
		{"clones_uniques", result.ClonesUniques},
		{"commit_sha", result.CommitSHA},
	}
	for _, o := range outputs {
		if _, err := fmt.Fprintf(f, "%s=%v\n", o.name, o.value); err != nil {
			return fmt.Errorf("failed to write runner output: %w", err)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(collectCmd)
	addTargetFlags(collectCmd)
}
