// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "repo-insights",
	Short: "A CLI tool to collect daily GitHub repository insights.",
	Long: `repo-insights collects per-repository activity metrics (stargazers,
commits, contributors, traffic views, clone counts) from the GitHub API and
commits them as a per-day time-series dataset into a branch of a GitHub
repository, using that repository itself as the durable store.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Logs go to stderr so that JSON results on stdout stay parseable.
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}
