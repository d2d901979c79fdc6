// Package cmd contains the CLI command implementations.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	verbose      bool
	quiet        bool
	logLevel     string
	timeout      time.Duration
	stagingDir   string
	concurrency  int
)

// upliftVersion is set during command initialization
var upliftVersion = "dev"

// Execute runs the root command with interrupt-aware context.
func Execute(version, commit, date string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return newRootCmd(version, commit, date).ExecuteContext(ctx)
}

func newRootCmd(version, commit, date string) *cobra.Command {
	upliftVersion = version
	buildCommit, buildDate = commit, date

	rootCmd := &cobra.Command{
		Use:   "uplift",
		Short: "Keep installed add-ons and scripts up to date",
		Long: `uplift checks installed components against their release pages and
replaces them with newer releases, keeping the previous version as a backup.

Components are listed in an Updatefile:

  version: 1
  components:
    - name: demo
      source: https://github.com/owner/demo/
      installed_version: 0.0.1
      install_path: ~/addons/demo
      strategy: scrape          # or github-api`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger(cmd)
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	flags.StringVar(&configPath, "config", "", "Path to Updatefile")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.DurationVar(&timeout, "timeout", 0, "Download timeout (default 100s)")
	flags.StringVar(&stagingDir, "staging-dir", "", "Staging directory (default <executable dir>/update_staging)")
	flags.IntVar(&concurrency, "concurrency", 0, "Parallel release checks (default 4)")

	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newInstallCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newBackupCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}
