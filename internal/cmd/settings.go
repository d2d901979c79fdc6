package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adamancini/uplift/internal/config"
	"github.com/adamancini/uplift/internal/update"
)

// envPrefix namespaces the environment overrides (UPLIFT_TIMEOUT, ...).
const envPrefix = "UPLIFT"

// logger is the process logger, configured by setupLogger.
var logger = log.New(os.Stderr)

// runtimeSettings are the knobs resolved from defaults, the Updatefile
// settings block, UPLIFT_* variables and flags, in increasing priority.
type runtimeSettings struct {
	Timeout     time.Duration
	StagingDir  string
	Concurrency int
	GitHubAPI   string
	GitHubToken string
}

// loadSettings layers the runtime settings with viper.
func loadSettings(cmd *cobra.Command, file *config.Updatefile) (*runtimeSettings, error) {
	v := viper.New()

	v.SetDefault("timeout", update.DefaultFetchTimeout.String())
	v.SetDefault("staging_dir", "")
	v.SetDefault("concurrency", update.DefaultConcurrency)
	v.SetDefault("github_api", update.DefaultGitHubAPI)

	if file != nil {
		fromFile := map[string]any{}
		if file.Settings.Timeout != "" {
			fromFile["timeout"] = file.Settings.Timeout
		}
		if file.Settings.StagingDir != "" {
			fromFile["staging_dir"] = file.Settings.StagingDir
		}
		if file.Settings.Concurrency != 0 {
			fromFile["concurrency"] = file.Settings.Concurrency
		}
		if err := v.MergeConfigMap(fromFile); err != nil {
			return nil, fmt.Errorf("failed to merge Updatefile settings: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// GITHUB_TOKEN is the conventional name; UPLIFT_GITHUB_TOKEN also works.
	if err := v.BindEnv("github_token", envPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	flags := cmd.Root().PersistentFlags()
	for key, name := range map[string]string{
		"timeout":     "timeout",
		"staging_dir": "staging-dir",
		"concurrency": "concurrency",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	d, err := time.ParseDuration(v.GetString("timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid timeout %q: %w", v.GetString("timeout"), err)
	}
	if d < 0 {
		return nil, fmt.Errorf("invalid timeout %q: must not be negative", v.GetString("timeout"))
	}
	n := v.GetInt("concurrency")
	if n < 0 {
		return nil, fmt.Errorf("invalid concurrency %d: must not be negative", n)
	}

	return &runtimeSettings{
		Timeout:     d,
		StagingDir:  v.GetString("staging_dir"),
		Concurrency: n,
		GitHubAPI:   v.GetString("github_api"),
		GitHubToken: v.GetString("github_token"),
	}, nil
}

// setupLogger configures the process logger from -v, -q and --log-level.
func setupLogger(cmd *cobra.Command) error {
	level := log.InfoLevel
	switch {
	case verbose:
		level = log.DebugLevel
	case quiet:
		level = log.ErrorLevel
	}
	if logLevel != "" {
		l, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		level = l
	}

	logger = log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Prefix: "uplift",
		Level:  level,
	})
	return nil
}
