package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/adamancini/uplift/internal/output"
)

// errAllChecksFailed is returned when no component could be checked.
var errAllChecksFailed = errors.New("every component check failed")

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check components for newer releases",
		Long: `Check resolves the latest release of every component in the Updatefile
and reports which ones have a newer version than the one installed.

Nothing is downloaded or changed.`,
		Args: cobra.NoArgs,
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	svc, err := buildService(cmd)
	if err != nil {
		return err
	}

	report, err := svc.Check(cmd.Context())
	if err != nil {
		return err
	}

	if err := output.NewWriter(cmd.OutOrStdout(), format).Write(report); err != nil {
		return err
	}

	if n := len(report.Components); n > 0 && report.FailedCount() == n {
		return errAllChecksFailed
	}
	return nil
}

// buildService loads the Updatefile and layered settings for cmd.
func buildService(cmd *cobra.Command) (*UpdateService, error) {
	f, path, err := LoadConfiguration(configPath)
	if err != nil {
		return nil, err
	}
	settings, err := loadSettings(cmd, f)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded Updatefile", "path", path, "components", len(f.Components))
	return NewUpdateService(path, f, settings, logger), nil
}
