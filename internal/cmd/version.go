package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamancini/uplift/internal/output"
)

var (
	buildCommit = "none"
	buildDate   = "unknown"
)

// versionInfo is the structured form of `uplift version`.
type versionInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
}

func (v versionInfo) String() string {
	return fmt.Sprintf("uplift version %s (commit %s, built %s)", v.Version, v.Commit, v.Date)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			info := versionInfo{Version: upliftVersion, Commit: buildCommit, Date: buildDate}
			return output.NewWriter(cmd.OutOrStdout(), format).Write(info)
		},
	}
}
