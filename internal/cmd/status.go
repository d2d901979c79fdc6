package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/adamancini/uplift/internal/git"
	"github.com/adamancini/uplift/internal/output"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configured components",
		Long: `Status lists the components in the Updatefile with their installed
versions, whether the install path exists, and whether it sits inside a
git working tree. It does not contact any release source.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}

			f, path, err := LoadConfiguration(configPath)
			if err != nil {
				return err
			}

			checker := git.NewChecker()
			useGit := checker.Available(cmd.Context())

			report := &output.StatusReport{Updatefile: path, Components: []output.ComponentInfo{}}
			for _, c := range f.Components {
				_, statErr := os.Lstat(c.InstallPath)
				var gitState string
				if useGit && statErr == nil {
					if st := checker.CheckPath(cmd.Context(), c.InstallPath); st.IsGitRepo {
						gitState = st.String()
					}
				}
				report.Components = append(report.Components, output.ComponentInfo{
					Name:             c.Name,
					Source:           c.Source,
					InstalledVersion: c.InstalledVersion,
					InstallPath:      c.InstallPath,
					Strategy:         string(c.Strategy.Default()),
					Present:          statErr == nil,
					Git:              gitState,
				})
			}
			return output.NewWriter(cmd.OutOrStdout(), format).Write(report)
		},
	}
}
