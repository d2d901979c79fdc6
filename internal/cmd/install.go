package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamancini/uplift/internal/interactive"
	"github.com/adamancini/uplift/internal/output"
	"github.com/adamancini/uplift/internal/update"
)

// errInstallIncomplete is returned when any install did not succeed.
var errInstallIncomplete = errors.New("one or more installs did not complete")

func newInstallCmd() *cobra.Command {
	var yes, allowDirty bool

	cmd := &cobra.Command{
		Use:   "install [name...]",
		Short: "Install available updates",
		Long: `Install checks the named components (or all of them) and replaces every
one that has a newer release. The previous version is kept next to the
install path as a backup, and the Updatefile records the new version.

Without --yes each update is confirmed interactively. Components whose
install path is inside a git working tree with uncommitted changes are
skipped unless --allow-dirty is given.

Examples:
  uplift install              # Choose among all available updates
  uplift install demo --yes   # Update one component without prompting`,
		ValidArgsFunction: completeComponentNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, args, yes, allowDirty)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompts")
	cmd.Flags().BoolVar(&allowDirty, "allow-dirty", false, "Overwrite install paths with uncommitted git changes")

	return cmd
}

func runInstall(cmd *cobra.Command, names []string, yes, allowDirty bool) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	svc, err := buildService(cmd)
	if err != nil {
		return err
	}
	svc.AllowDirty = allowDirty
	for _, name := range names {
		if _, err := svc.updatefile.Component(name); err != nil {
			return err
		}
	}

	if _, err := svc.Check(cmd.Context()); err != nil {
		return err
	}

	incomplete := false
	for _, name := range names {
		if err := svc.CheckError(name); err != nil {
			logger.Error("check failed", "component", name, "err", err)
			incomplete = true
		}
	}

	pending := svc.Pending(names...)
	if len(pending) == 0 {
		if !incomplete {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Everything is up to date.")
			return nil
		}
		return errInstallIncomplete
	}

	if !yes {
		if !interactive.IsTerminal() {
			return fmt.Errorf("refusing to install without --yes on a non-interactive terminal")
		}
		prompter := interactive.NewPrompterWithIO(cmd.InOrStdin(), cmd.OutOrStdout())
		selection, proceed := prompter.PromptForUpdates(pending)
		if !proceed {
			return nil
		}
		pending = interactive.FilterBySelection(pending, selection)
	}

	w := output.NewWriter(cmd.OutOrStdout(), format)
	for _, st := range pending {
		res := svc.Install(cmd.Context(), st.ComponentName)
		if err := w.Write(output.NewInstallReport(res)); err != nil {
			return err
		}
		if res.Status != update.InstallSuccess {
			incomplete = true
		}
		if res.Status == update.InstallCancelled && cmd.Context().Err() != nil {
			break
		}
	}

	if incomplete {
		return errInstallIncomplete
	}
	return nil
}

// completeComponentNames offers the Updatefile's component names.
func completeComponentNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	f, _, err := LoadConfiguration(configPath)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, c := range f.Components {
		names = append(names, c.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
