package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/adamancini/uplift/internal/backup"
	"github.com/adamancini/uplift/internal/config"
	"github.com/adamancini/uplift/internal/interactive"
	"github.com/adamancini/uplift/internal/output"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage backups of replaced components",
		Long: `Backup manages the copies uplift keeps each time an install replaces a
component. A backup of ~/addons/demo lives next to it as
~/addons/demo.backup-<timestamp>, with a .json metadata file.

Use 'uplift backup restore <name> latest' to roll back the last update.`,
	}

	cmd.AddCommand(newBackupListCmd())
	cmd.AddCommand(newBackupRestoreCmd())
	cmd.AddCommand(newBackupDeleteCmd())
	cmd.AddCommand(newBackupPruneCmd())

	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "list <name>",
		Short:             "List backups of a component",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeComponentNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupList(cmd, args[0])
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore <name> <id|latest>",
		Short: "Restore a component from a backup",
		Long: `Restore moves a backup back to the component's install path. The
current install is itself kept as a new backup, so a restore can be undone.

Use 'latest' as the ID to restore the most recent backup.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupRestore(cmd, args[0], args[1], yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")

	return cmd
}

func newBackupDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name> <id>",
		Short: "Delete a backup",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, _, err := backupManager(args[0])
			if err != nil {
				return err
			}
			if err := mgr.Delete(args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Backup deleted: %s\n", args[1])
			return nil
		},
	}
}

func newBackupPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune <name>",
		Short: "Remove old backups of a component",
		Long: fmt.Sprintf(`Prune deletes old backups, keeping only the most recent N.

By default, keeps the %d most recent backups.`, backup.DefaultKeepCount),
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeComponentNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupPrune(cmd, args[0], keep)
		},
	}

	cmd.Flags().IntVar(&keep, "keep", backup.DefaultKeepCount, "Number of backups to keep")

	return cmd
}

// backupManager returns the manager for the named component.
func backupManager(name string) (*backup.Manager, *config.Component, string, error) {
	f, path, err := LoadConfiguration(configPath)
	if err != nil {
		return nil, nil, "", err
	}
	c, err := f.Component(name)
	if err != nil {
		return nil, nil, "", err
	}
	return backup.NewManager(afero.NewOsFs(), c.InstallPath), c, path, nil
}

func runBackupList(cmd *cobra.Command, name string) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	mgr, _, _, err := backupManager(name)
	if err != nil {
		return err
	}

	backups, err := mgr.List()
	if err != nil {
		return err
	}
	if backups == nil {
		backups = []backup.BackupInfo{}
	}
	return output.NewWriter(cmd.OutOrStdout(), format).Write(&output.BackupList{Component: name, Backups: backups})
}

func runBackupRestore(cmd *cobra.Command, name, id string, yes bool) error {
	mgr, comp, path, err := backupManager(name)
	if err != nil {
		return err
	}

	b, err := mgr.Get(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	version := b.Version
	if version == "" {
		version = "unknown version"
	}
	_, _ = fmt.Fprintf(out, "Restoring %s from backup %s (%s)\n", name, b.ID, version)

	if !yes {
		if !interactive.IsTerminal() {
			return fmt.Errorf("refusing to restore without --yes on a non-interactive terminal")
		}
		if !interactive.NewPrompterWithIO(cmd.InOrStdin(), out).Confirm("Proceed?") {
			_, _ = fmt.Fprintln(out, "Restore cancelled.")
			return nil
		}
	}

	at := time.Now()
	displaced, err := mgr.Restore(b.ID, at)
	if err != nil {
		return err
	}

	if displaced != "" {
		if err := mgr.Record(&backup.Backup{
			ID:         displaced,
			Component:  name,
			Version:    comp.InstalledVersion,
			ReplacedBy: b.Version,
			CreatedAt:  at,
		}); err != nil {
			logger.Warn("failed to record backup metadata", "backup", displaced, "err", err)
		}
		_, _ = fmt.Fprintf(out, "Previous install kept as backup %s\n", displaced)
	}

	if b.Version != "" {
		if err := config.SetInstalledVersion(path, name, b.Version); err != nil {
			logger.Warn("restored, but failed to record version in Updatefile", "component", name, "err", err)
		}
	}

	_, _ = fmt.Fprintln(out, "Restored successfully")
	return nil
}

func runBackupPrune(cmd *cobra.Command, name string, keep int) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	mgr, _, _, err := backupManager(name)
	if err != nil {
		return err
	}

	result, err := mgr.Prune(keep)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format != output.FormatText {
		return output.NewWriter(out, format).Write(result)
	}

	if len(result.Deleted) == 0 {
		_, _ = fmt.Fprintf(out, "No backups to prune. Keeping %d backups.\n", result.Kept)
		return nil
	}
	_, _ = fmt.Fprintf(out, "Pruned %d backup(s), keeping %d:\n", len(result.Deleted), result.Kept)
	for _, b := range result.Deleted {
		_, _ = fmt.Fprintf(out, "  - %s (%s)\n", b.ID, b.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
