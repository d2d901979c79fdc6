package output

import (
	"fmt"
	"io"
	"time"

	"github.com/adamancini/uplift/internal/backup"
	"github.com/adamancini/uplift/internal/types"
	"github.com/adamancini/uplift/internal/update"
)

// ComponentCheck is one row of a check report.
type ComponentCheck struct {
	Name             string             `json:"name" yaml:"name"`
	InstalledVersion string             `json:"installed_version" yaml:"installed_version"`
	LatestVersion    string             `json:"latest_version,omitempty" yaml:"latest_version,omitempty"`
	Available        bool               `json:"available" yaml:"available"`
	DownloadLink     string             `json:"download_link,omitempty" yaml:"download_link,omitempty"`
	ArtifactKind     types.ArtifactKind `json:"artifact_kind,omitempty" yaml:"artifact_kind,omitempty"`
	Error            string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// CheckReport is the result of `uplift check`.
type CheckReport struct {
	Components []ComponentCheck `json:"components" yaml:"components"`
}

// NewCheckReport merges statuses and per-component errors in the order
// of names. Components with neither are omitted.
func NewCheckReport(names []string, statuses []update.UpdateStatus, errs map[string]error) *CheckReport {
	byName := make(map[string]update.UpdateStatus, len(statuses))
	for _, s := range statuses {
		byName[s.ComponentName] = s
	}

	r := &CheckReport{Components: make([]ComponentCheck, 0, len(names))}
	for _, name := range names {
		if err, ok := errs[name]; ok {
			r.Components = append(r.Components, ComponentCheck{Name: name, Error: err.Error()})
			continue
		}
		s, ok := byName[name]
		if !ok {
			continue
		}
		r.Components = append(r.Components, ComponentCheck{
			Name:             name,
			InstalledVersion: s.InstalledVersion,
			LatestVersion:    s.ReleaseLabel,
			Available:        s.Available,
			DownloadLink:     s.DownloadLink,
			ArtifactKind:     s.ArtifactKind,
		})
	}
	return r
}

// AvailableCount returns how many components have an update.
func (r *CheckReport) AvailableCount() int {
	n := 0
	for _, c := range r.Components {
		if c.Available {
			n++
		}
	}
	return n
}

// FailedCount returns how many components could not be checked.
func (r *CheckReport) FailedCount() int {
	n := 0
	for _, c := range r.Components {
		if c.Error != "" {
			n++
		}
	}
	return n
}

func (r *CheckReport) RenderText(w io.Writer, p Palette) error {
	if len(r.Components) == 0 {
		_, err := fmt.Fprintln(w, "No components configured.")
		return err
	}
	for _, c := range r.Components {
		var line string
		switch {
		case c.Error != "":
			line = fmt.Sprintf("%s %s: %s", p.Fail.Sprint("x"), c.Name, c.Error)
		case c.Available:
			line = fmt.Sprintf("%s %s %s -> %s", p.Warn.Sprint("~"), c.Name, c.InstalledVersion, p.OK.Sprint(c.LatestVersion))
		default:
			line = fmt.Sprintf("%s %s %s %s", p.OK.Sprint("ok"), c.Name, c.InstalledVersion, p.Muted.Sprint("(up to date)"))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\n%d update(s) available, %d failed\n", r.AvailableCount(), r.FailedCount())
	return err
}

// InstallReport is the result of `uplift install`.
type InstallReport struct {
	Component  string `json:"component" yaml:"component"`
	Status     string `json:"status" yaml:"status"`
	Version    string `json:"version,omitempty" yaml:"version,omitempty"`
	Reason     string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	BackupPath string `json:"backup_path,omitempty" yaml:"backup_path,omitempty"`
	AttemptID  string `json:"attempt_id,omitempty" yaml:"attempt_id,omitempty"`
}

// NewInstallReport converts an install result.
func NewInstallReport(res update.InstallResult) *InstallReport {
	r := &InstallReport{
		Component:  res.Component,
		Status:     res.Status.String(),
		Version:    res.Version,
		Reason:     res.Reason,
		BackupPath: res.BackupPath,
		AttemptID:  res.AttemptID,
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}

func (r *InstallReport) RenderText(w io.Writer, p Palette) error {
	var err error
	switch r.Status {
	case update.InstallSuccess.String():
		_, err = fmt.Fprintf(w, "%s installed %s %s\n", p.OK.Sprint("ok"), r.Component, r.Version)
		if err == nil && r.BackupPath != "" {
			_, err = fmt.Fprintf(w, "   previous version kept at %s\n", p.Muted.Sprint(r.BackupPath))
		}
	case update.InstallCancelled.String():
		_, err = fmt.Fprintf(w, "%s %s not installed: %s\n", p.Warn.Sprint("-"), r.Component, r.Reason)
	default:
		_, err = fmt.Fprintf(w, "%s %s install failed: %s\n", p.Fail.Sprint("x"), r.Component, r.Error)
	}
	return err
}

// ComponentInfo is one row of a status report.
type ComponentInfo struct {
	Name             string `json:"name" yaml:"name"`
	Source           string `json:"source" yaml:"source"`
	InstalledVersion string `json:"installed_version" yaml:"installed_version"`
	InstallPath      string `json:"install_path" yaml:"install_path"`
	Strategy         string `json:"strategy" yaml:"strategy"`
	Present          bool   `json:"present" yaml:"present"`
	Git              string `json:"git,omitempty" yaml:"git,omitempty"`
}

// StatusReport is the result of `uplift status`.
type StatusReport struct {
	Updatefile string          `json:"updatefile" yaml:"updatefile"`
	Components []ComponentInfo `json:"components" yaml:"components"`
}

func (r *StatusReport) RenderText(w io.Writer, p Palette) error {
	if _, err := fmt.Fprintf(w, "%s %s\n", p.Heading.Sprint("Updatefile:"), r.Updatefile); err != nil {
		return err
	}
	for _, c := range r.Components {
		mark := p.OK.Sprint("ok")
		if !c.Present {
			mark = p.Warn.Sprint("!")
		}
		version := c.InstalledVersion
		if version == "" {
			version = "-"
		}
		line := fmt.Sprintf("  %s %s %s [%s] %s", mark, c.Name, version, c.Strategy, p.Muted.Sprint(c.InstallPath))
		if c.Git != "" {
			line += " " + p.Warn.Sprintf("git: %s", c.Git)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// BackupList is the result of `uplift backup list`.
type BackupList struct {
	Component string              `json:"component" yaml:"component"`
	Backups   []backup.BackupInfo `json:"backups" yaml:"backups"`
}

func (r *BackupList) RenderText(w io.Writer, p Palette) error {
	if len(r.Backups) == 0 {
		_, err := fmt.Fprintf(w, "No backups for %s.\n", r.Component)
		return err
	}
	for _, b := range r.Backups {
		version := b.Version
		if version == "" {
			version = "unknown"
		}
		if _, err := fmt.Fprintf(w, "%s  %s  %s  %s\n",
			p.Heading.Sprint(b.ID), version, b.CreatedAt.Format(time.RFC3339), p.Muted.Sprint(formatSize(b.Size))); err != nil {
			return err
		}
	}
	return nil
}

// formatSize renders a byte count with a binary unit.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
