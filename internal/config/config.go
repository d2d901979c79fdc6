// Package config handles Updatefile parsing and location resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/adamancini/uplift/internal/types"
	"github.com/adamancini/uplift/internal/update"
)

// CurrentVersion is the Updatefile schema version this build reads.
const CurrentVersion = 1

// Settings are runtime knobs that may also come from env or flags.
type Settings struct {
	Timeout     string `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty"`
	StagingDir  string `yaml:"staging_dir,omitempty" toml:"staging_dir,omitempty" json:"staging_dir,omitempty"`
	Concurrency int    `yaml:"concurrency,omitempty" toml:"concurrency,omitempty" json:"concurrency,omitempty"`
}

// TimeoutDuration parses Timeout. Empty means zero.
func (s Settings) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(s.Timeout)
}

// Component is one entry of the components list.
type Component struct {
	Name             string         `yaml:"name" toml:"name" json:"name"`
	Source           string         `yaml:"source" toml:"source" json:"source"`
	InstalledVersion string         `yaml:"installed_version" toml:"installed_version" json:"installed_version"`
	InstallPath      string         `yaml:"install_path" toml:"install_path" json:"install_path"`
	Strategy         types.Strategy `yaml:"strategy,omitempty" toml:"strategy,omitempty" json:"strategy,omitempty"`
}

// Updatefile represents the parsed configuration file.
type Updatefile struct {
	Version    int         `yaml:"version" toml:"version" json:"version"`
	Settings   Settings    `yaml:"settings,omitempty" toml:"settings,omitempty" json:"settings,omitempty"`
	Components []Component `yaml:"components" toml:"components" json:"components"`
}

// Component returns the component named name.
func (f *Updatefile) Component(name string) (*Component, error) {
	for i := range f.Components {
		if f.Components[i].Name == name {
			return &f.Components[i], nil
		}
	}
	return nil, fmt.Errorf("component not found: %s", name)
}

// UpdateComponents converts the entries for the update engine.
func (f *Updatefile) UpdateComponents() []update.Component {
	out := make([]update.Component, 0, len(f.Components))
	for _, c := range f.Components {
		out = append(out, update.Component{
			Name:             c.Name,
			Source:           c.Source,
			InstalledVersion: c.InstalledVersion,
			InstallPath:      c.InstallPath,
			Strategy:         c.Strategy,
		})
	}
	return out
}

// fileNames are tried in order inside each search directory.
var fileNames = []string{
	"Updatefile",
	"Updatefile.yaml",
	"Updatefile.yml",
	"Updatefile.toml",
	"Updatefile.json",
	".Updatefile",
	".Updatefile.yaml",
	".Updatefile.yml",
	".Updatefile.toml",
	".Updatefile.json",
}

// SearchDirs returns the directories FindUpdatefile looks in.
func SearchDirs() ([]string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine home directory: %w", err)
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}

	return []string{
		filepath.Join(xdgConfig, "uplift"),
		filepath.Join(home, ".uplift"),
		home,
	}, nil
}

// FindUpdatefile returns the first Updatefile found. An explicit path
// wins, then $UPDATEFILE, then the SearchDirs.
func FindUpdatefile(explicitPath string) (string, error) {
	if explicitPath != "" {
		p, err := homedir.Expand(explicitPath)
		if err != nil {
			return "", fmt.Errorf("failed to expand %s: %w", explicitPath, err)
		}
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("specified Updatefile not found: %s", explicitPath)
		}
		return p, nil
	}

	if envPath := os.Getenv("UPDATEFILE"); envPath != "" {
		if p, err := homedir.Expand(envPath); err == nil {
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	dirs, err := SearchDirs()
	if err != nil {
		return "", err
	}
	for _, dir := range dirs {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("no Updatefile found in standard locations")
}

// Load reads, parses and validates an Updatefile.
func Load(path string) (*Updatefile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read Updatefile: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	f, err := parse(content, format)
	if err != nil {
		return nil, err
	}

	if err := expandPaths(f); err != nil {
		return nil, err
	}
	normalizeStrategies(f)

	if err := Validate(f); err != nil {
		return nil, err
	}
	return f, nil
}

// normalizeStrategies lowercases recognised strategies; unknown ones are
// left for Validate to report.
func normalizeStrategies(f *Updatefile) {
	for i := range f.Components {
		if st, err := types.ParseStrategy(string(f.Components[i].Strategy)); err == nil {
			f.Components[i].Strategy = st
		}
	}
}

// expandPaths resolves "~" in install paths and the staging dir.
func expandPaths(f *Updatefile) error {
	for i := range f.Components {
		p, err := homedir.Expand(f.Components[i].InstallPath)
		if err != nil {
			return fmt.Errorf("components[%d].install_path: %w", i, err)
		}
		f.Components[i].InstallPath = p
	}
	p, err := homedir.Expand(f.Settings.StagingDir)
	if err != nil {
		return fmt.Errorf("settings.staging_dir: %w", err)
	}
	f.Settings.StagingDir = p
	return nil
}
