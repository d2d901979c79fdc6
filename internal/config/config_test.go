package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamancini/uplift/internal/types"
)

const sampleYAML = `# managed by uplift
version: 1
settings:
  staging_dir: ~/staging
components:
  - name: demo
    source: https://example.test/demo/
    installed_version: 0.0.1 # pinned
    install_path: ~/addons/demo
  - name: tool
    source: duck/tool
    install_path: /opt/tool.py
    strategy: github-api
`

// fakeHome points HOME and XDG at a temp dir and disables homedir's cache.
func fakeHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("UPDATEFILE", "")
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_ExpandsHome(t *testing.T) {
	home := fakeHome(t)
	path := filepath.Join(home, "Updatefile.yaml")
	writeFile(t, path, sampleYAML)

	f, err := Load(path)
	require.NoError(t, err)
	require.Len(t, f.Components, 2)
	assert.Equal(t, filepath.Join(home, "addons", "demo"), f.Components[0].InstallPath)
	assert.Equal(t, filepath.Join(home, "staging"), f.Settings.StagingDir)
	assert.Equal(t, types.StrategyGitHubAPI, f.Components[1].Strategy)

	c, err := f.Component("tool")
	require.NoError(t, err)
	assert.Equal(t, "/opt/tool.py", c.InstallPath)
	_, err = f.Component("missing")
	assert.Error(t, err)
}

func TestLoad_NormalizesStrategyCase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Updatefile.yaml")
	writeFile(t, path, `version: 1
components:
  - name: tool
    source: duck/tool
    install_path: /opt/tool.py
    strategy: GitHub-API
`)

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, types.StrategyGitHubAPI, f.Components[0].Strategy)

	writeFile(t, path, `version: 1
components:
  - name: tool
    source: duck/tool
    install_path: /opt/tool.py
    strategy: rss
`)
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape, github-api")
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read Updatefile")

	unknown := filepath.Join(dir, "Updatefile")
	writeFile(t, unknown, "just words")
	_, err = Load(unknown)
	assert.ErrorContains(t, err, "unable to detect file format")

	invalid := filepath.Join(dir, "bad.yaml")
	writeFile(t, invalid, "version: 1\ncomponents:\n  - name: x\n")
	_, err = Load(invalid)
	assert.ErrorContains(t, err, "validation errors")
}

func TestUpdateComponents(t *testing.T) {
	f := &Updatefile{Components: []Component{{
		Name:             "demo",
		Source:           "https://example.test/demo/",
		InstalledVersion: "0.0.1",
		InstallPath:      "/addons/demo",
		Strategy:         types.StrategyScrape,
	}}}

	got := f.UpdateComponents()
	require.Len(t, got, 1)
	assert.Equal(t, "demo", got[0].Name)
	assert.Equal(t, "0.0.1", got[0].InstalledVersion)
	assert.Equal(t, types.StrategyScrape, got[0].Strategy)
}

func TestFindUpdatefile(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		home := fakeHome(t)
		writeFile(t, filepath.Join(home, "custom.toml"), "version = 1\n")

		got, err := FindUpdatefile("~/custom.toml")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "custom.toml"), got)
	})

	t.Run("explicit path missing", func(t *testing.T) {
		fakeHome(t)
		_, err := FindUpdatefile("/does/not/exist")
		assert.ErrorContains(t, err, "specified Updatefile not found")
	})

	t.Run("env var", func(t *testing.T) {
		home := fakeHome(t)
		path := filepath.Join(home, "elsewhere", "Updatefile.json")
		writeFile(t, path, "{}")
		t.Setenv("UPDATEFILE", path)

		got, err := FindUpdatefile("")
		require.NoError(t, err)
		assert.Equal(t, path, got)
	})

	t.Run("xdg before home", func(t *testing.T) {
		home := fakeHome(t)
		xdg := filepath.Join(home, "xdg")
		t.Setenv("XDG_CONFIG_HOME", xdg)
		writeFile(t, filepath.Join(home, "Updatefile"), "version: 1\n")
		writeFile(t, filepath.Join(xdg, "uplift", "Updatefile.yaml"), "version: 1\n")

		got, err := FindUpdatefile("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(xdg, "uplift", "Updatefile.yaml"), got)
	})

	t.Run("dot directory", func(t *testing.T) {
		home := fakeHome(t)
		writeFile(t, filepath.Join(home, ".uplift", ".Updatefile.toml"), "version = 1\n")

		got, err := FindUpdatefile("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".uplift", ".Updatefile.toml"), got)
	})

	t.Run("none", func(t *testing.T) {
		fakeHome(t)
		_, err := FindUpdatefile("")
		assert.ErrorContains(t, err, "no Updatefile found")
	})
}

func TestSearchDirs(t *testing.T) {
	home := fakeHome(t)

	dirs, err := SearchDirs()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(home, ".config", "uplift"),
		filepath.Join(home, ".uplift"),
		home,
	}, dirs)
}

func TestSettingsTimeoutDuration(t *testing.T) {
	d, err := Settings{}.TimeoutDuration()
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = Settings{Timeout: "90s"}.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 90.0, d.Seconds())
}
