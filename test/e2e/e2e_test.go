package e2e

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var binaryPath string

// TestMain builds the binary before running tests
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "uplift-e2e-bin-*")
	if err != nil {
		panic("failed to create build dir: " + err.Error())
	}

	binaryPath = filepath.Join(dir, "uplift")
	if runtime.GOOS == "windows" {
		binaryPath += ".exe"
	}
	build := exec.Command("go", "build", "-o", binaryPath, "../../cmd/uplift")
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	code := m.Run()

	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// releaseHost serves a tags page for "addon" (a tar.gz snapshot) and a
// GitHub-style API for "duck/tool" (a single-file asset).
func releaseHost(t *testing.T) *httptest.Server {
	t.Helper()
	tarball := tarGz(t, map[string]string{
		"addon-1.1.0/__init__.py": "VERSION = '1.1.0'\n",
		"addon-1.1.0/../../x.py":  "escaped\n",
	})

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/owner/addon/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<ul>
<li><a href="/owner/addon/releases/tag/1.1.0">1.1.0</a> <a href="/owner/addon/archive/refs/tags/1.1.0.tar.gz">tar.gz</a></li>
<li><a href="/owner/addon/archive/refs/tags/1.0.0.tar.gz">tar.gz</a></li>
</ul>`)
	})
	mux.HandleFunc("/owner/addon/archive/refs/tags/1.1.0.tar.gz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(tarball)
	})
	mux.HandleFunc("/api/repos/duck/tool/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tag_name": "v2.0.0",
			"assets": []map[string]string{
				{"name": "tool.py", "browser_download_url": srv.URL + "/dl/tool.py"},
			},
		})
	})
	mux.HandleFunc("/dl/tool.py", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "print('tool v2')\n")
	})
	return srv
}

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// env is one isolated workspace: HOME, Updatefile and installed components.
type env struct {
	home       string
	updatefile string
	addon      string
	tool       string
	api        string
}

func setupEnv(t *testing.T, srv *httptest.Server) *env {
	t.Helper()
	home := t.TempDir()
	e := &env{
		home:       home,
		updatefile: filepath.Join(home, ".uplift", "Updatefile.yaml"),
		addon:      filepath.Join(home, "addons", "addon"),
		tool:       filepath.Join(home, "bin", "tool.py"),
		api:        srv.URL + "/api",
	}

	require.NoError(t, os.MkdirAll(e.addon, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.addon, "__init__.py"), []byte("VERSION = '1.0.0'\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(e.tool), 0o755))
	require.NoError(t, os.WriteFile(e.tool, []byte("print('tool v1')\n"), 0o755))

	require.NoError(t, os.MkdirAll(filepath.Dir(e.updatefile), 0o755))
	content := fmt.Sprintf(`# components managed by uplift
version: 1
settings:
  staging_dir: ~/staging
components:
  - name: addon
    source: %s/owner/addon/
    installed_version: 1.0.0
    install_path: ~/addons/addon
  - name: tool
    source: duck/tool
    installed_version: v1.0.0
    install_path: ~/bin/tool.py
    strategy: github-api
`, srv.URL)
	require.NoError(t, os.WriteFile(e.updatefile, []byte(content), 0o644))
	return e
}

// run executes the binary with HOME pointed at the workspace, so the
// Updatefile is found through the standard search path.
func (e *env) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(),
		"HOME="+e.home,
		"XDG_CONFIG_HOME=",
		"UPDATEFILE=",
		"NO_COLOR=1",
		"GITHUB_TOKEN=",
		"UPLIFT_GITHUB_API="+e.api,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

type checkReport struct {
	Components []struct {
		Name          string `yaml:"name"`
		LatestVersion string `yaml:"latest_version"`
		Available     bool   `yaml:"available"`
		ArtifactKind  string `yaml:"artifact_kind"`
		Error         string `yaml:"error"`
	} `yaml:"components"`
}

func TestCheckThenInstall(t *testing.T) {
	srv := releaseHost(t)
	e := setupEnv(t, srv)

	stdout, stderr, err := e.run(t, "check", "-o", "yaml")
	require.NoError(t, err, stderr)

	var report checkReport
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &report))
	require.Len(t, report.Components, 2)
	assert.Equal(t, "addon", report.Components[0].Name)
	assert.Equal(t, "1.1.0", report.Components[0].LatestVersion)
	assert.Equal(t, "archive", report.Components[0].ArtifactKind)
	assert.True(t, report.Components[0].Available)
	assert.Equal(t, "v2.0.0", report.Components[1].LatestVersion)
	assert.Equal(t, "single-file", report.Components[1].ArtifactKind)

	stdout, stderr, err = e.run(t, "install", "--yes")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "ok installed addon 1.1.0")
	assert.Contains(t, stdout, "ok installed tool v2.0.0")

	got, err := os.ReadFile(filepath.Join(e.addon, "__init__.py"))
	require.NoError(t, err)
	assert.Equal(t, "VERSION = '1.1.0'\n", string(got))
	_, err = os.Stat(filepath.Join(e.addon, "x.py"))
	assert.NoError(t, err, "traversal entry lands inside the payload")
	_, err = os.Stat(filepath.Join(e.home, "x.py"))
	assert.True(t, os.IsNotExist(err))

	got, err = os.ReadFile(e.tool)
	require.NoError(t, err)
	assert.Equal(t, "print('tool v2')\n", string(got))
	if runtime.GOOS != "windows" {
		info, err := os.Stat(e.tool)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm(), "single-file installs keep the old mode")
	}

	raw, err := os.ReadFile(e.updatefile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "# components managed by uplift")
	assert.Contains(t, string(raw), "installed_version: 1.1.0")
	assert.Contains(t, string(raw), "installed_version: v2.0.0")

	stdout, _, err = e.run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, stdout, "0 update(s) available, 0 failed")

	stdout, _, err = e.run(t, "backup", "list", "addon")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1.0.0")
}

func TestStatusCommand(t *testing.T) {
	srv := releaseHost(t)
	e := setupEnv(t, srv)

	stdout, stderr, err := e.run(t, "status", "-o", "json")
	require.NoError(t, err, stderr)

	var report struct {
		Updatefile string `json:"updatefile"`
		Components []struct {
			Name        string `json:"name"`
			InstallPath string `json:"install_path"`
			Present     bool   `json:"present"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, e.updatefile, report.Updatefile)
	require.Len(t, report.Components, 2)
	assert.Equal(t, e.addon, report.Components[0].InstallPath)
	assert.True(t, report.Components[0].Present)
}

func TestValidation(t *testing.T) {
	srv := releaseHost(t)
	e := setupEnv(t, srv)
	require.NoError(t, os.WriteFile(e.updatefile, []byte("version: 1\ncomponents:\n  - name: x\n    source: ftp://nope/\n"), 0o644))

	_, stderr, err := e.run(t, "check")
	require.Error(t, err)
	assert.Contains(t, stderr, "validation errors")
	assert.Contains(t, stderr, "install_path is required")
}

func TestMissingUpdatefile(t *testing.T) {
	e := &env{home: t.TempDir()}

	_, stderr, err := e.run(t, "status")
	require.Error(t, err)
	assert.Contains(t, stderr, "no Updatefile found")
}

func TestInitThenStatus(t *testing.T) {
	e := &env{home: t.TempDir()}

	stdout, stderr, err := e.run(t, "init", "--template", "minimal")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, filepath.Join(e.home, ".config", "uplift", "Updatefile"))

	stdout, _, err = e.run(t, "status")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "Updatefile: "))
}

func TestVersionCommand(t *testing.T) {
	e := &env{home: t.TempDir()}

	stdout, _, err := e.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "uplift version dev")
}
