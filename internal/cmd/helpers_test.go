package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

// releaseHost serves a tags page listing one zip release of "demo".
type releaseHost struct {
	*httptest.Server
	version string
}

func newReleaseHost(t *testing.T, version string) *releaseHost {
	t.Helper()
	h := &releaseHost{version: version}

	archive := zipArchive(t, map[string]string{
		"demo-" + version + "/__init__.py": "version = '" + version + "'\n",
		"demo-" + version + "/data.txt":    "new data\n",
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/demo/tags", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `<html><body>
<a href="/demo/releases/tag/%[1]s">%[1]s</a>
<a href="/demo/archive/%[1]s.zip">zip</a>
</body></html>`, version)
	})
	mux.HandleFunc("/demo/archive/"+version+".zip", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	})
	mux.HandleFunc("/broken/tags", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	})

	h.Server = httptest.NewServer(mux)
	t.Cleanup(h.Close)
	return h
}

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// fixture is a temp workspace with an installed demo add-on.
type fixture struct {
	dir        string
	updatefile string
	install    string
	staging    string
}

func newFixture(t *testing.T, components string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:        dir,
		updatefile: filepath.Join(dir, "Updatefile.yaml"),
		install:    filepath.Join(dir, "addons", "demo"),
		staging:    filepath.Join(dir, "staging"),
	}
	require.NoError(t, os.MkdirAll(f.install, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.install, "__init__.py"), []byte("version = '0.0.1'\n"), 0o644))
	require.NoError(t, os.WriteFile(f.updatefile, []byte("version: 1\ncomponents:\n"+components), 0o644))
	return f
}

// demoComponent renders the demo entry for an Updatefile.
func demoComponent(source, installed, installPath string) string {
	return fmt.Sprintf("  - name: demo\n    source: %s\n    installed_version: %s\n    install_path: %s\n", source, installed, installPath)
}

// run executes the CLI with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	orig := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = orig }()

	root := newRootCmd("test", "abc123", "2026-10-16")
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(bytes.NewReader(nil))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
