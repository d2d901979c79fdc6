package cmd

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInit_DirectTemplate(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "Updatefile")
	var stdout, stderr bytes.Buffer

	err := runInit(context.Background(), strings.NewReader(""), &stdout, &stderr, "scrape", outputPath, false)
	require.NoError(t, err)

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "version: 1")
	assert.Contains(t, string(content), "strategy: scrape")
	assert.Contains(t, stdout.String(), "Created "+outputPath)
	assert.Contains(t, stdout.String(), "Next steps:")
}

func TestRunInit_ExistingFile(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		force     bool
		overwrite bool
	}{
		{"abort", "n\n", false, false},
		{"abort on eof", "", false, false},
		{"confirm", "y\n", false, true},
		{"force", "", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outputPath := filepath.Join(t.TempDir(), "Updatefile")
			require.NoError(t, os.WriteFile(outputPath, []byte("existing"), 0o644))
			var stdout, stderr bytes.Buffer

			err := runInit(context.Background(), strings.NewReader(tt.input), &stdout, &stderr, "minimal", outputPath, tt.force)
			require.NoError(t, err)

			content, err := os.ReadFile(outputPath)
			require.NoError(t, err)
			if tt.overwrite {
				assert.Contains(t, string(content), "components: []")
			} else {
				assert.Equal(t, "existing", string(content))
				assert.Contains(t, stdout.String(), "Aborted.")
			}
		})
	}
}

func TestRunInit_InvalidTemplate(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := runInit(context.Background(), strings.NewReader(""), &stdout, &stderr, "nonexistent", filepath.Join(t.TempDir(), "Updatefile"), false)
	assert.ErrorContains(t, err, "failed to load template")
}

func TestRunInit_CreatesParentDirectories(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "nested", "dir", "Updatefile")
	var stdout, stderr bytes.Buffer

	require.NoError(t, runInit(context.Background(), strings.NewReader(""), &stdout, &stderr, "minimal", outputPath, false))
	_, err := os.Stat(outputPath)
	assert.NoError(t, err)
}

func TestRunInit_RemoteTemplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good.yaml":
			_, _ = w.Write([]byte("version: 1\ncomponents: []\n"))
		case "/bad.yaml":
			_, _ = w.Write([]byte("version: 7\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	var stdout, stderr bytes.Buffer
	outputPath := filepath.Join(t.TempDir(), "Updatefile")
	require.NoError(t, runInit(context.Background(), strings.NewReader(""), &stdout, &stderr, srv.URL+"/good.yaml", outputPath, false))

	err := runInit(context.Background(), strings.NewReader(""), &stdout, &stderr, srv.URL+"/bad.yaml", outputPath, true)
	assert.ErrorContains(t, err, "invalid template")

	err = runInit(context.Background(), strings.NewReader(""), &stdout, &stderr, srv.URL+"/missing.yaml", outputPath, true)
	assert.ErrorContains(t, err, "failed to fetch template")
}

func TestSelectTemplateInteractive(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"first", "1\n", "github", false},
		{"last builtin", "3\n", "scrape", false},
		{"custom url", "4\nhttps://example.test/Updatefile\n", "https://example.test/Updatefile", false},
		{"out of range", "9\n", "", true},
		{"not a number", "abc\n", "", true},
		{"eof", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			got, err := selectTemplateInteractive(bufioReader(tt.input), &stdout)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, stdout.String(), "Select an Updatefile template:")
		})
	}
}

func bufioReader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}
