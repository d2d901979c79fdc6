package update

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// fakeTransport serves canned pages and blobs keyed by URL.
type fakeTransport struct {
	mu    sync.Mutex
	pages map[string]string
	blobs map[string][]byte
	errs  map[string]error
	calls []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		pages: make(map[string]string),
		blobs: make(map[string][]byte),
		errs:  make(map[string]error),
	}
}

func (f *fakeTransport) record(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	return f.errs[url]
}

func (f *fakeTransport) FetchText(ctx context.Context, url string) (string, error) {
	if err := f.record(url); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, ok := f.pages[url]
	if !ok {
		return "", &StatusError{URL: url, Code: 404}
	}
	return body, nil
}

func (f *fakeTransport) FetchBytes(ctx context.Context, url string, w io.Writer) (int64, error) {
	if err := f.record(url); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	blob, ok := f.blobs[url]
	if !ok {
		return 0, &StatusError{URL: url, Code: 404}
	}
	n, err := w.Write(blob)
	return int64(n), err
}

func (f *fakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// blockingTransport holds FetchBytes until release is closed or ctx ends.
type blockingTransport struct {
	*fakeTransport
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingTransport) FetchBytes(ctx context.Context, url string, w io.Writer) (int64, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return b.fakeTransport.FetchBytes(ctx, url, w)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// zipBytes builds a zip archive with files in name order.
func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// faultFs fails Rename calls selected by fail.
type faultFs struct {
	afero.Fs
	fail func(oldname, newname string) bool
}

func (f *faultFs) Rename(oldname, newname string) error {
	if f.fail != nil && f.fail(oldname, newname) {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: fmt.Errorf("injected failure")}
	}
	return f.Fs.Rename(oldname, newname)
}

// writeCountingFs counts every mutating call.
type writeCountingFs struct {
	afero.Fs
	writes atomic.Int64
}

func (w *writeCountingFs) Create(name string) (afero.File, error) {
	w.writes.Add(1)
	return w.Fs.Create(name)
}

func (w *writeCountingFs) Mkdir(name string, perm os.FileMode) error {
	w.writes.Add(1)
	return w.Fs.Mkdir(name, perm)
}

func (w *writeCountingFs) MkdirAll(path string, perm os.FileMode) error {
	w.writes.Add(1)
	return w.Fs.MkdirAll(path, perm)
}

func (w *writeCountingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		w.writes.Add(1)
	}
	return w.Fs.OpenFile(name, flag, perm)
}

func (w *writeCountingFs) Remove(name string) error {
	w.writes.Add(1)
	return w.Fs.Remove(name)
}

func (w *writeCountingFs) RemoveAll(path string) error {
	w.writes.Add(1)
	return w.Fs.RemoveAll(path)
}

func (w *writeCountingFs) Rename(oldname, newname string) error {
	w.writes.Add(1)
	return w.Fs.Rename(oldname, newname)
}

func (w *writeCountingFs) Chmod(name string, mode os.FileMode) error {
	w.writes.Add(1)
	return w.Fs.Chmod(name, mode)
}

// readTree returns relative path to content for every file under root.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	fs := afero.NewOsFs()
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, root), string(os.PathSeparator))
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}
