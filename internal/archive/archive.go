// Package archive extracts untrusted release archives into a destination
// directory without letting any entry escape it.
//
// Entry names are split on the archive's own separators ('/' and, for
// archives written on Windows, '\'), never on the host's. Empty, "." and
// ".." segments are discarded before the remaining segments are joined
// under the destination, so "../../evil", "/etc/passwd" and "C:\evil"
// all land inside destDir. Symlinks, hard links and device entries are
// skipped.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefaultMaxEntryBytes bounds a single extracted entry (1 GiB).
const DefaultMaxEntryBytes int64 = 1 << 30

var (
	// ErrCorrupt indicates the archive could not be read: bad magic,
	// unreadable central directory, bad compression stream, or an entry
	// larger than the configured limit.
	ErrCorrupt = errors.New("corrupt archive")

	// ErrIO indicates a local filesystem failure while writing entries.
	ErrIO = errors.New("archive extraction i/o failure")
)

// Format identifies a supported archive container.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTarGzip
)

// String returns a short name for the format.
func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTarGzip:
		return "tar.gz"
	default:
		return "unknown"
	}
}

var (
	zipMagic  = []byte("PK\x03\x04")
	zipEmpty  = []byte("PK\x05\x06")
	gzipMagic = []byte{0x1f, 0x8b}
)

// Sniff reports the archive format from the leading bytes of r.
func Sniff(r io.Reader) (Format, error) {
	head := make([]byte, 4)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, err
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zipMagic), bytes.HasPrefix(head, zipEmpty):
		return FormatZip, nil
	case bytes.HasPrefix(head, gzipMagic):
		return FormatTarGzip, nil
	default:
		return FormatUnknown, nil
	}
}

// Extractor extracts archives through an afero filesystem.
type Extractor struct {
	fs            afero.Fs
	maxEntryBytes int64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxEntryBytes overrides the per-entry size limit.
func WithMaxEntryBytes(n int64) Option {
	return func(e *Extractor) {
		e.maxEntryBytes = n
	}
}

// New creates an Extractor operating on fs.
func New(fs afero.Fs, opts ...Option) *Extractor {
	e := &Extractor{
		fs:            fs,
		maxEntryBytes: DefaultMaxEntryBytes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract extracts archivePath into destDir on the host filesystem.
func Extract(archivePath, destDir string) error {
	return New(afero.NewOsFs()).Extract(archivePath, destDir)
}

// SniffFile reports the archive format of the file at path.
func (e *Extractor) SniffFile(path string) (Format, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("%w: failed to open %s: %w", ErrIO, path, err)
	}
	defer func() { _ = f.Close() }()

	format, err := Sniff(f)
	if err != nil {
		return FormatUnknown, fmt.Errorf("%w: failed to read %s: %w", ErrIO, path, err)
	}
	return format, nil
}

// Extract writes every sanitized entry of archivePath under destDir,
// creating destDir and intermediate directories as needed.
func (e *Extractor) Extract(archivePath, destDir string) error {
	format, err := e.SniffFile(archivePath)
	if err != nil {
		return err
	}

	dest := filepath.Clean(destDir)
	if err := e.fs.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create %s: %w", ErrIO, dest, err)
	}

	switch format {
	case FormatZip:
		return e.extractZip(archivePath, dest)
	case FormatTarGzip:
		return e.extractTarGzip(archivePath, dest)
	default:
		return fmt.Errorf("%w: %s is not a zip or tar.gz archive", ErrCorrupt, archivePath)
	}
}

// SanitizePath normalizes an archive entry name into a slash-separated
// relative path. It returns false when nothing writable remains.
func SanitizePath(name string) (string, bool) {
	if strings.ContainsRune(name, 0) {
		return "", false
	}

	segments := strings.FieldsFunc(name, func(r rune) bool {
		return r == '/' || r == '\\'
	})

	kept := make([]string, 0, len(segments))
	for i, seg := range segments {
		if seg == "." || seg == ".." {
			continue
		}
		// Drive letters ("C:") only make sense at the root.
		if i == 0 && isDriveLetter(seg) {
			continue
		}
		kept = append(kept, seg)
	}

	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, "/"), true
}

func isDriveLetter(seg string) bool {
	if len(seg) != 2 || seg[1] != ':' {
		return false
	}
	c := seg[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// target resolves a sanitized entry under dest and re-checks containment.
func target(dest, name string) (string, bool, error) {
	rel, ok := SanitizePath(name)
	if !ok {
		return "", false, nil
	}

	p := filepath.Join(dest, filepath.FromSlash(rel))
	r, err := filepath.Rel(dest, p)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", false, fmt.Errorf("%w: entry %q escapes destination", ErrCorrupt, name)
	}
	return p, true, nil
}

// sourceError marks failures that came from reading the archive rather
// than writing the destination.
type sourceError struct{ err error }

func (e *sourceError) Error() string { return e.err.Error() }
func (e *sourceError) Unwrap() error { return e.err }

type sourceReader struct{ r io.Reader }

func (s sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, &sourceError{err: err}
	}
	return n, err
}

// writeEntry streams src into path, classifying the failure side.
func (e *Extractor) writeEntry(path string, src io.Reader, mode os.FileMode, name string) (err error) {
	if err := e.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: failed to create parent of %s: %w", ErrIO, name, err)
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	// Owner must be able to replace the file on the next update.
	perm |= 0o600

	out, err := e.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("%w: failed to create %s: %w", ErrIO, name, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: failed to close %s: %w", ErrIO, name, closeErr)
		}
	}()

	limited := io.LimitReader(sourceReader{r: src}, e.maxEntryBytes+1)
	n, err := io.Copy(out, limited)
	if err != nil {
		var se *sourceError
		if errors.As(err, &se) {
			return fmt.Errorf("%w: failed to read %s: %w", ErrCorrupt, name, se.err)
		}
		return fmt.Errorf("%w: failed to write %s: %w", ErrIO, name, err)
	}
	if n > e.maxEntryBytes {
		return fmt.Errorf("%w: entry %s exceeds %d bytes", ErrCorrupt, name, e.maxEntryBytes)
	}
	return nil
}
