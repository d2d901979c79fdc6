package update

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/adamancini/uplift/internal/types"
)

// DefaultFetchTimeout bounds a single artifact download.
const DefaultFetchTimeout = 100 * time.Second

// Fetcher downloads a release artifact into a StagingArea.
type Fetcher struct {
	fs        afero.Fs
	transport BinaryFetcher
	timeout   time.Duration
	verifier  Verifier
	log       *log.Logger
}

// NewFetcher creates a Fetcher. A zero timeout means DefaultFetchTimeout.
func NewFetcher(fs afero.Fs, transport BinaryFetcher, timeout time.Duration, logger *log.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Fetcher{fs: fs, transport: transport, timeout: timeout, log: logger}
}

// SetVerifier installs a post-download check. nil disables verification.
func (f *Fetcher) SetVerifier(v Verifier) {
	f.verifier = v
}

// Fetch clears the staging area and streams link into it. The artifact
// is named "source" plus the archive extension of link, when it has one.
func (f *Fetcher) Fetch(ctx context.Context, link string, kind types.ArtifactKind, staging StagingArea) (*StagedArtifact, error) {
	if err := staging.Reset(f.fs); err != nil {
		return nil, err
	}

	dest := staging.ArtifactPath(artifactExt(link, kind))
	out, err := f.fs.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create %s: %w", ErrStaging, dest, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	f.log.Debug("downloading artifact", "url", redactURL(link), "dest", dest)
	n, fetchErr := f.transport.FetchBytes(ctx, link, out)
	closeErr := out.Close()
	if fetchErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, fetchErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("%w: failed to write %s: %w", ErrStaging, dest, closeErr)
	}

	artifact := &StagedArtifact{Path: dest, Kind: kind, Link: link, Size: n}
	f.log.Info("artifact staged", "path", dest, "bytes", n, "kind", kind)

	if f.verifier != nil {
		if err := f.verifier.Verify(ctx, artifact); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrVerification, err)
		}
	}
	return artifact, nil
}

// artifactExt keeps the archive extension so the staged file is
// recognizable; single files keep their own extension.
func artifactExt(link string, kind types.ArtifactKind) string {
	name := link
	if u, err := url.Parse(link); err == nil {
		name = u.Path
	}
	if ext := types.ArchiveExtension(name); ext != "" {
		return ext
	}
	if kind.IsArchive() {
		return ".zip"
	}
	return path.Ext(path.Base(name))
}
