package update

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// StagingDirName is the staging directory created next to the executable.
const StagingDirName = "update_staging"

// artifactBase is the file name of every downloaded artifact.
const artifactBase = "source"

// StagingArea is a scratch directory owned by the engine. It is wiped
// before each fetch and removed after a successful install.
type StagingArea struct {
	Root string
}

// DefaultStagingArea places the staging area beside the running binary.
func DefaultStagingArea() (StagingArea, error) {
	exe, err := os.Executable()
	if err != nil {
		return StagingArea{}, fmt.Errorf("%w: failed to locate executable: %w", ErrStaging, err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return StagingArea{Root: filepath.Join(filepath.Dir(exe), StagingDirName)}, nil
}

// Reset deletes any previous contents and recreates the root.
func (s StagingArea) Reset(fs afero.Fs) error {
	if s.Root == "" {
		return fmt.Errorf("%w: staging root is not set", ErrStaging)
	}
	if err := fs.RemoveAll(s.Root); err != nil {
		return fmt.Errorf("%w: failed to clear %s: %w", ErrStaging, s.Root, err)
	}
	if err := fs.MkdirAll(s.Root, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create %s: %w", ErrStaging, s.Root, err)
	}
	return nil
}

// Remove deletes the staging area.
func (s StagingArea) Remove(fs afero.Fs) error {
	if s.Root == "" {
		return nil
	}
	return fs.RemoveAll(s.Root)
}

// ArtifactPath is where an artifact with extension ext is written.
func (s StagingArea) ArtifactPath(ext string) string {
	return filepath.Join(s.Root, artifactBase+ext)
}

// ExtractDir is where archive artifacts are unpacked.
func (s StagingArea) ExtractDir() string {
	return filepath.Join(s.Root, "extracted")
}
