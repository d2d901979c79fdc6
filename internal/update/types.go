// Package update checks installed components against their release
// sources and replaces them with newer releases.
package update

import (
	"context"
	"io"

	"github.com/adamancini/uplift/internal/types"
)

// Component is an installed, updatable unit: an add-on directory or a
// single file that tracks releases published at Source.
type Component struct {
	Name             string         `json:"name" yaml:"name" toml:"name"`
	Source           string         `json:"source" yaml:"source" toml:"source"`
	InstalledVersion string         `json:"installed_version" yaml:"installed_version" toml:"installed_version"`
	InstallPath      string         `json:"install_path" yaml:"install_path" toml:"install_path"`
	Strategy         types.Strategy `json:"strategy,omitempty" yaml:"strategy,omitempty" toml:"strategy,omitempty"`
}

// UpdateStatus is the outcome of checking one component.
type UpdateStatus struct {
	Available        bool               `json:"available" yaml:"available"`
	DownloadLink     string             `json:"download_link" yaml:"download_link"`
	ArtifactKind     types.ArtifactKind `json:"artifact_kind" yaml:"artifact_kind"`
	ComponentName    string             `json:"component" yaml:"component"`
	ReleaseLabel     string             `json:"release_label" yaml:"release_label"`
	InstalledVersion string             `json:"installed_version" yaml:"installed_version"`
}

// ResolvedRelease is the newest release a Resolver found for a source.
type ResolvedRelease struct {
	Label        string
	DownloadLink string
	Kind         types.ArtifactKind
}

// StagedArtifact is a downloaded artifact waiting inside the staging area.
type StagedArtifact struct {
	Path string
	Kind types.ArtifactKind
	Link string
	Size int64
}

// InstallStatus is the terminal state of an install attempt.
type InstallStatus int

const (
	InstallSuccess InstallStatus = iota
	InstallCancelled
	InstallFailed
)

// String returns the lowercase status name.
func (s InstallStatus) String() string {
	switch s {
	case InstallSuccess:
		return "success"
	case InstallCancelled:
		return "cancelled"
	case InstallFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InstallResult reports how an install attempt ended.
type InstallResult struct {
	Status     InstallStatus
	Component  string
	Version    string
	Reason     string
	Err        error
	BackupPath string
	AttemptID  string
}

// OK reports whether the install succeeded.
func (r InstallResult) OK() bool { return r.Status == InstallSuccess }

func succeeded(component, version, backupPath, attemptID string) InstallResult {
	return InstallResult{
		Status:     InstallSuccess,
		Component:  component,
		Version:    version,
		BackupPath: backupPath,
		AttemptID:  attemptID,
	}
}

func cancelled(component, reason string) InstallResult {
	return InstallResult{Status: InstallCancelled, Component: component, Reason: reason}
}

func failed(component, attemptID string, err error) InstallResult {
	return InstallResult{
		Status:    InstallFailed,
		Component: component,
		Reason:    err.Error(),
		Err:       err,
		AttemptID: attemptID,
	}
}

// PageFetcher retrieves a text document such as a tags page or API response.
type PageFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// BinaryFetcher streams a remote resource into w and returns the byte count.
type BinaryFetcher interface {
	FetchBytes(ctx context.Context, url string, w io.Writer) (int64, error)
}

// Transport combines both fetch operations.
type Transport interface {
	PageFetcher
	BinaryFetcher
}

// Resolver discovers the newest release published at a source location.
type Resolver interface {
	Resolve(ctx context.Context, source string) (*ResolvedRelease, error)
}

// Verifier checks a staged artifact before it is extracted or installed.
// No verifier is configured by default.
type Verifier interface {
	Verify(ctx context.Context, artifact *StagedArtifact) error
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, artifact *StagedArtifact) error

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, artifact *StagedArtifact) error {
	return f(ctx, artifact)
}
