package update

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable means the release listing could not be retrieved.
	ErrUnreachable = errors.New("release source unreachable")
	// ErrNoReleases means the listing had no usable release link.
	ErrNoReleases = errors.New("no releases found")
	// ErrUnsupported is returned for operations this engine does not provide.
	ErrUnsupported = errors.New("unsupported")
	// ErrNetwork means the artifact download failed or timed out.
	ErrNetwork = errors.New("artifact download failed")
	// ErrStaging means the staging area could not be prepared or written.
	ErrStaging = errors.New("staging area unavailable")
	// ErrVerification means a configured Verifier rejected the artifact.
	ErrVerification = errors.New("artifact verification failed")
	// ErrBackupFailed means the current install could not be backed up.
	// The install path is untouched.
	ErrBackupFailed = errors.New("backup failed")
	// ErrSwapFailed means the new payload could not be moved into place.
	// The previous install has been restored.
	ErrSwapFailed = errors.New("swap failed")
)

// ComponentError ties a check failure to the component that produced it.
type ComponentError struct {
	Name string
	Err  error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *ComponentError) Unwrap() error { return e.Err }
