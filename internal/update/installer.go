package update

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/adamancini/uplift/internal/archive"
	"github.com/adamancini/uplift/internal/backup"
)

// Install states, in the order an attempt moves through them.
const (
	stateStaged    = "staged"
	stateExtracted = "extracted"
	stateBackedUp  = "backed_up"
	stateSwapped   = "swapped"
	stateDone      = "done"
	stateFailed    = "failed"
)

const incomingMarker = ".incoming-"

// Installer replaces a component's install path with a staged artifact.
//
// The new payload is moved next to the install path first, the current
// install is renamed to a backup, and only then is the payload renamed
// into place. If that last rename fails the backup is renamed back, so
// the install path always holds either the old or the new payload.
type Installer struct {
	fs        afero.Fs
	extractor *archive.Extractor
	log       *log.Logger
	now       func() time.Time
}

// NewInstaller creates an Installer working on fs.
func NewInstaller(fs afero.Fs, logger *log.Logger) *Installer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Installer{
		fs:        fs,
		extractor: archive.New(fs),
		log:       logger,
		now:       time.Now,
	}
}

// Install applies artifact to c. version is the release being installed.
func (in *Installer) Install(ctx context.Context, c Component, version string, artifact *StagedArtifact, staging StagingArea, attemptID string) InstallResult {
	logger := in.log.With("component", c.Name, "attempt", attemptID)
	fail := func(state string, err error) InstallResult {
		logger.Error("install failed", "state", stateFailed, "at", state, "err", err)
		return failed(c.Name, attemptID, err)
	}

	if c.InstallPath == "" {
		return fail(stateStaged, fmt.Errorf("%w: component %s has no install path", ErrSwapFailed, c.Name))
	}
	installPath := filepath.Clean(c.InstallPath)
	logger.Info("install started", "state", stateStaged, "artifact", artifact.Path, "kind", artifact.Kind)

	payload := artifact.Path
	if artifact.Kind.IsArchive() {
		dir := staging.ExtractDir()
		if err := in.extractor.Extract(artifact.Path, dir); err != nil {
			return fail(stateExtracted, err)
		}
		root, err := payloadRoot(in.fs, dir)
		if err != nil {
			return fail(stateExtracted, err)
		}
		payload = root
	}
	logger.Debug("payload ready", "state", stateExtracted, "payload", payload)

	if err := ctx.Err(); err != nil {
		logger.Warn("install cancelled before touching install path", "err", err)
		return cancelled(c.Name, err.Error())
	}

	// Stage the payload beside the target so the swap is a same-directory rename.
	if err := in.fs.MkdirAll(filepath.Dir(installPath), 0o755); err != nil {
		return fail(stateExtracted, fmt.Errorf("%w: failed to create %s: %w", ErrSwapFailed, filepath.Dir(installPath), err))
	}
	incoming := installPath + incomingMarker + attemptID
	if _, err := move(in.fs, payload, incoming); err != nil {
		_ = in.fs.RemoveAll(incoming)
		return fail(stateExtracted, fmt.Errorf("%w: failed to stage payload beside %s: %w", ErrSwapFailed, installPath, err))
	}

	mgr := backup.NewManager(in.fs, installPath)
	present, err := exists(in.fs, installPath)
	if err != nil {
		_ = in.fs.RemoveAll(incoming)
		return fail(stateBackedUp, fmt.Errorf("%w: failed to inspect %s: %w", ErrBackupFailed, installPath, err))
	}

	var backupID, backupPath string
	var backupCopied bool
	if present {
		keepFileMode(in.fs, installPath, incoming)

		backupID = mgr.NextID(in.now())
		backupPath = mgr.Path(backupID)
		backupCopied, err = move(in.fs, installPath, backupPath)
		if err != nil {
			_ = in.fs.RemoveAll(incoming)
			return fail(stateBackedUp, fmt.Errorf("%w: %s: %w", ErrBackupFailed, installPath, err))
		}
		if backupCopied {
			if err := in.fs.RemoveAll(installPath); err != nil {
				rbErr := in.rollback(backupPath, installPath, true)
				_ = in.fs.RemoveAll(incoming)
				return fail(stateBackedUp, fmt.Errorf("%w: failed to clear %s: %w", ErrBackupFailed, installPath, joinRollback(err, rbErr)))
			}
		}
		logger.Info("previous install backed up", "state", stateBackedUp, "backup", backupPath)
	}

	if err := in.fs.Rename(incoming, installPath); err != nil {
		swapErr := fmt.Errorf("%w: %s: %w", ErrSwapFailed, installPath, err)
		if present {
			if rbErr := in.rollback(backupPath, installPath, backupCopied); rbErr != nil {
				swapErr = fmt.Errorf("%w (rollback failed: %w)", swapErr, rbErr)
			} else {
				logger.Warn("swap failed, previous install restored", "path", installPath)
			}
		}
		_ = in.fs.RemoveAll(incoming)
		return fail(stateSwapped, swapErr)
	}
	logger.Info("new payload in place", "state", stateSwapped, "path", installPath)

	if present {
		meta := &backup.Backup{
			ID:         backupID,
			Component:  c.Name,
			Version:    c.InstalledVersion,
			ReplacedBy: version,
			CreatedAt:  in.now(),
		}
		if err := mgr.Record(meta); err != nil {
			logger.Warn("failed to record backup metadata", "backup", backupPath, "err", err)
		}
	}
	if err := staging.Remove(in.fs); err != nil {
		logger.Warn("failed to remove staging area", "path", staging.Root, "err", err)
	}

	logger.Info("install complete", "state", stateDone, "version", version, "backup", backupPath)
	return succeeded(c.Name, version, backupPath, attemptID)
}

// rollback puts the backup back at the install path.
func (in *Installer) rollback(backupPath, installPath string, copied bool) error {
	if !copied {
		return in.fs.Rename(backupPath, installPath)
	}
	if err := in.fs.RemoveAll(installPath); err != nil {
		return err
	}
	return copyTree(in.fs, backupPath, installPath)
}

func joinRollback(err, rbErr error) error {
	if rbErr == nil {
		return err
	}
	return fmt.Errorf("%w (rollback failed: %w)", err, rbErr)
}

// keepFileMode gives a single-file payload the permissions of the file
// it replaces. Directory payloads keep their own mode.
func keepFileMode(fs afero.Fs, installPath, incoming string) {
	old, err := fs.Stat(installPath)
	if err != nil || old.IsDir() {
		return
	}
	next, err := fs.Stat(incoming)
	if err != nil || next.IsDir() {
		return
	}
	_ = fs.Chmod(incoming, old.Mode().Perm())
}

// archiveJunk names top-level entries that archivers add beside the
// real content.
var archiveJunk = map[string]bool{
	"__MACOSX":  true,
	".DS_Store": true,
}

// payloadRoot collapses an archive that holds a single top-level
// directory to that directory. Archiver metadata beside it is ignored
// and left out of the payload.
func payloadRoot(fs afero.Fs, dir string) (string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read %s: %w", archive.ErrIO, dir, err)
	}

	var content []os.FileInfo
	for _, e := range entries {
		if !archiveJunk[e.Name()] {
			content = append(content, e)
		}
	}
	if len(content) == 0 {
		return "", fmt.Errorf("%w: archive has no entries", archive.ErrCorrupt)
	}
	if len(content) == 1 && content[0].IsDir() {
		return filepath.Join(dir, content[0].Name()), nil
	}
	if len(content) < len(entries) {
		for _, e := range entries {
			if archiveJunk[e.Name()] {
				if err := fs.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
					return "", fmt.Errorf("%w: failed to remove %s: %w", archive.ErrIO, e.Name(), err)
				}
			}
		}
	}
	return dir, nil
}
