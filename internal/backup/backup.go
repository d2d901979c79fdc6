// Package backup manages the copies of a component kept next to its
// install path each time an update replaces it.
//
// A backup of /opt/addons/demo taken at 2026-10-16 12:30:00 lives at
// /opt/addons/demo.backup-2026-10-16-123000, with its metadata in a
// sidecar file of the same name plus ".json".
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// IDFormat is the timestamp layout used for backup IDs.
const IDFormat = "2006-01-02-150405"

// Marker separates the install path from the backup ID.
const Marker = ".backup-"

const sidecarExt = ".json"

// ErrNotFound is returned when a backup ID has no matching backup.
var ErrNotFound = errors.New("backup not found")

// Backup is the sidecar metadata written next to a backup.
type Backup struct {
	ID          string    `json:"id" yaml:"id"`
	Component   string    `json:"component" yaml:"component"`
	Version     string    `json:"version,omitempty" yaml:"version,omitempty"`
	ReplacedBy  string    `json:"replaced_by,omitempty" yaml:"replaced_by,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	InstallPath string    `json:"install_path" yaml:"install_path"`
	Path        string    `json:"path" yaml:"path"`
}

// BackupInfo summarizes a backup for listing.
type BackupInfo struct {
	ID        string    `json:"id" yaml:"id"`
	Component string    `json:"component,omitempty" yaml:"component,omitempty"`
	Version   string    `json:"version,omitempty" yaml:"version,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Path      string    `json:"path" yaml:"path"`
	Size      int64     `json:"size" yaml:"size"`
}

// Manager handles the backups of one install path.
type Manager struct {
	fs          afero.Fs
	installPath string
}

// NewManager creates a manager for installPath.
func NewManager(fs afero.Fs, installPath string) *Manager {
	return &Manager{fs: fs, installPath: filepath.Clean(installPath)}
}

// Path returns the backup location for id.
func (m *Manager) Path(id string) string {
	return m.installPath + Marker + id
}

// validID reports whether id names a single sibling of the install path.
func validID(id string) bool {
	if id == "" || id == "." || strings.Contains(id, "..") {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

// NextID returns an unused backup ID for now.
func (m *Manager) NextID(now time.Time) string {
	base := now.Format(IDFormat)
	id := base
	for n := 2; ; n++ {
		if exists, _ := afero.Exists(m.fs, m.Path(id)); !exists {
			return id
		}
		id = base + "-" + strconv.Itoa(n)
	}
}

// Record writes the sidecar metadata for b.
func (m *Manager) Record(b *Backup) error {
	if b.Path == "" {
		b.Path = m.Path(b.ID)
	}
	if b.InstallPath == "" {
		b.InstallPath = m.installPath
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal backup metadata: %w", err)
	}
	if err := afero.WriteFile(m.fs, b.Path+sidecarExt, data, 0o644); err != nil {
		return fmt.Errorf("failed to write backup metadata: %w", err)
	}
	return nil
}

// List returns all backups of the install path, newest first.
func (m *Manager) List() ([]BackupInfo, error) {
	dir := filepath.Dir(m.installPath)
	prefix := filepath.Base(m.installPath) + Marker

	entries, err := afero.ReadDir(m.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		name := entry.Name()
		id, ok := strings.CutPrefix(name, prefix)
		if !ok || id == "" || strings.HasSuffix(name, sidecarExt) {
			continue
		}

		info := BackupInfo{ID: id, Path: filepath.Join(dir, name), Size: m.size(filepath.Join(dir, name), entry)}
		if b, err := m.load(id); err == nil {
			info.Component = b.Component
			info.Version = b.Version
			info.CreatedAt = b.CreatedAt
		} else if ts, err := time.ParseInLocation(IDFormat, id[:min(len(id), len(IDFormat))], time.Local); err == nil {
			info.CreatedAt = ts
		} else {
			info.CreatedAt = entry.ModTime()
		}
		backups = append(backups, info)
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].ID > backups[j].ID
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Get retrieves a backup by ID. Use "latest" to get the most recent backup.
func (m *Manager) Get(id string) (*Backup, error) {
	if id == "latest" {
		backups, err := m.List()
		if err != nil {
			return nil, err
		}
		if len(backups) == 0 {
			return nil, fmt.Errorf("%w: no backups of %s", ErrNotFound, m.installPath)
		}
		id = backups[0].ID
	}
	if !validID(id) {
		return nil, fmt.Errorf("%w: invalid backup ID %q", ErrNotFound, id)
	}

	if exists, _ := afero.Exists(m.fs, m.Path(id)); !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	b, err := m.load(id)
	if err != nil {
		// Metadata is optional; the backup itself is what matters.
		return &Backup{ID: id, InstallPath: m.installPath, Path: m.Path(id)}, nil
	}
	return b, nil
}

// Delete removes a backup and its metadata.
func (m *Manager) Delete(id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: invalid backup ID %q", ErrNotFound, id)
	}
	path := m.Path(id)
	if exists, _ := afero.Exists(m.fs, path); !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := m.fs.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	if err := m.fs.Remove(path + sidecarExt); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete backup metadata: %w", err)
	}
	return nil
}

// Restore moves backup id back to the install path. The current install,
// if any, is itself kept as a new backup whose ID is returned.
func (m *Manager) Restore(id string, now time.Time) (string, error) {
	b, err := m.Get(id)
	if err != nil {
		return "", err
	}

	var displaced string
	if exists, _ := afero.Exists(m.fs, m.installPath); exists {
		displaced = m.NextID(now)
		if err := m.fs.Rename(m.installPath, m.Path(displaced)); err != nil {
			return "", fmt.Errorf("failed to move current install aside: %w", err)
		}
	}

	if err := m.fs.Rename(b.Path, m.installPath); err != nil {
		if displaced != "" {
			if rbErr := m.fs.Rename(m.Path(displaced), m.installPath); rbErr != nil {
				return "", fmt.Errorf("failed to restore backup %s: %w (rollback failed: %v)", b.ID, err, rbErr)
			}
		}
		return "", fmt.Errorf("failed to restore backup %s: %w", b.ID, err)
	}
	_ = m.fs.Remove(b.Path + sidecarExt)

	if displaced != "" {
		_ = m.Record(&Backup{
			ID:         displaced,
			Component:  b.Component,
			ReplacedBy: b.Version,
			CreatedAt:  now,
		})
	}
	return displaced, nil
}

func (m *Manager) load(id string) (*Backup, error) {
	data, err := afero.ReadFile(m.fs, m.Path(id)+sidecarExt)
	if err != nil {
		return nil, err
	}
	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse backup metadata: %w", err)
	}
	b.ID = id
	b.Path = m.Path(id)
	return &b, nil
}

// size is the total size of the files under path.
func (m *Manager) size(path string, info os.FileInfo) int64 {
	if !info.IsDir() {
		return info.Size()
	}
	var total int64
	_ = afero.Walk(m.fs, path, func(_ string, fi os.FileInfo, err error) error {
		if err == nil && !fi.IsDir() {
			total += fi.Size()
		}
		return nil
	})
	return total
}
