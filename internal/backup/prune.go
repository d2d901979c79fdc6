package backup

import (
	"fmt"
)

// DefaultKeepCount is the default number of backups to retain per component.
const DefaultKeepCount = 5

// PruneResult contains information about what was pruned.
type PruneResult struct {
	Deleted []BackupInfo `json:"deleted" yaml:"deleted"`
	Kept    int          `json:"kept" yaml:"kept"`
}

// Prune removes old backups, keeping only the most recent keep backups.
func (m *Manager) Prune(keep int) (*PruneResult, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep count must be non-negative")
	}

	backups, err := m.List()
	if err != nil {
		return nil, err
	}

	result := &PruneResult{}
	if len(backups) <= keep {
		result.Kept = len(backups)
		return result, nil
	}

	result.Kept = keep
	for _, b := range backups[keep:] {
		if err := m.Delete(b.ID); err != nil {
			return nil, fmt.Errorf("failed to delete backup %s: %w", b.ID, err)
		}
		result.Deleted = append(result.Deleted, b)
	}
	return result, nil
}
