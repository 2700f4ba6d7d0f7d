// Package backup preserves snapshots of a skill's file set before any action
// that overwrites library content. Snapshots are plain directory copies
// addressed by backup_path and verified by checksum on restore.
package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/congwa/skillmgr/internal/checksum"
	"github.com/congwa/skillmgr/internal/fstree"
	"github.com/congwa/skillmgr/internal/logging"
	"github.com/congwa/skillmgr/internal/model"
	"github.com/congwa/skillmgr/internal/store"
)

// Manager creates, verifies, and restores backup snapshots.
type Manager struct {
	root  string
	store *store.Store
}

// NewManager creates a Manager storing snapshots under root.
func NewManager(root string, st *store.Store) *Manager {
	return &Manager{root: root, store: st}
}

// Create snapshots the skill's current library content, tagged with a
// reason. The snapshot lands under <root>/<skill-name>/<backup-id>; the id
// carries a random suffix, so rapid consecutive snapshots of the same skill
// never share a directory.
func (m *Manager) Create(ctx context.Context, skill *model.Skill, reason model.BackupReason) (*model.Backup, error) {
	tree, err := fstree.Read(ctx, skill.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read library content for %q: %w", skill.Name, err)
	}

	id := store.NewID()
	label := time.Now().UTC().Format("20060102-150405")
	backupPath := filepath.Join(m.root, skill.Name, id)
	if fstree.Exists(backupPath) {
		return nil, fmt.Errorf("backup path %q already occupied", backupPath)
	}

	report, err := fstree.Write(backupPath, tree)
	if err != nil {
		return nil, fmt.Errorf("failed to write backup for %q: %w", skill.Name, err)
	}
	if !report.OK() {
		// A partial snapshot is not a recovery point.
		_ = fstree.Remove(backupPath)
		return nil, fmt.Errorf("failed to back up %d of %d files for %q",
			len(report.Failures), len(tree), skill.Name)
	}

	b := &model.Backup{
		ID:           id,
		SkillID:      skill.ID,
		VersionLabel: label,
		BackupPath:   backupPath,
		Checksum:     checksum.Compute(tree),
		Reason:       reason,
	}
	if err := m.store.CreateBackup(b); err != nil {
		return nil, err
	}

	logging.Debug("backup created",
		logging.Skill(skill.Name),
		logging.Path(backupPath),
		logging.Checksum(b.Checksum),
	)
	return b, nil
}

// Read loads a backup's snapshot content after verifying it still hashes to
// the recorded checksum.
func (m *Manager) Read(ctx context.Context, backupID string) (*model.Backup, fstree.Tree, error) {
	b, err := m.store.GetBackup(backupID)
	if err != nil {
		return nil, nil, err
	}

	tree, err := fstree.Read(ctx, b.BackupPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read backup %s: %w", backupID, err)
	}
	if sum := checksum.Compute(tree); sum != b.Checksum {
		return nil, nil, fmt.Errorf("backup %s corrupted: checksum mismatch (expected %s, got %s)",
			backupID, b.Checksum, sum)
	}
	return b, tree, nil
}

// Verify checks that a backup's snapshot is intact.
func (m *Manager) Verify(ctx context.Context, backupID string) error {
	_, _, err := m.Read(ctx, backupID)
	return err
}

// Restore copies a verified backup's content over targetPath, replacing
// whatever is there. Returns the number of files written.
func (m *Manager) Restore(ctx context.Context, backupID, targetPath string) (int, error) {
	b, tree, err := m.Read(ctx, backupID)
	if err != nil {
		return 0, err
	}

	n, err := fstree.Replace(targetPath, tree)
	if err != nil {
		return n, err
	}

	logging.Debug("backup restored",
		logging.Path(targetPath),
		logging.Checksum(b.Checksum),
		logging.Count(n),
	)
	return n, nil
}
