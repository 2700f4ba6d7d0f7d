package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/congwa/skillmgr/internal/model"
)

// CreateChangeEvent appends a change event. Events are never physically
// deleted by the core.
func (s *Store) CreateChangeEvent(e *model.ChangeEvent) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Resolution == "" {
		e.Resolution = model.ResolutionPending
	}

	_, err := s.db.Exec(`INSERT INTO change_events
		(id, deployment_id, event_type, old_checksum, new_checksum, resolution, resolved_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DeploymentID, e.Type, e.OldChecksum, e.NewChecksum,
		e.Resolution, asNullTime(e.ResolvedAt), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create change event: %w", err)
	}
	return nil
}

// ListChangeEvents returns events newest first. With pendingOnly, only
// unresolved events are returned.
func (s *Store) ListChangeEvents(pendingOnly bool) ([]model.ChangeEvent, error) {
	query := `SELECT id, deployment_id, event_type, old_checksum, new_checksum,
		resolution, resolved_at, created_at FROM change_events`
	if pendingOnly {
		query += ` WHERE resolution = 'pending'`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list change events: %w", err)
	}
	defer rows.Close()

	var events []model.ChangeEvent
	for rows.Next() {
		var e model.ChangeEvent
		var resolved sql.NullTime
		if err := rows.Scan(&e.ID, &e.DeploymentID, &e.Type, &e.OldChecksum,
			&e.NewChecksum, &e.Resolution, &resolved, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ResolvedAt = nullTime(resolved)
		events = append(events, e)
	}
	return events, rows.Err()
}

// ResolveChangeEvent marks an event resolved or ignored.
func (s *Store) ResolveChangeEvent(id string, resolution model.EventResolution) error {
	res, err := s.db.Exec(`UPDATE change_events SET resolution = ?, resolved_at = ? WHERE id = ?`,
		resolution, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve change event: %w", err)
	}
	return requireAffected(res, id)
}

// AppendHistory records an executed sync action. Append-only.
func (s *Store) AppendHistory(h *model.SyncHistory) error {
	if h.ID == "" {
		h.ID = NewID()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`INSERT INTO sync_history
		(id, skill_id, deployment_id, action, from_checksum, to_checksum, status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.SkillID, h.DeploymentID, h.Action, h.FromChecksum, h.ToChecksum,
		h.Status, h.ErrorMessage, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append sync history: %w", err)
	}
	return nil
}

// ListHistory returns history entries newest first, up to limit (0 = all).
func (s *Store) ListHistory(limit int) ([]model.SyncHistory, error) {
	query := `SELECT id, skill_id, deployment_id, action, from_checksum, to_checksum,
		status, error_message, created_at FROM sync_history ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync history: %w", err)
	}
	defer rows.Close()

	var entries []model.SyncHistory
	for rows.Next() {
		var h model.SyncHistory
		if err := rows.Scan(&h.ID, &h.SkillID, &h.DeploymentID, &h.Action,
			&h.FromChecksum, &h.ToChecksum, &h.Status, &h.ErrorMessage, &h.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

// CreateBackup records a backup snapshot's metadata.
func (s *Store) CreateBackup(b *model.Backup) error {
	if b.ID == "" {
		b.ID = NewID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`INSERT INTO skill_backups
		(id, skill_id, version_label, backup_path, checksum, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.SkillID, b.VersionLabel, b.BackupPath, b.Checksum, b.Reason, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create backup record: %w", err)
	}
	return nil
}

// GetBackup returns the backup with the given id.
func (s *Store) GetBackup(id string) (*model.Backup, error) {
	row := s.db.QueryRow(`SELECT id, skill_id, version_label, backup_path, checksum, reason, created_at
		FROM skill_backups WHERE id = ?`, id)

	var b model.Backup
	err := row.Scan(&b.ID, &b.SkillID, &b.VersionLabel, &b.BackupPath, &b.Checksum,
		&b.Reason, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBackups returns backups newest first, optionally filtered by skill.
func (s *Store) ListBackups(skillID string) ([]model.Backup, error) {
	query := `SELECT id, skill_id, version_label, backup_path, checksum, reason, created_at
		FROM skill_backups`
	var args []any
	if skillID != "" {
		query += ` WHERE skill_id = ?`
		args = append(args, skillID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		var b model.Backup
		if err := rows.Scan(&b.ID, &b.SkillID, &b.VersionLabel, &b.BackupPath,
			&b.Checksum, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}
