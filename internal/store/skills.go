package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/congwa/skillmgr/internal/model"
)

const skillColumns = `id, name, description, version, source, source_url, checksum,
	local_path, watcher_modified_at, watcher_backup_id, watcher_trigger_dep_id,
	last_modified_at, created_at`

// CreateSkill inserts a new skill. ID and CreatedAt are filled in when
// empty.
func (s *Store) CreateSkill(skill *model.Skill) error {
	if skill.ID == "" {
		skill.ID = NewID()
	}
	now := time.Now().UTC()
	if skill.CreatedAt.IsZero() {
		skill.CreatedAt = now
	}
	if skill.LastModifiedAt.IsZero() {
		skill.LastModifiedAt = now
	}
	if skill.Source == "" {
		skill.Source = model.SourceLocal
	}

	_, err := s.db.Exec(`INSERT INTO skills (id, name, description, version, source, source_url,
		checksum, local_path, watcher_modified_at, watcher_backup_id, watcher_trigger_dep_id,
		last_modified_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		skill.ID, skill.Name, skill.Description, skill.Version, skill.Source, skill.SourceURL,
		skill.Checksum, skill.LocalPath, asNullTime(skill.WatcherModifiedAt),
		skill.WatcherBackupID, skill.WatcherTriggerDepID, skill.LastModifiedAt, skill.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create skill %q: %w", skill.Name, err)
	}
	return nil
}

// GetSkill returns the skill with the given id.
func (s *Store) GetSkill(id string) (*model.Skill, error) {
	row := s.db.QueryRow(`SELECT `+skillColumns+` FROM skills WHERE id = ?`, id)
	return scanSkill(row)
}

// GetSkillByName returns the skill with the given name.
func (s *Store) GetSkillByName(name string) (*model.Skill, error) {
	row := s.db.QueryRow(`SELECT `+skillColumns+` FROM skills WHERE name = ?`, name)
	return scanSkill(row)
}

// ListSkills returns every skill ordered by name.
func (s *Store) ListSkills() ([]model.Skill, error) {
	rows, err := s.db.Query(`SELECT ` + skillColumns + ` FROM skills ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list skills: %w", err)
	}
	defer rows.Close()

	var skills []model.Skill
	for rows.Next() {
		skill, err := scanSkillRows(rows)
		if err != nil {
			return nil, err
		}
		skills = append(skills, *skill)
	}
	return skills, rows.Err()
}

// UpdateSkillChecksum records a new library checksum and bumps
// last_modified_at.
func (s *Store) UpdateSkillChecksum(id, sum string) error {
	res, err := s.db.Exec(`UPDATE skills SET checksum = ?, last_modified_at = ? WHERE id = ?`,
		sum, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update skill checksum: %w", err)
	}
	return requireAffected(res, id)
}

// SetWatcherPending records an absorbed watcher change awaiting resolution.
// The backup id is only overwritten when currently empty, preserving the
// recovery point when a second change coalesces into a pending one.
func (s *Store) SetWatcherPending(skillID, backupID, triggerDepID string) error {
	res, err := s.db.Exec(`UPDATE skills SET
		watcher_modified_at = ?,
		watcher_backup_id = CASE WHEN watcher_backup_id = '' THEN ? ELSE watcher_backup_id END,
		watcher_trigger_dep_id = ?
		WHERE id = ?`,
		time.Now().UTC(), backupID, triggerDepID, skillID)
	if err != nil {
		return fmt.Errorf("failed to set watcher pending state: %w", err)
	}
	return requireAffected(res, skillID)
}

// ClearWatcherPending resets all watcher-pending fields.
func (s *Store) ClearWatcherPending(skillID string) error {
	res, err := s.db.Exec(`UPDATE skills SET
		watcher_modified_at = NULL, watcher_backup_id = '', watcher_trigger_dep_id = ''
		WHERE id = ?`, skillID)
	if err != nil {
		return fmt.Errorf("failed to clear watcher pending state: %w", err)
	}
	return requireAffected(res, skillID)
}

// DeleteSkill removes a skill; deployments cascade.
func (s *Store) DeleteSkill(id string) error {
	res, err := s.db.Exec(`DELETE FROM skills WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete skill: %w", err)
	}
	return requireAffected(res, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSkill(row *sql.Row) (*model.Skill, error) {
	skill, err := scanSkillFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return skill, err
}

func scanSkillRows(rows *sql.Rows) (*model.Skill, error) {
	return scanSkillFrom(rows)
}

func scanSkillFrom(r rowScanner) (*model.Skill, error) {
	var skill model.Skill
	var watcherModified sql.NullTime
	err := r.Scan(&skill.ID, &skill.Name, &skill.Description, &skill.Version,
		&skill.Source, &skill.SourceURL, &skill.Checksum, &skill.LocalPath,
		&watcherModified, &skill.WatcherBackupID, &skill.WatcherTriggerDepID,
		&skill.LastModifiedAt, &skill.CreatedAt)
	if err != nil {
		return nil, err
	}
	skill.WatcherModifiedAt = nullTime(watcherModified)
	return &skill, nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
