package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/congwa/skillmgr/internal/model"
)

// CreateProject registers a project root.
func (s *Store) CreateProject(p *model.Project) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`INSERT INTO projects (id, name, path, last_scanned_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Path, asNullTime(p.LastScannedAt), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project %q: %w", p.Name, err)
	}
	return nil
}

// GetProject returns the project with the given id.
func (s *Store) GetProject(id string) (*model.Project, error) {
	row := s.db.QueryRow(`SELECT id, name, path, last_scanned_at, created_at
		FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// ListProjects returns every registered project ordered by name.
func (s *Store) ListProjects() ([]model.Project, error) {
	rows, err := s.db.Query(`SELECT id, name, path, last_scanned_at, created_at
		FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		var scanned sql.NullTime
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &scanned, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.LastScannedAt = nullTime(scanned)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// TouchProjectScanned records that an untracked scan covered this project.
func (s *Store) TouchProjectScanned(id string) error {
	res, err := s.db.Exec(`UPDATE projects SET last_scanned_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch project: %w", err)
	}
	return requireAffected(res, id)
}

// UpsertSource records or refreshes a skill's remote origin.
func (s *Store) UpsertSource(src *model.SkillSource) error {
	if src.ID == "" {
		src.ID = NewID()
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`INSERT INTO skill_sources
		(id, skill_id, source_type, url, installed_version, original_checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(skill_id) DO UPDATE SET
			source_type = excluded.source_type,
			url = excluded.url,
			installed_version = excluded.installed_version,
			original_checksum = excluded.original_checksum`,
		src.ID, src.SkillID, src.SourceType, src.URL, src.InstalledVersion,
		src.OriginalChecksum, src.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert skill source: %w", err)
	}
	return nil
}

// GetSourceForSkill returns the remote origin record for a skill.
func (s *Store) GetSourceForSkill(skillID string) (*model.SkillSource, error) {
	row := s.db.QueryRow(`SELECT id, skill_id, source_type, url, installed_version,
		original_checksum, created_at FROM skill_sources WHERE skill_id = ?`, skillID)

	var src model.SkillSource
	err := row.Scan(&src.ID, &src.SkillID, &src.SourceType, &src.URL,
		&src.InstalledVersion, &src.OriginalChecksum, &src.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func scanProject(row *sql.Row) (*model.Project, error) {
	var p model.Project
	var scanned sql.NullTime
	err := row.Scan(&p.ID, &p.Name, &p.Path, &scanned, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.LastScannedAt = nullTime(scanned)
	return &p, nil
}
