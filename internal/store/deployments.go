package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/congwa/skillmgr/internal/model"
)

const deploymentColumns = `id, skill_id, project_id, tool, path, checksum, status,
	last_synced_at, created_at`

// UpsertDeployment creates a deployment or, when the (skill, project, tool)
// triple already has one, updates it in place. Deploying again to the same
// target never duplicates.
func (s *Store) UpsertDeployment(d *model.Deployment) error {
	if d.ID == "" {
		d.ID = NewID()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.LastSyncedAt.IsZero() {
		d.LastSyncedAt = now
	}
	if d.Status == "" {
		d.Status = model.StatusPending
	}

	_, err := s.db.Exec(`INSERT INTO skill_deployments
		(id, skill_id, project_id, tool, path, checksum, status, last_synced_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(skill_id, project_id, tool) DO UPDATE SET
			path = excluded.path,
			checksum = excluded.checksum,
			status = excluded.status,
			last_synced_at = excluded.last_synced_at`,
		d.ID, d.SkillID, d.ProjectID, d.Tool, d.Path, d.Checksum, d.Status,
		d.LastSyncedAt, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert deployment for skill %s: %w", d.SkillID, err)
	}

	// The insert may have collapsed onto an existing row; read back the
	// canonical id.
	row := s.db.QueryRow(`SELECT id FROM skill_deployments
		WHERE skill_id = ? AND project_id = ? AND tool = ?`,
		d.SkillID, d.ProjectID, d.Tool)
	return row.Scan(&d.ID)
}

// GetDeployment returns the deployment with the given id.
func (s *Store) GetDeployment(id string) (*model.Deployment, error) {
	row := s.db.QueryRow(`SELECT `+deploymentColumns+` FROM skill_deployments WHERE id = ?`, id)
	d, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// ListDeployments returns every deployment ordered by tool then path.
func (s *Store) ListDeployments() ([]model.Deployment, error) {
	return s.queryDeployments(`SELECT ` + deploymentColumns +
		` FROM skill_deployments ORDER BY tool, path`)
}

// ListDeploymentsForSkill returns every deployment of one skill.
func (s *Store) ListDeploymentsForSkill(skillID string) ([]model.Deployment, error) {
	return s.queryDeployments(`SELECT `+deploymentColumns+
		` FROM skill_deployments WHERE skill_id = ? ORDER BY tool, path`, skillID)
}

// UpdateDeploymentStatus atomically records the reconciler's view of one
// deployment.
func (s *Store) UpdateDeploymentStatus(id string, status model.DeploymentStatus, sum string) error {
	res, err := s.db.Exec(`UPDATE skill_deployments SET status = ?, checksum = ? WHERE id = ?`,
		status, sum, id)
	if err != nil {
		return fmt.Errorf("failed to update deployment status: %w", err)
	}
	return requireAffected(res, id)
}

// MarkDeploymentSynced records a successful directional copy.
func (s *Store) MarkDeploymentSynced(id, sum string) error {
	res, err := s.db.Exec(`UPDATE skill_deployments
		SET status = ?, checksum = ?, last_synced_at = ? WHERE id = ?`,
		model.StatusSynced, sum, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark deployment synced: %w", err)
	}
	return requireAffected(res, id)
}

// DeleteDeployment removes the deployment record.
func (s *Store) DeleteDeployment(id string) error {
	res, err := s.db.Exec(`DELETE FROM skill_deployments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deployment: %w", err)
	}
	return requireAffected(res, id)
}

func (s *Store) queryDeployments(query string, args ...any) ([]model.Deployment, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployments: %w", err)
	}
	defer rows.Close()

	var deployments []model.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, rows.Err()
}

func scanDeployment(r rowScanner) (*model.Deployment, error) {
	var d model.Deployment
	err := r.Scan(&d.ID, &d.SkillID, &d.ProjectID, &d.Tool, &d.Path, &d.Checksum,
		&d.Status, &d.LastSyncedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
