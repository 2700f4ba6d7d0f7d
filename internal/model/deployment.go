package model

import "time"

// DeploymentStatus is the reconciler's view of a single deployment.
// No status is terminal; every re-reconciliation may move a deployment to
// any other status.
type DeploymentStatus string

const (
	// StatusSynced means the deployed checksum equals the library checksum.
	StatusSynced DeploymentStatus = "synced"
	// StatusDiverged means the deployment exists but its content differs
	// from the library.
	StatusDiverged DeploymentStatus = "diverged"
	// StatusMissing means the deployment path no longer exists on disk.
	StatusMissing DeploymentStatus = "missing"
	// StatusUntracked means content exists on disk under a known tool
	// convention but has no deployment record.
	StatusUntracked DeploymentStatus = "untracked"
	// StatusPending means the deployment was freshly created and has not
	// been verified yet.
	StatusPending DeploymentStatus = "pending"
)

// IsValid returns true if the status is recognized.
func (s DeploymentStatus) IsValid() bool {
	switch s {
	case StatusSynced, StatusDiverged, StatusMissing, StatusUntracked, StatusPending:
		return true
	default:
		return false
	}
}

// Deployment is a single placement of a skill's files at a filesystem path
// for a specific tool, optionally scoped to a project. An empty ProjectID
// means a global (user-level) deployment.
type Deployment struct {
	ID           string           `json:"id"`
	SkillID      string           `json:"skill_id"`
	ProjectID    string           `json:"project_id,omitempty"`
	Tool         Tool             `json:"tool"`
	Path         string           `json:"path"`
	Checksum     string           `json:"checksum,omitempty"`
	Status       DeploymentStatus `json:"status"`
	LastSyncedAt time.Time        `json:"last_synced_at"`
	CreatedAt    time.Time        `json:"created_at"`
}

// IsGlobal reports whether this is a user-level deployment.
func (d Deployment) IsGlobal() bool {
	return d.ProjectID == ""
}

// Project is a registered project root whose tool directories are scanned
// for deployments.
type Project struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Path          string     `json:"path"`
	LastScannedAt *time.Time `json:"last_scanned_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
