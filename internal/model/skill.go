// Package model defines the entities managed by skillmgr: skills, their
// deployments, and the audit records (change events, sync history, backups)
// that track how they evolve.
package model

import "time"

// SourceType identifies where a skill originally came from.
type SourceType string

const (
	SourceLocal          SourceType = "local"
	SourceRegistry       SourceType = "registry"
	SourceVersionControl SourceType = "version-control"
	SourceMirror         SourceType = "mirror"
)

// IsRemote returns true if the skill was installed from a remote origin and
// is therefore eligible for remote update checking.
func (s SourceType) IsRemote() bool {
	switch s {
	case SourceRegistry, SourceVersionControl, SourceMirror:
		return true
	default:
		return false
	}
}

// Skill represents a named, versioned bundle of files held in the library.
type Skill struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Version     string     `json:"version,omitempty"`
	Source      SourceType `json:"source"`
	SourceURL   string     `json:"source_url,omitempty"`
	Checksum    string     `json:"checksum,omitempty"`
	LocalPath   string     `json:"local_path"`

	// Watcher-pending fields. WatcherModifiedAt is non-nil exactly while an
	// externally detected change has been absorbed into the library and is
	// awaiting an operator decision.
	WatcherModifiedAt    *time.Time `json:"watcher_modified_at,omitempty"`
	WatcherBackupID      string     `json:"watcher_backup_id,omitempty"`
	WatcherTriggerDepID  string     `json:"watcher_trigger_dep_id,omitempty"`

	LastModifiedAt time.Time `json:"last_modified_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasPendingWatcherChange reports whether an absorbed watcher change is
// still unresolved.
func (s Skill) HasPendingWatcherChange() bool {
	return s.WatcherModifiedAt != nil
}

// SkillSource records the remote origin of an installed skill, including the
// content fingerprint and version recorded at install time.
type SkillSource struct {
	ID               string     `json:"id"`
	SkillID          string     `json:"skill_id"`
	SourceType       SourceType `json:"source_type"`
	URL              string     `json:"url,omitempty"`
	InstalledVersion string     `json:"installed_version,omitempty"`
	OriginalChecksum string     `json:"original_checksum,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
