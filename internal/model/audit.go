package model

import "time"

// EventType classifies a detected divergence or filesystem notification.
type EventType string

const (
	EventModified         EventType = "modified"
	EventCreated          EventType = "created"
	EventDeleted          EventType = "deleted"
	EventChecksumMismatch EventType = "checksum_mismatch"
	EventUntrackedSkill   EventType = "untracked_skill"
)

// EventResolution is the operator's disposition of a change event.
type EventResolution string

const (
	ResolutionPending  EventResolution = "pending"
	ResolutionResolved EventResolution = "resolved"
	ResolutionIgnored  EventResolution = "ignored"
)

// ChangeEvent is an immutable record of a detected divergence. Only the
// resolution fields are mutable; events are never physically deleted by the
// core.
type ChangeEvent struct {
	ID           string          `json:"id"`
	DeploymentID string          `json:"deployment_id"`
	Type         EventType       `json:"event_type"`
	OldChecksum  string          `json:"old_checksum,omitempty"`
	NewChecksum  string          `json:"new_checksum,omitempty"`
	Resolution   EventResolution `json:"resolution"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// HistoryAction identifies the sync action a history entry records.
type HistoryAction string

const (
	ActionDeploy  HistoryAction = "deploy"
	ActionUpdate  HistoryAction = "update"
	ActionDelete  HistoryAction = "delete"
	ActionRestore HistoryAction = "restore"
	ActionImport  HistoryAction = "import"
	ActionExport  HistoryAction = "export"
)

// HistoryStatus is the outcome of a recorded sync action.
type HistoryStatus string

const (
	HistorySuccess HistoryStatus = "success"
	HistoryFailed  HistoryStatus = "failed"
)

// SyncHistory is an append-only audit log entry for an executed sync action.
type SyncHistory struct {
	ID           string        `json:"id"`
	SkillID      string        `json:"skill_id"`
	DeploymentID string        `json:"deployment_id,omitempty"`
	Action       HistoryAction `json:"action"`
	FromChecksum string        `json:"from_checksum,omitempty"`
	ToChecksum   string        `json:"to_checksum,omitempty"`
	Status       HistoryStatus `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// BackupReason tags why a backup snapshot was taken.
type BackupReason string

const (
	ReasonPreUpdate  BackupReason = "pre-update"
	ReasonPreRestore BackupReason = "pre-restore"
	ReasonManual     BackupReason = "manual"
)

// Backup is a preserved snapshot of a skill's file set. Backups are created
// before any action that overwrites library content and are never
// auto-deleted by the core.
type Backup struct {
	ID           string       `json:"id"`
	SkillID      string       `json:"skill_id"`
	VersionLabel string       `json:"version_label,omitempty"`
	BackupPath   string       `json:"backup_path"`
	Checksum     string       `json:"checksum"`
	Reason       BackupReason `json:"reason"`
	CreatedAt    time.Time    `json:"created_at"`
}
