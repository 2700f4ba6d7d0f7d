package store

// schemaSQL is the single source of truth for the database schema. Tests
// open in-memory databases against this exact schema, so any repository code
// referencing a missing column fails immediately.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS skills (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	version TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT 'local' CHECK(source IN ('local', 'registry', 'version-control', 'mirror')),
	source_url TEXT NOT NULL DEFAULT '',
	checksum TEXT NOT NULL DEFAULT '',
	local_path TEXT NOT NULL,
	watcher_modified_at DATETIME,
	watcher_backup_id TEXT NOT NULL DEFAULT '',
	watcher_trigger_dep_id TEXT NOT NULL DEFAULT '',
	last_modified_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS skill_sources (
	id TEXT PRIMARY KEY,
	skill_id TEXT NOT NULL UNIQUE,
	source_type TEXT NOT NULL,
	url TEXT NOT NULL DEFAULT '',
	installed_version TEXT NOT NULL DEFAULT '',
	original_checksum TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	FOREIGN KEY (skill_id) REFERENCES skills(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	path TEXT NOT NULL UNIQUE,
	last_scanned_at DATETIME,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS skill_deployments (
	id TEXT PRIMARY KEY,
	skill_id TEXT NOT NULL,
	project_id TEXT NOT NULL DEFAULT '',
	tool TEXT NOT NULL,
	path TEXT NOT NULL,
	checksum TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('synced', 'diverged', 'missing', 'untracked', 'pending')),
	last_synced_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (skill_id) REFERENCES skills(id) ON DELETE CASCADE,
	UNIQUE(skill_id, project_id, tool)
);

CREATE TABLE IF NOT EXISTS skill_backups (
	id TEXT PRIMARY KEY,
	skill_id TEXT NOT NULL,
	version_label TEXT NOT NULL DEFAULT '',
	backup_path TEXT NOT NULL,
	checksum TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL CHECK(reason IN ('pre-update', 'pre-restore', 'manual')),
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_history (
	id TEXT PRIMARY KEY,
	skill_id TEXT NOT NULL,
	deployment_id TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	from_checksum TEXT NOT NULL DEFAULT '',
	to_checksum TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL CHECK(status IN ('success', 'failed')),
	error_message TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS change_events (
	id TEXT PRIMARY KEY,
	deployment_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	old_checksum TEXT NOT NULL DEFAULT '',
	new_checksum TEXT NOT NULL DEFAULT '',
	resolution TEXT NOT NULL DEFAULT 'pending' CHECK(resolution IN ('pending', 'resolved', 'ignored')),
	resolved_at DATETIME,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deployments_skill ON skill_deployments(skill_id);
CREATE INDEX IF NOT EXISTS idx_events_deployment ON change_events(deployment_id);
CREATE INDEX IF NOT EXISTS idx_history_skill ON sync_history(skill_id);
CREATE INDEX IF NOT EXISTS idx_backups_skill ON skill_backups(skill_id);
`
