// Package sync executes resolution decisions: pushing library content to
// deployments, pulling deployment content back into the library, deploying
// to new targets, and restoring from backups. Every destructive write is
// preceded by a backup and followed by a history record, in that order, so a
// crash mid-operation leaves recoverable state.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/congwa/skillmgr/internal/backup"
	"github.com/congwa/skillmgr/internal/checksum"
	"github.com/congwa/skillmgr/internal/fstree"
	"github.com/congwa/skillmgr/internal/logging"
	"github.com/congwa/skillmgr/internal/model"
	"github.com/congwa/skillmgr/internal/oplock"
	"github.com/congwa/skillmgr/internal/store"
)

// ErrChecksumMismatch means the content written to disk does not hash to the
// expected value: filesystem corruption or a concurrent external
// modification. Retryable.
var ErrChecksumMismatch = errors.New("checksum mismatch after write")

// Executor applies sync actions with safety rails.
type Executor struct {
	store   *store.Store
	backups *backup.Manager
	locks   *oplock.Table
	// home anchors global deployment paths.
	home string
}

// NewExecutor creates an Executor. The lock table must be shared with the
// reconciler.
func NewExecutor(st *store.Store, backups *backup.Manager, locks *oplock.Table, home string) *Executor {
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return &Executor{store: st, backups: backups, locks: locks, home: home}
}

// SyncResult reports a completed directional copy.
type SyncResult struct {
	FilesCopied int    `json:"files_copied"`
	OldChecksum string `json:"old_checksum,omitempty"`
	NewChecksum string `json:"new_checksum"`
}

// SyncDeployment copies the library content over the deployment path,
// verifies the written content, and marks the deployment synced. On failure
// the deployment status is left unchanged and a failed history row is
// appended.
func (e *Executor) SyncDeployment(ctx context.Context, deploymentID string) (*SyncResult, error) {
	release, err := e.locks.Acquire(deploymentID)
	if err != nil {
		return nil, err
	}
	defer release()

	dep, err := e.store.GetDeployment(deploymentID)
	if err != nil {
		return nil, err
	}
	skill, err := e.store.GetSkill(dep.SkillID)
	if err != nil {
		return nil, err
	}

	result, err := e.pushLibrary(ctx, skill, dep)
	e.recordHistory(skill.ID, dep.ID, model.ActionDeploy, dep.Checksum, skill.Checksum, err)
	return result, err
}

// pushLibrary performs the library→deployment copy with post-write
// verification. Callers hold the deployment lock.
func (e *Executor) pushLibrary(ctx context.Context, skill *model.Skill, dep *model.Deployment) (*SyncResult, error) {
	libTree, err := fstree.Read(ctx, skill.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read library for %q: %w", skill.Name, err)
	}

	n, err := fstree.Replace(dep.Path, libTree)
	if err != nil {
		return nil, err
	}

	// Verify what actually landed on disk.
	written, err := checksum.Dir(ctx, dep.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to verify written content at %q: %w", dep.Path, err)
	}
	if written != skill.Checksum {
		return nil, fmt.Errorf("%w: expected %s, found %s at %q",
			ErrChecksumMismatch, skill.Checksum, written, dep.Path)
	}

	if err := e.store.MarkDeploymentSynced(dep.ID, written); err != nil {
		return nil, err
	}

	logging.Info("deployment synced from library",
		logging.Skill(skill.Name),
		logging.Deployment(dep.ID),
		logging.Count(n),
	)
	return &SyncResult{FilesCopied: n, OldChecksum: dep.Checksum, NewChecksum: written}, nil
}

// UpdateResult reports a deployment→library pull.
type UpdateResult struct {
	SkillName              string `json:"skill_name"`
	BackupID               string `json:"backup_id"`
	NewChecksum            string `json:"new_checksum"`
	OtherDeploymentsSynced int    `json:"other_deployments_synced"`
}

// UpdateLibraryFromDeployment pulls a deployment's current content into the
// library, backing up the library first. With propagate, every other
// deployment of the skill is then pushed the new content; per-deployment
// failures are logged and do not abort the remaining pushes.
func (e *Executor) UpdateLibraryFromDeployment(ctx context.Context, deploymentID string, propagate bool) (*UpdateResult, error) {
	release, err := e.locks.Acquire(deploymentID)
	if err != nil {
		return nil, err
	}
	defer release()

	dep, err := e.store.GetDeployment(deploymentID)
	if err != nil {
		return nil, err
	}
	skill, err := e.store.GetSkill(dep.SkillID)
	if err != nil {
		return nil, err
	}

	result, err := e.pullDeployment(ctx, skill, dep)
	e.recordHistory(skill.ID, dep.ID, model.ActionUpdate, skill.Checksum, dep.Checksum, err)
	if err != nil {
		return nil, err
	}

	if propagate {
		others, err := e.store.ListDeploymentsForSkill(skill.ID)
		if err != nil {
			return result, err
		}
		for _, other := range others {
			if other.ID == dep.ID {
				continue
			}
			if _, err := e.SyncDeployment(ctx, other.ID); err != nil {
				logging.Warn("propagation failed for deployment",
					logging.Deployment(other.ID),
					logging.Err(err),
				)
				continue
			}
			result.OtherDeploymentsSynced++
		}
	}

	return result, nil
}

// pullDeployment performs the deployment→library copy: backup, copy, update
// checksum.
func (e *Executor) pullDeployment(ctx context.Context, skill *model.Skill, dep *model.Deployment) (*UpdateResult, error) {
	depTree, err := fstree.Read(ctx, dep.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment %s: %w", dep.ID, err)
	}

	b, err := e.backups.Create(ctx, skill, model.ReasonPreUpdate)
	if err != nil {
		return nil, fmt.Errorf("failed to back up library before update: %w", err)
	}

	if _, err := fstree.Replace(skill.LocalPath, depTree); err != nil {
		return nil, err
	}

	newSum := checksum.Compute(depTree)
	if err := e.store.UpdateSkillChecksum(skill.ID, newSum); err != nil {
		return nil, err
	}
	if err := e.store.MarkDeploymentSynced(dep.ID, newSum); err != nil {
		return nil, err
	}

	logging.Info("library updated from deployment",
		logging.Skill(skill.Name),
		logging.Deployment(dep.ID),
		logging.Checksum(newSum),
	)
	return &UpdateResult{SkillName: skill.Name, BackupID: b.ID, NewChecksum: newSum}, nil
}

// ConflictInfo is a structured "target already has different content"
// result. Not an error: the caller must decide to force or abort.
type ConflictInfo struct {
	Status           string `json:"status"`
	Path             string `json:"path"`
	ExistingChecksum string `json:"existing_checksum"`
	LibraryChecksum  string `json:"library_checksum"`
}

// DeployResult reports a deploy-to-target action.
type DeployResult struct {
	Conflict     *ConflictInfo `json:"conflict,omitempty"`
	DeploymentID string        `json:"deployment_id,omitempty"`
	Path         string        `json:"path,omitempty"`
	FilesCopied  int           `json:"files_copied"`
}

// DeployToTarget places a skill at the path dictated by the tool's
// directory convention, globally or inside a project. An existing target
// with identical content is an idempotent success; an existing target with
// different content returns a ConflictInfo unless forceOverwrite is set.
func (e *Executor) DeployToTarget(ctx context.Context, skillID string, tool model.Tool, projectID string, forceOverwrite bool) (*DeployResult, error) {
	if !tool.IsValid() {
		return nil, fmt.Errorf("unsupported tool: %s", tool)
	}

	skill, err := e.store.GetSkill(skillID)
	if err != nil {
		return nil, err
	}

	var base string
	if projectID == "" {
		base = filepath.Join(e.home, tool.GlobalRelativeDir())
	} else {
		project, err := e.store.GetProject(projectID)
		if err != nil {
			return nil, err
		}
		base = filepath.Join(project.Path, tool.ProjectRelativeDir())
	}
	target := filepath.Join(base, skill.Name)

	libTree, err := fstree.Read(ctx, skill.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read library for %q: %w", skill.Name, err)
	}

	result := &DeployResult{Path: target}
	if fstree.Exists(target) {
		existing, err := checksum.Dir(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect existing target %q: %w", target, err)
		}
		if existing == skill.Checksum {
			// Already deployed with identical content; record and return
			// without rewriting.
			dep := &model.Deployment{
				SkillID:   skill.ID,
				ProjectID: projectID,
				Tool:      tool,
				Path:      target,
				Checksum:  existing,
				Status:    model.StatusSynced,
			}
			if err := e.store.UpsertDeployment(dep); err != nil {
				return nil, err
			}
			result.DeploymentID = dep.ID
			return result, nil
		}
		if !forceOverwrite {
			result.Conflict = &ConflictInfo{
				Status:           "exists_different",
				Path:             target,
				ExistingChecksum: existing,
				LibraryChecksum:  skill.Checksum,
			}
			return result, nil
		}
	}

	n, err := fstree.Replace(target, libTree)
	if err != nil {
		e.recordHistory(skill.ID, "", model.ActionDeploy, "", skill.Checksum, err)
		return nil, err
	}

	dep := &model.Deployment{
		SkillID:   skill.ID,
		ProjectID: projectID,
		Tool:      tool,
		Path:      target,
		Checksum:  skill.Checksum,
		Status:    model.StatusSynced,
	}
	if err := e.store.UpsertDeployment(dep); err != nil {
		return nil, err
	}
	e.recordHistory(skill.ID, dep.ID, model.ActionDeploy, "", skill.Checksum, nil)

	logging.Info("skill deployed",
		logging.Skill(skill.Name),
		logging.Tool(string(tool)),
		logging.Path(target),
		logging.Count(n),
	)
	result.DeploymentID = dep.ID
	result.FilesCopied = n
	return result, nil
}

// DeleteDeployment removes the on-disk tree and the deployment record
// together. When filesystem removal fails the record is kept, so the
// database never claims files are gone while they still exist.
func (e *Executor) DeleteDeployment(ctx context.Context, deploymentID string) error {
	release, err := e.locks.Acquire(deploymentID)
	if err != nil {
		return err
	}
	defer release()

	dep, err := e.store.GetDeployment(deploymentID)
	if err != nil {
		return err
	}

	if err := fstree.Remove(dep.Path); err != nil {
		e.recordHistory(dep.SkillID, dep.ID, model.ActionDelete, dep.Checksum, "", err)
		return err
	}
	if err := e.store.DeleteDeployment(dep.ID); err != nil {
		return err
	}
	e.recordHistory(dep.SkillID, dep.ID, model.ActionDelete, dep.Checksum, "", nil)

	logging.Info("deployment deleted",
		logging.Deployment(dep.ID),
		logging.Path(dep.Path),
	)
	return nil
}

// RestoreResult reports a restore-from-backup action.
type RestoreResult struct {
	SkillName          string `json:"skill_name"`
	PreRestoreBackupID string `json:"pre_restore_backup_id"`
	DeploymentsSynced  int    `json:"deployments_synced"`
}

// RestoreFromBackup copies a backup's content into the library, after first
// snapshotting the library's current state so restores are themselves
// reversible. With alsoSync, every deployment of the skill is then pushed
// the restored content.
func (e *Executor) RestoreFromBackup(ctx context.Context, backupID string, alsoSync bool) (*RestoreResult, error) {
	b, err := e.store.GetBackup(backupID)
	if err != nil {
		return nil, err
	}
	skill, err := e.store.GetSkill(b.SkillID)
	if err != nil {
		return nil, err
	}

	pre, err := e.backups.Create(ctx, skill, model.ReasonPreRestore)
	if err != nil {
		return nil, fmt.Errorf("failed to back up library before restore: %w", err)
	}

	if _, err := e.backups.Restore(ctx, backupID, skill.LocalPath); err != nil {
		e.recordHistory(skill.ID, "", model.ActionRestore, skill.Checksum, b.Checksum, err)
		return nil, err
	}
	if err := e.store.UpdateSkillChecksum(skill.ID, b.Checksum); err != nil {
		return nil, err
	}
	e.recordHistory(skill.ID, "", model.ActionRestore, skill.Checksum, b.Checksum, nil)

	result := &RestoreResult{SkillName: skill.Name, PreRestoreBackupID: pre.ID}
	if alsoSync {
		deployments, err := e.store.ListDeploymentsForSkill(skill.ID)
		if err != nil {
			return result, err
		}
		for _, dep := range deployments {
			if _, err := e.SyncDeployment(ctx, dep.ID); err != nil {
				logging.Warn("post-restore sync failed for deployment",
					logging.Deployment(dep.ID),
					logging.Err(err),
				)
				continue
			}
			result.DeploymentsSynced++
		}
	}

	logging.Info("library restored from backup",
		logging.Skill(skill.Name),
		slog.String("backup", backupID),
		slog.Int("deployments_synced", result.DeploymentsSynced),
	)
	return result, nil
}

// recordHistory appends a history row; history is best-effort and never
// fails the action it records.
func (e *Executor) recordHistory(skillID, deploymentID string, action model.HistoryAction, fromSum, toSum string, actionErr error) {
	h := &model.SyncHistory{
		SkillID:      skillID,
		DeploymentID: deploymentID,
		Action:       action,
		FromChecksum: fromSum,
		ToChecksum:   toSum,
		Status:       model.HistorySuccess,
	}
	if actionErr != nil {
		h.Status = model.HistoryFailed
		h.ErrorMessage = actionErr.Error()
	}
	if err := e.store.AppendHistory(h); err != nil {
		logging.Error("failed to record sync history",
			logging.Skill(skillID),
			logging.Err(err),
		)
	}
}
