package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/congwa/skillmgr/internal/checksum"
	"github.com/congwa/skillmgr/internal/fstree"
	"github.com/congwa/skillmgr/internal/logging"
	"github.com/congwa/skillmgr/internal/model"
	"github.com/congwa/skillmgr/internal/store"
)

// ErrNoBackup means a watcher change cannot be discarded because no recovery
// backup was recorded for it.
var ErrNoBackup = errors.New("no watcher backup recorded for this change")

// ErrNoPendingChange means a watcher resolution was requested for a skill
// with no pending change to resolve.
var ErrNoPendingChange = errors.New("skill has no pending watcher change")

// AbsorbResult reports a watcher edit absorbed into the library.
type AbsorbResult struct {
	SkillName string `json:"skill_name"`
	BackupID  string `json:"backup_id"`
	Coalesced bool   `json:"coalesced"`
	NoChange  bool   `json:"no_change"`
}

// AbsorbWatcherChange ingests an external edit detected at a deployment
// path: back up the library, copy the deployment content over it, and mark
// the skill's watcher-pending state so other deployments can be resolved
// later. A second edit to the same skill while one is already pending
// coalesces into it and keeps the original backup as the recovery point.
// An edit that leaves the deployment identical to the library is a no-op.
func (e *Executor) AbsorbWatcherChange(ctx context.Context, deploymentID string) (*AbsorbResult, error) {
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

	depSum, err := checksum.Dir(ctx, dep.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum deployment %s: %w", dep.ID, err)
	}
	if depSum == skill.Checksum {
		// Editor save with no content change, or the watcher fired for a
		// write we made ourselves.
		if err := e.store.MarkDeploymentSynced(dep.ID, depSum); err != nil {
			return nil, err
		}
		return &AbsorbResult{SkillName: skill.Name, NoChange: true}, nil
	}

	coalesced := skill.HasPendingWatcherChange()
	backupID := skill.WatcherBackupID
	if !coalesced {
		b, err := e.backups.Create(ctx, skill, model.ReasonPreUpdate)
		if err != nil {
			return nil, fmt.Errorf("failed to back up library before absorbing change: %w", err)
		}
		backupID = b.ID
	}

	depTree, err := fstree.Read(ctx, dep.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment %s: %w", dep.ID, err)
	}
	if _, err := fstree.Replace(skill.LocalPath, depTree); err != nil {
		return nil, err
	}
	if err := e.store.UpdateSkillChecksum(skill.ID, depSum); err != nil {
		return nil, err
	}
	if err := e.store.MarkDeploymentSynced(dep.ID, depSum); err != nil {
		return nil, err
	}
	if err := e.store.SetWatcherPending(skill.ID, backupID, dep.ID); err != nil {
		return nil, err
	}

	if err := e.store.CreateChangeEvent(&model.ChangeEvent{
		DeploymentID: dep.ID,
		Type:         model.EventModified,
		OldChecksum:  skill.Checksum,
		NewChecksum:  depSum,
	}); err != nil {
		logging.Error("failed to record change event", logging.Skill(skill.Name), logging.Err(err))
	}

	logging.Info("watcher change absorbed into library",
		logging.Skill(skill.Name),
		logging.Deployment(dep.ID),
		logging.Checksum(depSum),
	)
	return &AbsorbResult{SkillName: skill.Name, BackupID: backupID, Coalesced: coalesced}, nil
}

// FullSyncWatcherChange resolves a pending watcher change by pushing the
// absorbed library content to every other deployment of the skill. Returns
// the number of deployments synced.
func (e *Executor) FullSyncWatcherChange(ctx context.Context, skillID string) (int, error) {
	skill, err := e.store.GetSkill(skillID)
	if err != nil {
		return 0, err
	}
	if !skill.HasPendingWatcherChange() {
		return 0, ErrNoPendingChange
	}

	deployments, err := e.store.ListDeploymentsForSkill(skill.ID)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, dep := range deployments {
		if dep.ID == skill.WatcherTriggerDepID {
			continue
		}
		if _, err := e.SyncDeployment(ctx, dep.ID); err != nil {
			logging.Warn("watcher full-sync failed for deployment",
				logging.Deployment(dep.ID),
				logging.Err(err),
			)
			continue
		}
		synced++
	}

	if err := e.store.ClearWatcherPending(skill.ID); err != nil {
		return synced, err
	}
	return synced, nil
}

// DBOnlyWatcherChange resolves a pending watcher change without touching
// other deployments: the library already holds the absorbed content, so
// only the pending markers are cleared. Other deployments will show as
// diverged on the next reconcile.
func (e *Executor) DBOnlyWatcherChange(skillID string) error {
	skill, err := e.store.GetSkill(skillID)
	if err != nil {
		return err
	}
	if !skill.HasPendingWatcherChange() {
		return ErrNoPendingChange
	}
	return e.store.ClearWatcherPending(skill.ID)
}

// DiscardWatcherChange rejects a pending watcher change: the library is
// restored from the backup taken when the change was absorbed, and the
// restored content is pushed back to the deployment that triggered it.
// Deployments other than the trigger are left alone.
func (e *Executor) DiscardWatcherChange(ctx context.Context, skillID string) error {
	skill, err := e.store.GetSkill(skillID)
	if err != nil {
		return err
	}
	if !skill.HasPendingWatcherChange() {
		return ErrNoPendingChange
	}
	if skill.WatcherBackupID == "" {
		return ErrNoBackup
	}

	b, err := e.store.GetBackup(skill.WatcherBackupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoBackup
		}
		return err
	}

	if _, err := e.backups.Create(ctx, skill, model.ReasonPreRestore); err != nil {
		return fmt.Errorf("failed to back up library before discard: %w", err)
	}
	if _, err := e.backups.Restore(ctx, b.ID, skill.LocalPath); err != nil {
		return err
	}
	if err := e.store.UpdateSkillChecksum(skill.ID, b.Checksum); err != nil {
		return err
	}

	triggerID := skill.WatcherTriggerDepID
	if err := e.store.ClearWatcherPending(skill.ID); err != nil {
		return err
	}

	if triggerID != "" {
		if _, err := e.SyncDeployment(ctx, triggerID); err != nil {
			logging.Warn("failed to push discarded content back to trigger deployment",
				logging.Deployment(triggerID),
				logging.Err(err),
			)
		}
	}

	logging.Info("watcher change discarded",
		logging.Skill(skill.Name),
		logging.Checksum(b.Checksum),
	)
	return nil
}
