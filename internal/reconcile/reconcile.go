// Package reconcile determines the true state of every tracked deployment:
// whether the library copy and the deployed copy agree, which deployments
// have gone missing, and which on-disk skill folders nobody is tracking.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/congwa/skillmgr/internal/checksum"
	"github.com/congwa/skillmgr/internal/fstree"
	"github.com/congwa/skillmgr/internal/logging"
	"github.com/congwa/skillmgr/internal/model"
	"github.com/congwa/skillmgr/internal/oplock"
	"github.com/congwa/skillmgr/internal/store"
)

// Detail is the reconciler's view of a single deployment after one
// consistent read-then-decide pass.
type Detail struct {
	DeploymentID     string                 `json:"deployment_id"`
	SkillID          string                 `json:"skill_id"`
	SkillName        string                 `json:"skill_name"`
	Tool             model.Tool             `json:"tool"`
	Path             string                 `json:"path"`
	Status           model.DeploymentStatus `json:"status"`
	LibraryChecksum  string                 `json:"library_checksum,omitempty"`
	DeployedChecksum string                 `json:"deployed_checksum,omitempty"`
}

// Untracked describes an on-disk skill folder under a known tool convention
// with no deployment record.
type Untracked struct {
	ProjectID string     `json:"project_id,omitempty"`
	Tool      model.Tool `json:"tool"`
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	Checksum  string     `json:"checksum,omitempty"`
}

// Report aggregates a full reconciliation pass.
type Report struct {
	TotalDeployments int         `json:"total_deployments"`
	Synced           int         `json:"synced"`
	Diverged         int         `json:"diverged"`
	Missing          int         `json:"missing"`
	Details          []Detail    `json:"details"`
	UntrackedSkills  []Untracked `json:"untracked_skills"`
	// Errors holds per-deployment failures that did not abort the pass.
	Errors []error `json:"-"`
}

// Reconciler computes and persists deployment status.
type Reconciler struct {
	store *store.Store
	locks *oplock.Table
	// home anchors the global (user-level) tool directory conventions.
	home string
}

// New creates a Reconciler. The lock table must be shared with the sync
// executor so reconcile and sync never race on the same deployment.
func New(st *store.Store, locks *oplock.Table, home string) *Reconciler {
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return &Reconciler{store: st, locks: locks, home: home}
}

// ReconcileAll runs the full pass: every tracked deployment plus the
// untracked scan. Deployments are processed independently; one failure is
// recorded and the pass continues. The progress callback may be nil.
func (r *Reconciler) ReconcileAll(ctx context.Context, progress func(done, total int)) (*Report, error) {
	defer logging.Timer("reconcile_all")()

	deployments, err := r.store.ListDeployments()
	if err != nil {
		return nil, err
	}

	report := &Report{TotalDeployments: len(deployments)}
	for i, dep := range deployments {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		detail, err := r.ReconcileOne(ctx, dep.ID)
		if err != nil {
			logging.Warn("reconcile failed for deployment",
				logging.Deployment(dep.ID),
				logging.Err(err),
			)
			report.Errors = append(report.Errors, fmt.Errorf("deployment %s: %w", dep.ID, err))
			continue
		}

		switch detail.Status {
		case model.StatusSynced:
			report.Synced++
		case model.StatusDiverged:
			report.Diverged++
		case model.StatusMissing:
			report.Missing++
		}
		report.Details = append(report.Details, *detail)

		if progress != nil {
			progress(i+1, len(deployments))
		}
	}

	untracked, err := r.ScanUntracked(ctx)
	if err != nil {
		return report, err
	}
	report.UntrackedSkills = untracked

	logging.Info("reconciliation completed",
		logging.Operation("reconcile_all"),
		slog.Int("total", report.TotalDeployments),
		slog.Int("synced", report.Synced),
		slog.Int("diverged", report.Diverged),
		slog.Int("missing", report.Missing),
		slog.Int("untracked", len(report.UntrackedSkills)),
	)
	return report, nil
}

// ReconcileOne re-evaluates a single deployment: read the deployed content
// once, compare against the library checksum, persist the status, and emit a
// change event if the status changed. Idempotent when nothing on disk moved.
func (r *Reconciler) ReconcileOne(ctx context.Context, deploymentID string) (*Detail, error) {
	release, err := r.locks.Acquire(deploymentID)
	if err != nil {
		return nil, err
	}
	defer release()

	dep, err := r.store.GetDeployment(deploymentID)
	if err != nil {
		return nil, err
	}
	skill, err := r.store.GetSkill(dep.SkillID)
	if err != nil {
		return nil, err
	}

	detail := &Detail{
		DeploymentID:    dep.ID,
		SkillID:         skill.ID,
		SkillName:       skill.Name,
		Tool:            dep.Tool,
		Path:            dep.Path,
		LibraryChecksum: skill.Checksum,
	}

	// Single read-then-decide pass: the deployed tree is read exactly once
	// and every decision below works from that snapshot.
	if !fstree.Exists(dep.Path) {
		detail.Status = model.StatusMissing
		return detail, r.persist(dep, detail, dep.Checksum, "")
	}

	tree, err := fstree.Read(ctx, dep.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment %s: %w", dep.ID, err)
	}
	detail.DeployedChecksum = checksum.Compute(tree)

	if detail.DeployedChecksum == skill.Checksum {
		detail.Status = model.StatusSynced
	} else {
		detail.Status = model.StatusDiverged
	}

	return detail, r.persist(dep, detail, skill.Checksum, detail.DeployedChecksum)
}

// persist stores the new status and emits a change event when the status
// actually transitioned.
func (r *Reconciler) persist(dep *model.Deployment, detail *Detail, oldSum, newSum string) error {
	// A missing deployment keeps its last recorded checksum so the deletion
	// event and any later restore still know what was deployed.
	stored := detail.DeployedChecksum
	if detail.Status == model.StatusMissing {
		stored = dep.Checksum
	}
	if err := r.store.UpdateDeploymentStatus(dep.ID, detail.Status, stored); err != nil {
		return err
	}

	if dep.Status == detail.Status {
		return nil
	}

	logging.Debug("deployment status changed",
		logging.Deployment(dep.ID),
		slog.String("from", string(dep.Status)),
		slog.String("to", string(detail.Status)),
	)

	var eventType model.EventType
	switch detail.Status {
	case model.StatusMissing:
		eventType = model.EventDeleted
	case model.StatusDiverged:
		eventType = model.EventChecksumMismatch
	default:
		// Transitions into synced or pending are not divergences.
		return nil
	}

	return r.store.CreateChangeEvent(&model.ChangeEvent{
		DeploymentID: dep.ID,
		Type:         eventType,
		OldChecksum:  oldSum,
		NewChecksum:  newSum,
	})
}

// ScanUntracked walks every known tool convention, globally and per
// registered project, looking for skill folders with no deployment record.
// Findings are reported and logged as untracked events but never persisted
// as deployments until explicitly imported.
func (r *Reconciler) ScanUntracked(ctx context.Context) ([]Untracked, error) {
	deployments, err := r.store.ListDeployments()
	if err != nil {
		return nil, err
	}
	tracked := make(map[string]struct{}, len(deployments))
	for _, dep := range deployments {
		tracked[filepath.Clean(dep.Path)] = struct{}{}
	}

	projects, err := r.store.ListProjects()
	if err != nil {
		return nil, err
	}

	var found []Untracked
	for _, tool := range model.AllTools() {
		globalBase := filepath.Join(r.home, tool.GlobalRelativeDir())
		found = append(found, r.scanToolDir(ctx, "", tool, globalBase, tracked)...)

		for _, project := range projects {
			base := filepath.Join(project.Path, tool.ProjectRelativeDir())
			found = append(found, r.scanToolDir(ctx, project.ID, tool, base, tracked)...)
		}
	}

	for _, u := range found {
		if err := r.store.CreateChangeEvent(&model.ChangeEvent{
			DeploymentID: fmt.Sprintf("%s:%s:%s", u.ProjectID, u.Tool, u.Name),
			Type:         model.EventUntrackedSkill,
			NewChecksum:  u.Checksum,
		}); err != nil {
			return found, err
		}
	}

	return found, nil
}

// scanToolDir lists the immediate subdirectories of one tool skills
// directory and reports those not covered by a deployment record.
func (r *Reconciler) scanToolDir(ctx context.Context, projectID string, tool model.Tool, base string, tracked map[string]struct{}) []Untracked {
	entries, err := os.ReadDir(base)
	if err != nil {
		// Tool directory not present; nothing to scan.
		return nil
	}

	var found []Untracked
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(base, entry.Name())
		if _, ok := tracked[filepath.Clean(path)]; ok {
			continue
		}

		sum, err := checksum.Dir(ctx, path)
		if err != nil {
			logging.Warn("failed to checksum untracked skill",
				logging.Path(path),
				logging.Err(err),
			)
			continue
		}

		logging.Debug("untracked skill found",
			logging.Tool(string(tool)),
			logging.Path(path),
		)
		found = append(found, Untracked{
			ProjectID: projectID,
			Tool:      tool,
			Name:      entry.Name(),
			Path:      path,
			Checksum:  sum,
		})
	}
	return found
}
