package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/congwa/skillmgr/internal/checksum"
	"github.com/congwa/skillmgr/internal/fstree"
	"github.com/congwa/skillmgr/internal/model"
	"github.com/congwa/skillmgr/internal/oplock"
	"github.com/congwa/skillmgr/internal/store"
)

type fixture struct {
	store      *store.Store
	reconciler *Reconciler
	locks      *oplock.Table
	home       string
	skill      *model.Skill
	dep        *model.Deployment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	home := t.TempDir()
	content := fstree.Tree{"SKILL.md": []byte("# Review\n")}

	libDir := filepath.Join(t.TempDir(), "library", "review")
	if _, err := fstree.Write(libDir, content); err != nil {
		t.Fatal(err)
	}
	sum := checksum.Compute(content)

	skill := &model.Skill{Name: "review", Checksum: sum, LocalPath: libDir}
	if err := st.CreateSkill(skill); err != nil {
		t.Fatal(err)
	}

	depPath := filepath.Join(home, ".cursor", "skills", "review")
	if _, err := fstree.Write(depPath, content); err != nil {
		t.Fatal(err)
	}
	dep := &model.Deployment{
		SkillID:  skill.ID,
		Tool:     model.ToolCursor,
		Path:     depPath,
		Checksum: sum,
		Status:   model.StatusSynced,
	}
	if err := st.UpsertDeployment(dep); err != nil {
		t.Fatal(err)
	}

	locks := oplock.NewTable()
	return &fixture{
		store:      st,
		reconciler: New(st, locks, home),
		locks:      locks,
		home:       home,
		skill:      skill,
		dep:        dep,
	}
}

func TestReconcileOneSynced(t *testing.T) {
	f := newFixture(t)

	detail, err := f.reconciler.ReconcileOne(context.Background(), f.dep.ID)
	if err != nil {
		t.Fatalf("ReconcileOne failed: %v", err)
	}
	if detail.Status != model.StatusSynced {
		t.Errorf("Status = %s, want synced", detail.Status)
	}
	if detail.DeployedChecksum != detail.LibraryChecksum {
		t.Errorf("checksums should match: %s vs %s", detail.DeployedChecksum, detail.LibraryChecksum)
	}
}

func TestReconcileOneDiverged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(f.dep.Path, "SKILL.md"), []byte("edited"), 0o644); err != nil {
		t.Fatal(err)
	}

	detail, err := f.reconciler.ReconcileOne(ctx, f.dep.ID)
	if err != nil {
		t.Fatalf("ReconcileOne failed: %v", err)
	}
	if detail.Status != model.StatusDiverged {
		t.Fatalf("Status = %s, want diverged", detail.Status)
	}

	// The transition emits exactly one checksum_mismatch event.
	events, err := f.store.ListChangeEvents(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Type != model.EventChecksumMismatch {
		t.Fatalf("unexpected events: %+v", events)
	}

	// Reconciling again with no further change must not duplicate events.
	if _, err := f.reconciler.ReconcileOne(ctx, f.dep.ID); err != nil {
		t.Fatal(err)
	}
	events, _ = f.store.ListChangeEvents(true)
	if len(events) != 1 {
		t.Errorf("idempotence violated: %d events after second pass", len(events))
	}
}

func TestReconcileOneMissingKeepsChecksum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := os.RemoveAll(f.dep.Path); err != nil {
		t.Fatal(err)
	}

	detail, err := f.reconciler.ReconcileOne(ctx, f.dep.ID)
	if err != nil {
		t.Fatalf("ReconcileOne failed: %v", err)
	}
	if detail.Status != model.StatusMissing {
		t.Fatalf("Status = %s, want missing", detail.Status)
	}

	// The record keeps the last known checksum so restores stay possible.
	got, err := f.store.GetDeployment(f.dep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Checksum != f.dep.Checksum {
		t.Errorf("missing deployment lost its recorded checksum: %q", got.Checksum)
	}

	events, _ := f.store.ListChangeEvents(true)
	if len(events) != 1 || events[0].Type != model.EventDeleted {
		t.Errorf("expected one deleted event, got %+v", events)
	}
}

func TestReconcileOneRejectsConcurrent(t *testing.T) {
	f := newFixture(t)

	release, err := f.locks.Acquire(f.dep.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	if _, err := f.reconciler.ReconcileOne(context.Background(), f.dep.ID); !errors.Is(err, oplock.ErrBusy) {
		t.Errorf("expected ErrBusy while locked, got %v", err)
	}
}

func TestReconcileAllIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A deployment with an operation already in flight must not sink the
	// run; it is reported and skipped.
	other := &model.Skill{Name: "busy", Checksum: "x", LocalPath: f.skill.LocalPath}
	if err := f.store.CreateSkill(other); err != nil {
		t.Fatal(err)
	}
	busyDep := &model.Deployment{
		SkillID: other.ID,
		Tool:    model.ToolTrae,
		Path:    filepath.Join(f.home, ".trae", "skills", "busy"),
		Status:  model.StatusSynced,
	}
	if _, err := fstree.Write(busyDep.Path, fstree.Tree{"SKILL.md": []byte("x")}); err != nil {
		t.Fatal(err)
	}
	if err := f.store.UpsertDeployment(busyDep); err != nil {
		t.Fatal(err)
	}
	release, err := f.locks.Acquire(busyDep.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	report, err := f.reconciler.ReconcileAll(ctx, nil)
	if err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}
	if report.TotalDeployments != 2 {
		t.Errorf("TotalDeployments = %d, want 2", report.TotalDeployments)
	}
	if report.Synced != 1 {
		t.Errorf("Synced = %d, want 1", report.Synced)
	}
	if len(report.Errors) != 1 {
		t.Errorf("expected 1 per-item error, got %v", report.Errors)
	}
}

func TestScanUntracked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Drop an unmanaged skill into a tool directory.
	strayPath := filepath.Join(f.home, ".windsurf", "skills", "stray")
	if _, err := fstree.Write(strayPath, fstree.Tree{"SKILL.md": []byte("stray")}); err != nil {
		t.Fatal(err)
	}

	untracked, err := f.reconciler.ScanUntracked(ctx)
	if err != nil {
		t.Fatalf("ScanUntracked failed: %v", err)
	}
	if len(untracked) != 1 {
		t.Fatalf("expected 1 untracked skill, got %d: %+v", len(untracked), untracked)
	}
	u := untracked[0]
	if u.Name != "stray" || u.Tool != model.ToolWindsurf {
		t.Errorf("unexpected untracked entry: %+v", u)
	}
	if u.Checksum == "" {
		t.Error("untracked entry should carry a checksum")
	}

	// The tracked cursor deployment must not be reported.
	for _, u := range untracked {
		if u.Path == f.dep.Path {
			t.Error("tracked deployment reported as untracked")
		}
	}
}

func TestReconcileAllProgress(t *testing.T) {
	f := newFixture(t)

	var calls int
	_, err := f.reconciler.ReconcileAll(context.Background(), func(done, total int) {
		calls++
		if total != 1 {
			t.Errorf("total = %d, want 1", total)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls == 0 {
		t.Error("progress callback never invoked")
	}
}
