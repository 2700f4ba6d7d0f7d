package store

import (
	"errors"
	"testing"

	"github.com/congwa/skillmgr/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func createTestSkill(t *testing.T, st *Store, name string) *model.Skill {
	t.Helper()
	skill := &model.Skill{
		Name:      name,
		Checksum:  "sum-" + name,
		LocalPath: "/library/" + name,
	}
	if err := st.CreateSkill(skill); err != nil {
		t.Fatalf("failed to create skill: %v", err)
	}
	return skill
}

func TestSkillLifecycle(t *testing.T) {
	st := openTestStore(t)

	skill := createTestSkill(t, st, "code-review")
	if skill.ID == "" {
		t.Fatal("CreateSkill should assign an ID")
	}
	if skill.CreatedAt.IsZero() {
		t.Error("CreateSkill should set CreatedAt")
	}

	got, err := st.GetSkill(skill.ID)
	if err != nil {
		t.Fatalf("GetSkill failed: %v", err)
	}
	if got.Name != "code-review" || got.Checksum != "sum-code-review" {
		t.Errorf("unexpected skill: %+v", got)
	}

	byName, err := st.GetSkillByName("code-review")
	if err != nil {
		t.Fatalf("GetSkillByName failed: %v", err)
	}
	if byName.ID != skill.ID {
		t.Errorf("name lookup returned wrong skill: %s", byName.ID)
	}

	if err := st.UpdateSkillChecksum(skill.ID, "new-sum"); err != nil {
		t.Fatalf("UpdateSkillChecksum failed: %v", err)
	}
	got, _ = st.GetSkill(skill.ID)
	if got.Checksum != "new-sum" {
		t.Errorf("checksum not updated: %s", got.Checksum)
	}
	if !got.LastModifiedAt.After(skill.LastModifiedAt) && !got.LastModifiedAt.Equal(skill.LastModifiedAt) {
		t.Error("LastModifiedAt should not go backwards")
	}

	if err := st.DeleteSkill(skill.ID); err != nil {
		t.Fatalf("DeleteSkill failed: %v", err)
	}
	if _, err := st.GetSkill(skill.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestGetSkillNotFound(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.GetSkill("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.GetSkillByName("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertDeploymentIsIdempotentPerTarget(t *testing.T) {
	st := openTestStore(t)
	skill := createTestSkill(t, st, "helper")

	first := &model.Deployment{
		SkillID:  skill.ID,
		Tool:     model.ToolCursor,
		Path:     "/home/u/.cursor/skills/helper",
		Checksum: "sum-1",
		Status:   model.StatusSynced,
	}
	if err := st.UpsertDeployment(first); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("UpsertDeployment should assign an ID")
	}

	// Same (skill, project, tool) target updates in place.
	second := &model.Deployment{
		SkillID:  skill.ID,
		Tool:     model.ToolCursor,
		Path:     "/home/u/.cursor/skills/helper",
		Checksum: "sum-2",
		Status:   model.StatusDiverged,
	}
	if err := st.UpsertDeployment(second); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert created a new row: %s != %s", second.ID, first.ID)
	}

	all, err := st.ListDeploymentsForSkill(skill.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 deployment, got %d", len(all))
	}
	if all[0].Checksum != "sum-2" || all[0].Status != model.StatusDiverged {
		t.Errorf("upsert did not update fields: %+v", all[0])
	}

	// Same tool in a project scope is a distinct target.
	project := &model.Deployment{
		SkillID:   skill.ID,
		ProjectID: "proj-1",
		Tool:      model.ToolCursor,
		Path:      "/work/app/.cursor/skills/helper",
		Checksum:  "sum-3",
		Status:    model.StatusSynced,
	}
	if err := st.UpsertDeployment(project); err != nil {
		t.Fatalf("project upsert failed: %v", err)
	}
	all, _ = st.ListDeploymentsForSkill(skill.ID)
	if len(all) != 2 {
		t.Errorf("expected 2 deployments across scopes, got %d", len(all))
	}
}

func TestDeploymentStatusTransitions(t *testing.T) {
	st := openTestStore(t)
	skill := createTestSkill(t, st, "xform")
	dep := &model.Deployment{
		SkillID:  skill.ID,
		Tool:     model.ToolWindsurf,
		Path:     "/p",
		Checksum: "s1",
		Status:   model.StatusSynced,
	}
	if err := st.UpsertDeployment(dep); err != nil {
		t.Fatal(err)
	}

	if err := st.UpdateDeploymentStatus(dep.ID, model.StatusDiverged, "s2"); err != nil {
		t.Fatalf("UpdateDeploymentStatus failed: %v", err)
	}
	got, _ := st.GetDeployment(dep.ID)
	if got.Status != model.StatusDiverged || got.Checksum != "s2" {
		t.Errorf("unexpected state: %+v", got)
	}

	if err := st.MarkDeploymentSynced(dep.ID, "s3"); err != nil {
		t.Fatalf("MarkDeploymentSynced failed: %v", err)
	}
	got, _ = st.GetDeployment(dep.ID)
	if got.Status != model.StatusSynced || got.Checksum != "s3" {
		t.Errorf("unexpected state after sync: %+v", got)
	}
	if got.LastSyncedAt.IsZero() {
		t.Error("MarkDeploymentSynced should set LastSyncedAt")
	}

	if err := st.UpdateDeploymentStatus("missing-id", model.StatusSynced, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown deployment, got %v", err)
	}
}

func TestDeleteSkillCascadesDeployments(t *testing.T) {
	st := openTestStore(t)
	skill := createTestSkill(t, st, "cascade")
	dep := &model.Deployment{SkillID: skill.ID, Tool: model.ToolTrae, Path: "/p", Status: model.StatusSynced}
	if err := st.UpsertDeployment(dep); err != nil {
		t.Fatal(err)
	}

	if err := st.DeleteSkill(skill.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := st.GetDeployment(dep.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deployment should cascade with its skill, got %v", err)
	}
}

func TestWatcherPendingCoalescing(t *testing.T) {
	st := openTestStore(t)
	skill := createTestSkill(t, st, "watched")

	if err := st.SetWatcherPending(skill.ID, "backup-original", "dep-1"); err != nil {
		t.Fatalf("SetWatcherPending failed: %v", err)
	}
	got, _ := st.GetSkill(skill.ID)
	if !got.HasPendingWatcherChange() {
		t.Fatal("expected pending watcher change")
	}
	if got.WatcherBackupID != "backup-original" {
		t.Errorf("WatcherBackupID = %s", got.WatcherBackupID)
	}

	// A second event while pending must keep the original recovery point.
	if err := st.SetWatcherPending(skill.ID, "backup-later", "dep-1"); err != nil {
		t.Fatal(err)
	}
	got, _ = st.GetSkill(skill.ID)
	if got.WatcherBackupID != "backup-original" {
		t.Errorf("coalescing overwrote the recovery backup: %s", got.WatcherBackupID)
	}

	if err := st.ClearWatcherPending(skill.ID); err != nil {
		t.Fatalf("ClearWatcherPending failed: %v", err)
	}
	got, _ = st.GetSkill(skill.ID)
	if got.HasPendingWatcherChange() {
		t.Error("pending change should be cleared")
	}
	if got.WatcherBackupID != "" || got.WatcherTriggerDepID != "" {
		t.Errorf("watcher fields not cleared: %+v", got)
	}

	// After clearing, a new event records its own backup.
	if err := st.SetWatcherPending(skill.ID, "backup-new", "dep-2"); err != nil {
		t.Fatal(err)
	}
	got, _ = st.GetSkill(skill.ID)
	if got.WatcherBackupID != "backup-new" {
		t.Errorf("fresh pending change should record its backup: %s", got.WatcherBackupID)
	}
}

func TestChangeEvents(t *testing.T) {
	st := openTestStore(t)

	event := &model.ChangeEvent{
		DeploymentID: "dep-1",
		Type:         model.EventModified,
		OldChecksum:  "old",
		NewChecksum:  "new",
	}
	if err := st.CreateChangeEvent(event); err != nil {
		t.Fatalf("CreateChangeEvent failed: %v", err)
	}
	if event.ID == "" {
		t.Fatal("event should get an ID")
	}

	pending, err := st.ListChangeEvents(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Resolution != model.ResolutionPending {
		t.Fatalf("unexpected pending events: %+v", pending)
	}

	if err := st.ResolveChangeEvent(event.ID, model.ResolutionResolved); err != nil {
		t.Fatalf("ResolveChangeEvent failed: %v", err)
	}
	pending, _ = st.ListChangeEvents(true)
	if len(pending) != 0 {
		t.Errorf("resolved event still listed as pending")
	}
	all, _ := st.ListChangeEvents(false)
	if len(all) != 1 {
		t.Errorf("resolved event should survive, got %d", len(all))
	}
	if all[0].ResolvedAt == nil {
		t.Error("ResolvedAt should be set")
	}
}

func TestHistoryOrdering(t *testing.T) {
	st := openTestStore(t)

	actions := []model.HistoryAction{model.ActionDeploy, model.ActionUpdate, model.ActionDelete}
	for _, a := range actions {
		if err := st.AppendHistory(&model.SyncHistory{
			SkillID: "s", Action: a, Status: model.HistorySuccess,
		}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := st.ListHistory(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("limit not honored: got %d entries", len(entries))
	}
}

func TestBackupsSurviveSkillDeletion(t *testing.T) {
	st := openTestStore(t)
	skill := createTestSkill(t, st, "doomed")

	b := &model.Backup{
		SkillID:      skill.ID,
		VersionLabel: "v1",
		BackupPath:   "/backups/doomed/x",
		Checksum:     "sum",
		Reason:       model.ReasonPreUpdate,
	}
	if err := st.CreateBackup(b); err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	if err := st.DeleteSkill(skill.ID); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetBackup(b.ID)
	if err != nil {
		t.Fatalf("backup should survive skill deletion: %v", err)
	}
	if got.Checksum != "sum" {
		t.Errorf("unexpected backup: %+v", got)
	}

	filtered, err := st.ListBackups(skill.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 {
		t.Errorf("expected 1 backup for skill, got %d", len(filtered))
	}
}

func TestProjectsAndSources(t *testing.T) {
	st := openTestStore(t)

	p := &model.Project{Name: "webapp", Path: "/work/webapp"}
	if err := st.CreateProject(p); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	got, err := st.GetProject(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastScannedAt != nil {
		t.Error("new project should have no scan timestamp")
	}

	if err := st.TouchProjectScanned(p.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = st.GetProject(p.ID)
	if got.LastScannedAt == nil {
		t.Error("TouchProjectScanned should set the timestamp")
	}

	skill := createTestSkill(t, st, "installed")
	src := &model.SkillSource{
		SkillID:          skill.ID,
		SourceType:       model.SourceRegistry,
		URL:              "https://skills.sh/installed",
		InstalledVersion: "1.0.0",
		OriginalChecksum: "orig",
	}
	if err := st.UpsertSource(src); err != nil {
		t.Fatalf("UpsertSource failed: %v", err)
	}

	// Re-install updates the single source row.
	src2 := &model.SkillSource{
		SkillID:          skill.ID,
		SourceType:       model.SourceRegistry,
		URL:              "https://skills.sh/installed",
		InstalledVersion: "2.0.0",
		OriginalChecksum: "orig-2",
	}
	if err := st.UpsertSource(src2); err != nil {
		t.Fatal(err)
	}
	gotSrc, err := st.GetSourceForSkill(skill.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotSrc.InstalledVersion != "2.0.0" || gotSrc.OriginalChecksum != "orig-2" {
		t.Errorf("source not updated: %+v", gotSrc)
	}
}
