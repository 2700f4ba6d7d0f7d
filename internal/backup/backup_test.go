package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/congwa/skillmgr/internal/fstree"
	"github.com/congwa/skillmgr/internal/model"
	"github.com/congwa/skillmgr/internal/store"
)

func testEnv(t *testing.T) (*Manager, *store.Store, *model.Skill) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	libDir := filepath.Join(t.TempDir(), "library", "note-taking")
	if _, err := fstree.Write(libDir, fstree.Tree{
		"SKILL.md":   []byte("# Note Taking\n"),
		"ref/tip.md": []byte("tips"),
	}); err != nil {
		t.Fatal(err)
	}

	skill := &model.Skill{Name: "note-taking", LocalPath: libDir}
	if err := st.CreateSkill(skill); err != nil {
		t.Fatal(err)
	}

	return NewManager(t.TempDir(), st), st, skill
}

func TestCreateAndRead(t *testing.T) {
	m, _, skill := testEnv(t)
	ctx := context.Background()

	b, err := m.Create(ctx, skill, model.ReasonPreUpdate)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if b.ID == "" || b.Checksum == "" {
		t.Errorf("incomplete backup record: %+v", b)
	}
	if b.Reason != model.ReasonPreUpdate {
		t.Errorf("Reason = %s", b.Reason)
	}
	if !strings.HasSuffix(filepath.Dir(b.BackupPath), skill.Name) {
		t.Errorf("snapshot should live under a per-skill directory: %s", b.BackupPath)
	}

	got, tree, err := m.Read(ctx, b.ID)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.ID != b.ID {
		t.Errorf("Read returned wrong record: %s", got.ID)
	}
	if string(tree["SKILL.md"]) != "# Note Taking\n" {
		t.Errorf("snapshot content mismatch: %q", tree["SKILL.md"])
	}
}

func TestRapidCreatesKeepDistinctSnapshots(t *testing.T) {
	m, _, skill := testEnv(t)
	ctx := context.Background()

	first, err := m.Create(ctx, skill, model.ReasonPreUpdate)
	if err != nil {
		t.Fatal(err)
	}

	// A second snapshot within the same wall-clock second must not land in
	// the first one's directory.
	if err := os.WriteFile(filepath.Join(skill.LocalPath, "SKILL.md"), []byte("edited"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := m.Create(ctx, skill, model.ReasonPreRestore)
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}

	if first.BackupPath == second.BackupPath {
		t.Fatalf("snapshots share a directory: %s", first.BackupPath)
	}
	if err := m.Verify(ctx, first.ID); err != nil {
		t.Errorf("first snapshot no longer intact: %v", err)
	}
	if err := m.Verify(ctx, second.ID); err != nil {
		t.Errorf("second snapshot not intact: %v", err)
	}

	_, tree, err := m.Read(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(tree["SKILL.md"]) != "# Note Taking\n" {
		t.Errorf("first snapshot content overwritten: %q", tree["SKILL.md"])
	}
}

func TestReadDetectsCorruption(t *testing.T) {
	m, _, skill := testEnv(t)
	ctx := context.Background()

	b, err := m.Create(ctx, skill, model.ReasonManual)
	if err != nil {
		t.Fatal(err)
	}

	// Tamper with the snapshot.
	if err := os.WriteFile(filepath.Join(b.BackupPath, "SKILL.md"), []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := m.Read(ctx, b.ID); err == nil {
		t.Error("expected checksum mismatch error for tampered backup")
	}
	if err := m.Verify(ctx, b.ID); err == nil {
		t.Error("Verify should fail for tampered backup")
	}
}

func TestRestoreReplacesTarget(t *testing.T) {
	m, _, skill := testEnv(t)
	ctx := context.Background()

	b, err := m.Create(ctx, skill, model.ReasonPreRestore)
	if err != nil {
		t.Fatal(err)
	}

	// Mutate the library after the snapshot.
	if _, err := fstree.Replace(skill.LocalPath, fstree.Tree{
		"SKILL.md": []byte("mutated"),
		"junk.md":  []byte("should disappear"),
	}); err != nil {
		t.Fatal(err)
	}

	n, err := m.Restore(ctx, b.ID, skill.LocalPath)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 files restored, got %d", n)
	}

	got, err := fstree.Read(ctx, skill.LocalPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got["SKILL.md"]) != "# Note Taking\n" {
		t.Errorf("restore did not revert content: %q", got["SKILL.md"])
	}
	if _, ok := got["junk.md"]; ok {
		t.Error("restore left post-snapshot files behind")
	}
}

func TestCreateMissingLibrary(t *testing.T) {
	m, _, skill := testEnv(t)
	skill.LocalPath = filepath.Join(t.TempDir(), "absent")

	if _, err := m.Create(context.Background(), skill, model.ReasonManual); err == nil {
		t.Error("expected error for missing library path")
	}
}
