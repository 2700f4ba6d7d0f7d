package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/congwa/skillmgr/internal/fstree"
	"github.com/congwa/skillmgr/internal/logging"
	"github.com/congwa/skillmgr/internal/model"
	"github.com/congwa/skillmgr/internal/store"
)

// Importer copies scanned skills into the library and records them.
type Importer struct {
	store       *store.Store
	libraryRoot string
}

// NewImporter creates an Importer writing under libraryRoot.
func NewImporter(st *store.Store, libraryRoot string) *Importer {
	return &Importer{store: st, libraryRoot: libraryRoot}
}

// ImportResult reports one imported skill.
type ImportResult struct {
	SkillID      string `json:"skill_id"`
	SkillName    string `json:"skill_name"`
	DeploymentID string `json:"deployment_id"`
	LibraryPath  string `json:"library_path"`
}

// Import brings a scanned skill under management: its content is copied
// into the library and a skill row plus a synced deployment row are
// created. A skill with the same name already in the library is an error;
// use the sync actions to reconcile instead.
func (i *Importer) Import(ctx context.Context, found Found, projectID string) (*ImportResult, error) {
	if _, err := i.store.GetSkillByName(found.Meta.Name); err == nil {
		return nil, fmt.Errorf("skill %q already exists in library", found.Meta.Name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	tree, err := fstree.Read(ctx, found.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read skill at %q: %w", found.Path, err)
	}

	libPath := filepath.Join(i.libraryRoot, found.Meta.Name)
	if fstree.Exists(libPath) {
		return nil, fmt.Errorf("library path %q already occupied", libPath)
	}
	if _, err := fstree.Replace(libPath, tree); err != nil {
		return nil, err
	}

	skill := &model.Skill{
		Name:        found.Meta.Name,
		Description: found.Meta.Description,
		Version:     found.Meta.Version,
		Source:      model.SourceLocal,
		Checksum:    found.Checksum,
		LocalPath:   libPath,
	}
	if err := i.store.CreateSkill(skill); err != nil {
		// Leave no orphan directory behind.
		_ = fstree.Remove(libPath)
		return nil, err
	}

	dep := &model.Deployment{
		SkillID:   skill.ID,
		ProjectID: projectID,
		Tool:      found.Tool,
		Path:      found.Path,
		Checksum:  found.Checksum,
		Status:    model.StatusSynced,
	}
	if err := i.store.UpsertDeployment(dep); err != nil {
		return nil, err
	}

	i.recordImport(skill, dep)

	logging.Info("skill imported",
		logging.Skill(skill.Name),
		logging.Tool(string(found.Tool)),
		logging.Path(found.Path),
	)
	return &ImportResult{
		SkillID:      skill.ID,
		SkillName:    skill.Name,
		DeploymentID: dep.ID,
		LibraryPath:  libPath,
	}, nil
}

func (i *Importer) recordImport(skill *model.Skill, dep *model.Deployment) {
	h := &model.SyncHistory{
		SkillID:      skill.ID,
		DeploymentID: dep.ID,
		Action:       model.ActionImport,
		ToChecksum:   skill.Checksum,
		Status:       model.HistorySuccess,
	}
	if err := i.store.AppendHistory(h); err != nil {
		logging.Error("failed to record import history",
			logging.Skill(skill.Name),
			logging.Err(err),
		)
	}
}
