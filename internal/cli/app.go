package cli

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/congwa/skillmgr/internal/backup"
	"github.com/congwa/skillmgr/internal/config"
	"github.com/congwa/skillmgr/internal/oplock"
	"github.com/congwa/skillmgr/internal/reconcile"
	"github.com/congwa/skillmgr/internal/remote"
	"github.com/congwa/skillmgr/internal/scan"
	"github.com/congwa/skillmgr/internal/store"
	syncpkg "github.com/congwa/skillmgr/internal/sync"
)

// env bundles the wired-up application services for a single command
// invocation. One lock table is shared by the reconciler and executor so a
// deployment cannot be reconciled and synced at once.
type env struct {
	cfg        *config.Config
	store      *store.Store
	locks      *oplock.Table
	backups    *backup.Manager
	executor   *syncpkg.Executor
	reconciler *reconcile.Reconciler
	importer   *scan.Importer
}

// openEnv loads configuration and opens the store. Callers must Close.
func openEnv(cmd *cli.Command) (*env, error) {
	var cfg *config.Config
	var err error
	if path := cmd.String("config"); path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	home, _ := os.UserHomeDir()
	locks := oplock.NewTable()
	backups := backup.NewManager(cfg.BackupDir, st)

	return &env{
		cfg:        cfg,
		store:      st,
		locks:      locks,
		backups:    backups,
		executor:   syncpkg.NewExecutor(st, backups, locks, home),
		reconciler: reconcile.New(st, locks, home),
		importer:   scan.NewImporter(st, cfg.LibraryPath),
	}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func projectName(root string) string {
	return filepath.Base(filepath.Clean(root))
}

// catalog builds the remote catalog client from configuration.
func (e *env) catalog() *remote.HTTPCatalog {
	opts := []remote.CatalogOption{}
	if e.cfg.Remote.CatalogURL != "" {
		opts = append(opts, remote.WithBaseURL(e.cfg.Remote.CatalogURL))
	}
	if e.cfg.Remote.Timeout > 0 {
		opts = append(opts, remote.WithHTTPClient(&http.Client{Timeout: e.cfg.Remote.Timeout}))
	}
	return remote.NewHTTPCatalog(opts...)
}
