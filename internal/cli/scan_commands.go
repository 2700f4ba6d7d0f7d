package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/congwa/skillmgr/internal/model"
	"github.com/congwa/skillmgr/internal/scan"
	"github.com/congwa/skillmgr/internal/store"
	"github.com/congwa/skillmgr/internal/ui"
)

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Discover skills in tool directories",
		Description: `Scans the global skills directories of every supported tool, plus
   any configured project roots and extra Codex skill roots. With
   --import, discovered skills not yet in the library are imported and
   tracked as synced deployments.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "project",
				Usage: "Scan a single project directory instead of the configured roots",
			},
			&cli.BoolFlag{
				Name:  "import",
				Usage: "Import discovered skills into the library",
			},
			&cli.BoolFlag{Name: "json", Usage: "Emit results as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			var found []scan.Found
			projectID := ""

			if root := cmd.String("project"); root != "" {
				project, err := ensureProject(app.store, root)
				if err != nil {
					return err
				}
				projectID = project.ID
				found, err = scan.Project(ctx, root)
				if err != nil {
					return err
				}
				if err := app.store.TouchProjectScanned(project.ID); err != nil {
					return err
				}
			} else {
				home := homeDir()
				found, err = scan.Global(ctx, home, app.cfg.Scan.CodexConfigPath)
				if err != nil {
					return err
				}
				for _, root := range app.cfg.Scan.ProjectRoots {
					more, err := scan.Project(ctx, root)
					if err != nil {
						return err
					}
					found = append(found, more...)
				}
			}

			if cmd.Bool("json") && !cmd.Bool("import") {
				return printJSON(found)
			}

			for _, f := range found {
				fmt.Printf("%s %s (%s) %s\n",
					ui.Info(ui.SymbolPending), f.Meta.Name, f.Tool, ui.Dim(f.Path))

				if !cmd.Bool("import") {
					continue
				}
				result, err := app.importer.Import(ctx, f, projectID)
				if err != nil {
					fmt.Println("  " + ui.StatusError(err.Error()))
					continue
				}
				fmt.Println("  " + ui.StatusSuccess("imported as "+result.SkillID))
			}
			if len(found) == 0 {
				fmt.Println("No skills found.")
			}
			return nil
		},
	}
}

// ensureProject finds or registers the project record for a directory.
func ensureProject(st *store.Store, root string) (*model.Project, error) {
	projects, err := st.ListProjects()
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].Path == root {
			return &projects[i], nil
		}
	}

	p := &model.Project{Name: projectName(root), Path: root}
	if err := st.CreateProject(p); err != nil {
		return nil, err
	}
	return p, nil
}
