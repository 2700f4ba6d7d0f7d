package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/congwa/skillmgr/internal/diff"
	"github.com/congwa/skillmgr/internal/fstree"
	"github.com/congwa/skillmgr/internal/merge"
	"github.com/congwa/skillmgr/internal/ui"
)

func diffCommand() *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "Show file-level differences between the library and a deployment",
		UsageText: "skillmgr diff <deployment-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Emit the diff as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("diff requires exactly 1 argument: <deployment-id>")
			}
			app, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			left, right, skillName, err := loadSides(ctx, app, cmd.Args().Get(0))
			if err != nil {
				return err
			}

			result := diff.Tree(left, right)
			if cmd.Bool("json") {
				return printJSON(result)
			}

			if !result.HasChanges() {
				fmt.Println(ui.StatusSuccess(fmt.Sprintf("%s: no differences", skillName)))
				return nil
			}
			printDiff(result)
			return nil
		},
	}
}

func printDiff(result *diff.Result) {
	fmt.Printf("%s  +%d -%d ~%d\n", ui.Bold("Diff"),
		result.Summary.Added, result.Summary.Removed, result.Summary.Modified)

	for _, f := range result.Files {
		switch f.Status {
		case diff.StatusAdded:
			fmt.Println(ui.Success("A " + f.Path))
		case diff.StatusRemoved:
			fmt.Println(ui.Error("D " + f.Path))
		case diff.StatusModified:
			label := "M " + f.Path
			if f.TypeConflict {
				label += " (file/directory conflict)"
			}
			if f.Binary {
				label += " (binary)"
			}
			fmt.Println(ui.Warning(label))
			for _, hunk := range f.Hunks {
				fmt.Println(ui.Dim(fmt.Sprintf("  @@ -%d,%d +%d,%d @@",
					hunk.OldStart, hunk.OldCount, hunk.NewStart, hunk.NewCount)))
				for _, line := range hunk.Lines {
					switch line.Type {
					case diff.LineAdded:
						fmt.Println(ui.Success("  " + line.String()))
					case diff.LineRemoved:
						fmt.Println(ui.Error("  " + line.String()))
					default:
						fmt.Println(ui.Dim("  " + line.String()))
					}
				}
			}
		}
	}
}

func mergeCommand() *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "Merge a deployment's changes with the library",
		UsageText: "skillmgr merge [options] <deployment-id>",
		Description: `Classify every file as auto-mergeable or conflicting. Without
   --prefer, conflicts are listed and nothing is written. With --prefer,
   all conflicts are resolved in the chosen direction and the merged
   result is written to the deployment.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "prefer",
				Usage: "Resolve all conflicts toward one side: library or deployment",
			},
			&cli.BoolFlag{
				Name:  "additive",
				Usage: "Treat library-only files as additions instead of conflicts",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("merge requires exactly 1 argument: <deployment-id>")
			}
			app, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			depID := cmd.Args().Get(0)
			left, right, skillName, err := loadSides(ctx, app, depID)
			if err != nil {
				return err
			}

			result := merge.Merge(left, right, merge.Options{
				TreatLeftOnlyAsAddition: cmd.Bool("additive"),
			})

			fmt.Printf("%s %s: %d auto-merged, %d conflicts (of %d)\n",
				ui.Bold("Merge"), skillName, result.AutoMerged, result.Conflicts, result.Total)

			if result.Conflicts == 0 && cmd.String("prefer") == "" {
				return nil
			}

			prefer := cmd.String("prefer")
			if prefer == "" {
				for _, path := range result.ConflictPaths() {
					fmt.Println(ui.Warning("C " + path))
				}
				fmt.Println("  re-run with --prefer library or --prefer deployment to resolve")
				return nil
			}

			resolutions := make(map[string]merge.Resolution)
			for _, path := range result.ConflictPaths() {
				switch prefer {
				case "library":
					resolutions[path] = merge.UseLeft{}
				case "deployment":
					resolutions[path] = merge.UseRight{}
				default:
					return fmt.Errorf("invalid --prefer value %q (want library or deployment)", prefer)
				}
			}

			dep, err := app.store.GetDeployment(depID)
			if err != nil {
				return err
			}
			report, err := merge.Apply(dep.Path, result, resolutions)
			if err != nil {
				return err
			}
			fmt.Println(ui.StatusSuccess(fmt.Sprintf("merged %d files into %s",
				report.FilesWritten, dep.Path)))

			// The deployment content changed, pick it up.
			if _, err := app.reconciler.ReconcileOne(ctx, depID); err != nil {
				return err
			}
			return nil
		},
	}
}

// loadSides reads the library tree (left) and deployment tree (right) for a
// deployment.
func loadSides(ctx context.Context, app *env, deploymentID string) (left, right fstree.Tree, skillName string, err error) {
	dep, err := app.store.GetDeployment(deploymentID)
	if err != nil {
		return nil, nil, "", err
	}
	skill, err := app.store.GetSkill(dep.SkillID)
	if err != nil {
		return nil, nil, "", err
	}

	left, err = fstree.Read(ctx, skill.LocalPath)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to read library for %q: %w", skill.Name, err)
	}
	right, err = fstree.Read(ctx, dep.Path)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to read deployment %s: %w", deploymentID, err)
	}
	return left, right, skill.Name, nil
}
