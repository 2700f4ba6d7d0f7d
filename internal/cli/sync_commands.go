package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/congwa/skillmgr/internal/model"
	"github.com/congwa/skillmgr/internal/ui"
)

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Push library content to a deployment",
		UsageText: "skillmgr sync <deployment-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("sync requires exactly 1 argument: <deployment-id>")
			}
			app, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.executor.SyncDeployment(ctx, cmd.Args().Get(0))
			if err != nil {
				return err
			}
			fmt.Println(ui.StatusSuccess(fmt.Sprintf("synced %d files", result.FilesCopied)))
			return nil
		},
	}
}

func pullCommand() *cli.Command {
	return &cli.Command{
		Name:      "pull",
		Usage:     "Update the library from a deployment's current content",
		UsageText: "skillmgr pull [options] <deployment-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "propagate",
				Usage: "Also push the updated content to the skill's other deployments",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("pull requires exactly 1 argument: <deployment-id>")
			}
			app, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.executor.UpdateLibraryFromDeployment(ctx, cmd.Args().Get(0), cmd.Bool("propagate"))
			if err != nil {
				return err
			}
			fmt.Println(ui.StatusSuccess(fmt.Sprintf("library updated for %s (backup %s)",
				result.SkillName, result.BackupID)))
			if cmd.Bool("propagate") {
				fmt.Printf("  %d other deployment(s) synced\n", result.OtherDeploymentsSynced)
			}
			return nil
		},
	}
}

func deployCommand() *cli.Command {
	return &cli.Command{
		Name:      "deploy",
		Usage:     "Deploy a skill to a tool's skills directory",
		UsageText: "skillmgr deploy [options] <skill-name> <tool>",
		Description: `Deploy a skill globally or into a project.

   Supported tools: windsurf, cursor, claude-code, codex, trae

   Examples:
     skillmgr deploy my-skill cursor
     skillmgr deploy --project proj-123 my-skill claude-code`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "project",
				Usage: "Deploy into this project instead of globally",
			},
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Overwrite existing content at the target path",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return errors.New("deploy requires exactly 2 arguments: <skill-name> <tool>")
			}
			app, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			skill, err := app.store.GetSkillByName(cmd.Args().Get(0))
			if err != nil {
				return err
			}
			tool := model.Tool(cmd.Args().Get(1))

			result, err := app.executor.DeployToTarget(ctx, skill.ID, tool, cmd.String("project"), cmd.Bool("force"))
			if err != nil {
				return err
			}
			if result.Conflict != nil {
				fmt.Println(ui.StatusWarning(fmt.Sprintf(
					"target %s already has different content (existing %s, library %s)",
					result.Conflict.Path,
					shortSum(result.Conflict.ExistingChecksum),
					shortSum(result.Conflict.LibraryChecksum))))
				fmt.Println("  re-run with --force to overwrite")
				return nil
			}
			fmt.Println(ui.StatusSuccess(fmt.Sprintf("deployed %s to %s", skill.Name, result.Path)))
			return nil
		},
	}
}

func undeployCommand() *cli.Command {
	return &cli.Command{
		Name:      "undeploy",
		Usage:     "Remove a deployment from disk and from tracking",
		UsageText: "skillmgr undeploy <deployment-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("undeploy requires exactly 1 argument: <deployment-id>")
			}
			app, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.executor.DeleteDeployment(ctx, cmd.Args().Get(0)); err != nil {
				return err
			}
			fmt.Println(ui.StatusSuccess("deployment removed"))
			return nil
		},
	}
}

func restoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Restore the library from a backup",
		UsageText: "skillmgr restore [options] <backup-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "sync",
				Usage: "Also push the restored content to all deployments",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("restore requires exactly 1 argument: <backup-id>")
			}
			app, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.executor.RestoreFromBackup(ctx, cmd.Args().Get(0), cmd.Bool("sync"))
			if err != nil {
				return err
			}
			fmt.Println(ui.StatusSuccess(fmt.Sprintf("restored %s (pre-restore backup %s)",
				result.SkillName, result.PreRestoreBackupID)))
			if cmd.Bool("sync") {
				fmt.Printf("  %d deployment(s) synced\n", result.DeploymentsSynced)
			}
			return nil
		},
	}
}

func shortSum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
