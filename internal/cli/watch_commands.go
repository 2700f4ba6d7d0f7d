package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/congwa/skillmgr/internal/logging"
	"github.com/congwa/skillmgr/internal/ui"
	"github.com/congwa/skillmgr/internal/watch"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch deployment directories and absorb external edits",
		Description: `Runs until interrupted. When a deployment's files change on disk,
   the change is absorbed into the library after a pre-update backup, and
   the skill is flagged for resolution (see "skillmgr watcher resolve").`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			bridge, err := watch.New(app.cfg.Watch.Debounce)
			if err != nil {
				return err
			}
			defer bridge.Close()

			deployments, err := app.store.ListDeployments()
			if err != nil {
				return err
			}
			for _, dep := range deployments {
				if err := bridge.Add(dep.ID, dep.Path); err != nil {
					logging.Warn("failed to watch deployment",
						logging.Deployment(dep.ID),
						logging.Path(dep.Path),
						logging.Err(err),
					)
				}
			}
			fmt.Printf("Watching %d deployment(s). Ctrl-C to stop.\n", len(deployments))

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			for {
				select {
				case change, ok := <-bridge.Changes():
					if !ok {
						return nil
					}
					result, err := app.executor.AbsorbWatcherChange(ctx, change.DeploymentID)
					if err != nil {
						fmt.Println(ui.StatusError(fmt.Sprintf("%s: %v", change.DeploymentID, err)))
						continue
					}
					switch {
					case result.NoChange:
						// Spurious event, nothing to report.
					case result.Coalesced:
						fmt.Println(ui.StatusWarning(fmt.Sprintf(
							"%s changed again (pending change updated)", result.SkillName)))
					default:
						fmt.Println(ui.StatusWarning(fmt.Sprintf(
							"%s changed externally, absorbed (backup %s)",
							result.SkillName, result.BackupID)))
					}
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
}

func watcherCommand() *cli.Command {
	return &cli.Command{
		Name:  "watcher",
		Usage: "Manage pending watcher changes",
		Commands: []*cli.Command{
			{
				Name:      "resolve",
				Usage:     "Resolve a skill's pending watcher change",
				UsageText: "skillmgr watcher resolve <skill-name> <full-sync|db-only|discard>",
				Description: `full-sync  push the absorbed content to the skill's other deployments
   db-only    accept the absorbed content, leave other deployments alone
   discard    restore the library from the pre-change backup`,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 2 {
						return errors.New("resolve requires exactly 2 arguments: <skill-name> <action>")
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

					switch action := cmd.Args().Get(1); action {
					case "full-sync":
						n, err := app.executor.FullSyncWatcherChange(ctx, skill.ID)
						if err != nil {
							return err
						}
						fmt.Println(ui.StatusSuccess(fmt.Sprintf("%d deployment(s) synced", n)))
					case "db-only":
						if err := app.executor.DBOnlyWatcherChange(skill.ID); err != nil {
							return err
						}
						fmt.Println(ui.StatusSuccess("change accepted"))
					case "discard":
						if err := app.executor.DiscardWatcherChange(ctx, skill.ID); err != nil {
							return err
						}
						fmt.Println(ui.StatusSuccess("change discarded, library restored"))
					default:
						return fmt.Errorf("unknown action %q (want full-sync, db-only, or discard)", action)
					}
					return nil
				},
			},
		},
	}
}
