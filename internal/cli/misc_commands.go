package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/congwa/skillmgr/internal/model"
	"github.com/congwa/skillmgr/internal/remote"
	"github.com/congwa/skillmgr/internal/ui"
)

func remoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "remote",
		Usage: "Interact with the skill catalog",
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Check installed skills for upstream updates",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Emit results as JSON"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := openEnv(cmd)
					if err != nil {
						return err
					}
					defer app.Close()

					checker := remote.NewChecker(app.store, app.catalog())
					infos, err := checker.CheckUpdates(ctx)
					if err != nil {
						return err
					}
					if cmd.Bool("json") {
						return printJSON(infos)
					}

					if len(infos) == 0 {
						fmt.Println("No skills with remote sources.")
						return nil
					}
					for _, info := range infos {
						switch {
						case info.Error != "":
							fmt.Println(ui.StatusError(fmt.Sprintf("%s: %s", info.SkillName, info.Error)))
						case info.HasUpdate && info.LocallyModified:
							fmt.Println(ui.StatusWarning(fmt.Sprintf(
								"%s: update available (%s -> %s) but locally modified",
								info.SkillName, info.InstalledVersion, info.RemoteVersion)))
						case info.HasUpdate:
							fmt.Println(ui.StatusWarning(fmt.Sprintf("%s: update available (%s -> %s)",
								info.SkillName, info.InstalledVersion, info.RemoteVersion)))
						default:
							fmt.Println(ui.StatusSuccess(info.SkillName + ": up to date"))
						}
					}
					return nil
				},
			},
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show the sync action log",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 50, Usage: "Maximum entries to show"},
			&cli.BoolFlag{Name: "json", Usage: "Emit entries as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			entries, err := app.store.ListHistory(cmd.Int("limit"))
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				return printJSON(entries)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, h := range entries {
				status := ui.Success(string(h.Status))
				if h.ErrorMessage != "" {
					status = ui.Error(string(h.Status))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					h.CreatedAt.Format("2006-01-02 15:04:05"),
					h.Action, h.SkillID, status, h.ErrorMessage)
			}
			return w.Flush()
		},
	}
}

func backupsCommand() *cli.Command {
	return &cli.Command{
		Name:  "backups",
		Usage: "List library backups",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "skill", Usage: "Filter by skill name"},
			&cli.BoolFlag{Name: "verify", Usage: "Check each backup's content against its recorded checksum"},
			&cli.BoolFlag{Name: "json", Usage: "Emit entries as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			skillID := ""
			if name := cmd.String("skill"); name != "" {
				skill, err := app.store.GetSkillByName(name)
				if err != nil {
					return err
				}
				skillID = skill.ID
			}

			backups, err := app.store.ListBackups(skillID)
			if err != nil {
				return err
			}

			if cmd.Bool("verify") {
				var failed int
				for _, b := range backups {
					if err := app.backups.Verify(ctx, b.ID); err != nil {
						failed++
						fmt.Println(ui.StatusError(fmt.Sprintf("%s: %v", b.ID, err)))
						continue
					}
					fmt.Println(ui.StatusSuccess(b.ID + ": intact"))
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d backups failed verification", failed, len(backups))
				}
				return nil
			}

			if cmd.Bool("json") {
				return printJSON(backups)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, b := range backups {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					b.ID, b.CreatedAt.Format("2006-01-02 15:04:05"),
					b.Reason, b.VersionLabel, shortSum(b.Checksum))
			}
			return w.Flush()
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Show recorded change events",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Usage: "Include resolved and ignored events"},
			&cli.StringFlag{Name: "resolve", Usage: "Mark an event resolved by ID"},
			&cli.StringFlag{Name: "ignore", Usage: "Mark an event ignored by ID"},
			&cli.BoolFlag{Name: "json", Usage: "Emit events as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if id := cmd.String("resolve"); id != "" {
				if err := app.store.ResolveChangeEvent(id, model.ResolutionResolved); err != nil {
					return err
				}
				fmt.Println(ui.StatusSuccess("event " + id + " resolved"))
				return nil
			}
			if id := cmd.String("ignore"); id != "" {
				if err := app.store.ResolveChangeEvent(id, model.ResolutionIgnored); err != nil {
					return err
				}
				fmt.Println(ui.StatusSuccess("event " + id + " ignored"))
				return nil
			}

			events, err := app.store.ListChangeEvents(!cmd.Bool("all"))
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				return printJSON(events)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"),
					e.Type, e.DeploymentID, e.Resolution,
					shortSum(e.NewChecksum))
			}
			return w.Flush()
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Display current configuration",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			data, err := yaml.Marshal(app.cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Display version and build information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("skillmgr version %s\n", Version)
			fmt.Printf("  commit: %s\n", Commit)
			fmt.Printf("  built: %s\n", BuildDate)
			fmt.Printf("  go: %s\n", runtime.Version())
			return nil
		},
	}
}
