package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/congwa/skillmgr/internal/progress"
	"github.com/congwa/skillmgr/internal/reconcile"
	"github.com/congwa/skillmgr/internal/ui"
)

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "Compare every deployment against the library and record divergence",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "deployment",
				Usage: "Reconcile a single deployment by ID",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Emit the report as JSON",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if id := cmd.String("deployment"); id != "" {
				detail, err := app.reconciler.ReconcileOne(ctx, id)
				if err != nil {
					return err
				}
				if cmd.Bool("json") {
					return printJSON(detail)
				}
				fmt.Printf("%s %s (%s) %s\n",
					ui.DeploymentStatus(detail.Status), detail.SkillName, detail.Tool, detail.Path)
				return nil
			}

			deployments, err := app.store.ListDeployments()
			if err != nil {
				return err
			}
			bar := progress.Simple(int64(len(deployments)), "Reconciling")
			report, err := app.reconciler.ReconcileAll(ctx, func(done, total int) {
				_ = bar.Set(done)
			})
			_ = bar.Finish()
			if err != nil {
				return err
			}

			if cmd.Bool("json") {
				return printJSON(report)
			}
			printReport(report)
			return nil
		},
	}
}

func printReport(report *reconcile.Report) {
	fmt.Printf("%s  %d synced, %d diverged, %d missing (of %d)\n",
		ui.Bold("Reconcile"),
		report.Synced, report.Diverged, report.Missing, report.TotalDeployments)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, d := range report.Details {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
			ui.DeploymentStatus(d.Status), d.SkillName, d.Tool, d.Path)
	}
	w.Flush()

	if len(report.UntrackedSkills) > 0 {
		fmt.Printf("\n%s\n", ui.Header("Untracked skills"))
		for _, u := range report.UntrackedSkills {
			scope := "global"
			if u.ProjectID != "" {
				scope = "project " + u.ProjectID
			}
			fmt.Printf("  %s %s (%s, %s) %s\n",
				ui.Info(ui.SymbolPending), u.Name, u.Tool, scope, ui.Dim(u.Path))
		}
	}

	for _, e := range report.Errors {
		fmt.Println(ui.StatusError(e.Error()))
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show skills, deployments, and pending watcher changes",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Emit status as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			app, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			skills, err := app.store.ListSkills()
			if err != nil {
				return err
			}

			if cmd.Bool("json") {
				type entry struct {
					Skill       any `json:"skill"`
					Deployments any `json:"deployments"`
				}
				var out []entry
				for i := range skills {
					deps, err := app.store.ListDeploymentsForSkill(skills[i].ID)
					if err != nil {
						return err
					}
					out = append(out, entry{Skill: skills[i], Deployments: deps})
				}
				return printJSON(out)
			}

			for i := range skills {
				skill := &skills[i]
				pending := ""
				if skill.HasPendingWatcherChange() {
					pending = " " + ui.Warning("[pending watcher change]")
				}
				fmt.Printf("%s %s%s\n", ui.Bold(skill.Name), ui.Dim(skill.Version), pending)

				deps, err := app.store.ListDeploymentsForSkill(skill.ID)
				if err != nil {
					return err
				}
				for _, d := range deps {
					scope := "global"
					if !d.IsGlobal() {
						scope = d.ProjectID
					}
					fmt.Printf("  %s %s (%s) %s\n",
						ui.DeploymentStatus(d.Status), d.Tool, scope, ui.Dim(d.Path))
				}
			}
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
