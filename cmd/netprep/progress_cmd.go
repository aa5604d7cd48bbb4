package main

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/netplus/netprep/internal/progress"
	"github.com/spf13/cobra"
)

func newProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Inspect and synchronise learning progress",
	}
	cmd.AddCommand(
		newProgressPullCmd(),
		newProgressSyncCmd(),
		newProgressSetCmd(),
		newProgressShowCmd(),
		newProgressResetCmd(),
	)
	return cmd
}

func newProgressPullCmd() *cobra.Command {
	var total int

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Merge server progress into the local copy and flush queued updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(a *app) error {
				res, err := a.progress.Reconcile(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s resolved, %s\n", green("OK"),
					plural(len(res.Resolved), "component"), plural(len(res.Conflicts), "conflict"))
				writeConflicts(out, res.Conflicts)
				writeOverall(out, progress.Overall(res.Resolved, total))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&total, "total", progress.DefaultTotalComponents, "Number of components in the course")
	return cmd
}

func newProgressSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send the local progress and store the server's merged result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(a *app) error {
				ctx := cmd.Context()
				local, err := a.progress.Local().All(ctx)
				if err != nil {
					return err
				}

				data, err := a.progress.Sync(ctx, local)
				if err != nil {
					return err
				}
				if err := a.progress.Local().PutAll(ctx, data.ComponentProgress); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s synced %s, server version %d\n", green("OK"),
					plural(len(data.ComponentProgress), "component"), data.Version)
				writeConflicts(out, data.Conflicts)
				return nil
			})
		},
	}
}

func newProgressSetCmd() *cobra.Command {
	var completed bool
	var score float64
	var timeSpent int64
	var attempts int

	cmd := &cobra.Command{
		Use:   "set <component-id>",
		Short: "Record progress for a component, queueing it until the server accepts it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u progress.Update
			if cmd.Flags().Changed("completed") {
				u.Completed = &completed
			}
			if cmd.Flags().Changed("score") {
				u.Score = &score
			}
			if cmd.Flags().Changed("time") {
				u.TimeSpent = &timeSpent
			}
			if cmd.Flags().Changed("attempts") {
				u.Attempts = &attempts
			}

			return runWithApp(cmd, func(a *app) error {
				ctx := cmd.Context()
				if err := a.progress.QueueUpdate(ctx, args[0], u); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if !a.monitor.Status() {
					fmt.Fprintf(out, "%s saved %s locally, it is sent on the next pull\n", yellow("QUEUED"), args[0])
					return nil
				}

				sent, err := a.progress.ProcessQueue(ctx)
				if err != nil {
					fmt.Fprintf(out, "%s saved %s locally, %s sent before the server refused\n",
						yellow("QUEUED"), args[0], plural(sent, "update"))
					return err
				}
				fmt.Fprintf(out, "%s saved %s, %s sent\n", green("OK"), args[0], plural(sent, "update"))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&completed, "completed", false, "Mark the component completed")
	cmd.Flags().Float64Var(&score, "score", 0, "Score for the component")
	cmd.Flags().Int64Var(&timeSpent, "time", 0, "Total time spent, in seconds")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "Number of attempts")
	return cmd
}

func newProgressShowCmd() *cobra.Command {
	var category string
	var total int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Summarise the local progress without contacting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(a *app) error {
				all, err := a.progress.Local().All(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if category != "" {
					s := progress.Category(all, category)
					fmt.Fprintf(out, "%s: %d/%d completed, average score %.1f, %s spent\n",
						cyan(s.CategoryID), s.ComponentsCompleted, s.TotalComponents, s.AverageScore,
						humanDuration(time.Duration(s.TotalTimeSpent)*time.Second))
					return nil
				}

				ids := make([]string, 0, len(all))
				for id := range all {
					ids = append(ids, id)
				}
				slices.Sort(ids)
				for _, id := range ids {
					r := all[id]
					mark := yellow("…")
					if r.Completed {
						mark = green("✓")
					}
					fmt.Fprintf(out, "%s %-24s visited %s\n", mark, id, humanize.Time(r.LastVisited))
				}
				writeOverall(out, progress.Overall(all, total))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only summarise components with this ID prefix")
	cmd.Flags().IntVar(&total, "total", progress.DefaultTotalComponents, "Number of components in the course")
	return cmd
}

func newProgressResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all progress on the server and on this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset without --yes")
			}
			return runWithApp(cmd, func(a *app) error {
				if err := a.progress.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), green("OK"), "progress reset")
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the reset")
	return cmd
}

func writeConflicts(w io.Writer, conflicts []progress.Conflict) {
	for _, c := range conflicts {
		fmt.Fprintf(w, "  %s %s kept %s\n", yellow("conflict"), c.Local.ComponentID, c.Resolution)
	}
}

func writeOverall(w io.Writer, s progress.OverallSummary) {
	fmt.Fprintf(w, "%d/%d components completed (%.0f%%), average score %.1f\n",
		s.TotalCompleted, s.TotalComponents, s.Percentage, s.AverageScore)
}
