package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/me/goshop/internal/engine"
	"github.com/me/goshop/internal/instance"
	"github.com/me/goshop/internal/solver"
	"github.com/me/goshop/pkg/model"
	"github.com/spf13/cobra"
)

func newSolveCmd() *cobra.Command {
	var (
		timeLimit time.Duration
		nodeLimit int64
		workers   int
		anchor    string
		unit      time.Duration
		output    string
		where     string
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "solve <instance-file>",
		Short: "Solve an instance locally and print the schedule",
		Long: `Solve a job-shop instance in-process. Instance files are YAML or JSON
documents (.yaml, .yml, .json) or OR-Library text files (anything else).

Rows are sorted by machine, then start time. --where keeps only the rows for
which a JavaScript expression is true, e.g. --where 'machine == "3" && start >= 4'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := instance.Load(args[0])
			if err != nil {
				return err
			}
			anchorTime, err := parseAnchor(anchor)
			if err != nil {
				return err
			}
			if workers == 0 {
				workers = solver.MaxWorkers()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			logger.Info("loaded instance", "name", req.Name, "jobs", len(req.Jobs), "tasks", req.TaskCount())
			sched, err := solveLocal(ctx, req, solver.Options{
				TimeLimit: timeLimit,
				NodeLimit: nodeLimit,
				Workers:   workers,
			}, unit, anchorTime)
			if err != nil {
				return err
			}

			if !quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s, makespan %d, %s branches, %s pruned, %d worker(s), %s\n",
					req.Name, sched.Status, sched.Makespan,
					humanize.Comma(sched.Stats.Branches), humanize.Comma(sched.Stats.Pruned),
					sched.Stats.Workers, sched.Stats.WallTime.Round(time.Millisecond))
			}
			return writeSchedule(cmd.OutOrStdout(), sched, output, where)
		},
	}

	defaults := solver.DefaultOptions()
	cmd.Flags().DurationVar(&timeLimit, "time-limit", defaults.TimeLimit, "Maximum search time")
	cmd.Flags().Int64Var(&nodeLimit, "node-limit", 0, "Maximum search nodes (0 = unlimited)")
	cmd.Flags().IntVar(&workers, "workers", defaults.Workers, "Search goroutines (0 = all cores)")
	cmd.Flags().StringVar(&anchor, "anchor", "", "RFC 3339 time of offset 0; adds planned start/end columns")
	cmd.Flags().DurationVar(&unit, "unit", time.Hour, "Length of one time unit when --anchor is set")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: table, csv, json, yaml (default table on a terminal, csv otherwise)")
	cmd.Flags().StringVar(&where, "where", "", "JavaScript row filter expression")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the summary line")
	return cmd
}

// solveLocal runs the engine on req and returns its result table.
func solveLocal(ctx context.Context, req *model.Request, opts solver.Options, unit time.Duration, anchor *time.Time) (*model.Schedule, error) {
	eng := engine.New(req.Jobs,
		engine.WithName(req.Name),
		engine.WithLogger(logger),
		engine.WithSolverOptions(opts),
		engine.WithTimeUnit(unit),
	)
	if _, err := eng.Solve(ctx); err != nil {
		return nil, fmt.Errorf("solve %s: %w", req.Name, err)
	}
	return eng.Results(anchor)
}
