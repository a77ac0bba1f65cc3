package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/me/goshop/internal/instance"
	"github.com/me/goshop/pkg/model"
	"github.com/spf13/cobra"
)

// scheduleResult is the POST /schedules/ payload.
type scheduleResult struct {
	model.Schedule
	Cached bool `json:"cached"`
}

func newSubmitCmd() *cobra.Command {
	var (
		timeLimit time.Duration
		nodeLimit int64
		anchor    string
		output    string
		where     string
		showRows  bool
	)

	cmd := &cobra.Command{
		Use:   "submit <instance-file>",
		Short: "Submit an instance to the server for solving",
		Long: `Load an instance file and POST it to the goshop server. The server returns
a stored schedule when the same jobs were solved before.`,
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

			body := model.SolveRequest{
				Name:      req.Name,
				Jobs:      req.Jobs,
				Anchor:    anchorTime,
				NodeLimit: nodeLimit,
			}
			if timeLimit > 0 {
				body.TimeLimit = timeLimit.String()
			}

			logger.Info("submitting instance", "name", req.Name, "jobs", len(req.Jobs), "server", flagServer)
			resp, err := client.Post("/api/v1/schedules/", body)
			if err != nil {
				return fmt.Errorf("submit schedule: %w", err)
			}

			var data scheduleResult
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			verb := "created"
			if data.Cached {
				verb = "cached"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Schedule %s: %s\n", verb, data.ID)
			fmt.Fprintf(out, "  Status:   %s\n", data.Status)
			fmt.Fprintf(out, "  Makespan: %d\n", data.Makespan)
			fmt.Fprintf(out, "  Tasks:    %d\n", len(data.Rows))

			if showRows {
				fmt.Fprintln(out)
				return writeSchedule(out, &data.Schedule, output, where)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeLimit, "time-limit", 0, "Maximum search time (default: server setting)")
	cmd.Flags().Int64Var(&nodeLimit, "node-limit", 0, "Maximum search nodes (0 = server setting)")
	cmd.Flags().StringVar(&anchor, "anchor", "", "RFC 3339 time of offset 0")
	cmd.Flags().BoolVar(&showRows, "rows", false, "Also print the result rows")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Row output format with --rows: table, csv, json, yaml")
	cmd.Flags().StringVar(&where, "where", "", "JavaScript row filter expression for --rows")
	return cmd
}
