package cli

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/me/goshop/pkg/model"
	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	var (
		anchor string
		output string
		where  string
	)

	cmd := &cobra.Command{
		Use:   "get <schedule_id>",
		Short: "Fetch a stored schedule and print its rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/schedules/" + url.PathEscape(args[0])
			if anchor != "" {
				if _, err := parseAnchor(anchor); err != nil {
					return err
				}
				path += "?anchor=" + url.QueryEscape(anchor)
			}

			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("get schedule: %w", err)
			}

			var sched model.Schedule
			if err := json.Unmarshal(resp.Data, &sched); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			return writeSchedule(cmd.OutOrStdout(), &sched, output, where)
		},
	}

	cmd.Flags().StringVar(&anchor, "anchor", "", "RFC 3339 time of offset 0; adds planned start/end columns")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: table, csv, json, yaml")
	cmd.Flags().StringVar(&where, "where", "", "JavaScript row filter expression")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <schedule_id>",
		Short: "Delete a stored schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if _, err := client.Delete("/api/v1/schedules/" + url.PathEscape(id)); err != nil {
				return fmt.Errorf("delete schedule: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s deleted\n", id)
			return nil
		},
	}
}
