package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/me/goshop/pkg/model"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var (
		limit  int
		offset int
		status string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))
			if status != "" {
				q.Set("status", status)
			}

			resp, err := client.Get("/api/v1/schedules/?" + q.Encode())
			if err != nil {
				return fmt.Errorf("list schedules: %w", err)
			}

			var data []model.ScheduleSummary
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(data) == 0 {
				fmt.Fprintln(out, "No schedules found.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-10s  %8s  %6s  %-24s  %s\n", "ID", "STATUS", "MAKESPAN", "TASKS", "NAME", "CREATED")
			fmt.Fprintf(out, "%-40s  %-10s  %8s  %6s  %-24s  %s\n", "--", "------", "--------", "-----", "----", "-------")
			for _, s := range data {
				fmt.Fprintf(out, "%-40s  %-10s  %8d  %6d  %-24s  %s\n",
					s.ID, s.Status, s.Makespan, s.RowCount, s.Name, s.CreatedAt.Format("2006-01-02 15:04:05"))
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(data), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum schedules to show (1-100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Schedules to skip")
	cmd.Flags().StringVar(&status, "status", "", "Only schedules with this status (OPTIMAL, FEASIBLE)")
	return cmd
}
