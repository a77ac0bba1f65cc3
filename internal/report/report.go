// Package report renders solved schedules as fixed-width tables, CSV,
// JSON or YAML.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/me/goshop/pkg/model"
	"gopkg.in/yaml.v3"
)

// Format names an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, csv, json or yaml)", s)
	}
}

// Write renders sched in the given format.
func Write(w io.Writer, sched *model.Schedule, format Format) error {
	switch format {
	case FormatTable:
		return WriteTable(w, sched.Rows)
	case FormatCSV:
		return WriteCSV(w, sched.Rows)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sched)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(sched); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// csvHeader lists the columns of the result table. Planned times are
// appended only when rows carry them.
var csvHeader = []string{"job_id", "job_name", "id", "task_name", "machine", "start", "end"}

func planned(rows []model.Row) bool {
	return len(rows) > 0 && rows[0].PlannedStart != nil
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []model.Row) error {
	cw := csv.NewWriter(w)
	withPlanned := planned(rows)

	header := csvHeader
	if withPlanned {
		header = append(append([]string{}, csvHeader...), "planned_start", "planned_end")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.JobID),
			r.JobName,
			r.ID,
			r.TaskName,
			r.Machine.String(),
			strconv.FormatInt(r.Start, 10),
			strconv.FormatInt(r.End, 10),
		}
		if withPlanned {
			rec = append(rec, formatTime(r.PlannedStart), formatTime(r.PlannedEnd))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable writes rows as an aligned text table.
func WriteTable(w io.Writer, rows []model.Row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No tasks scheduled.")
		return err
	}
	withPlanned := planned(rows)

	line := func(cols ...string) {
		fmt.Fprintf(w, "%-6s  %-14s  %-12s  %-12s  %8s  %8s", cols[0], cols[1], cols[2], cols[3], cols[4], cols[5])
		if withPlanned {
			fmt.Fprintf(w, "  %-20s  %-20s", cols[6], cols[7])
		}
		fmt.Fprintln(w)
	}
	line("JOB", "ID", "TASK", "MACHINE", "START", "END", "PLANNED START", "PLANNED END")
	line("---", "--", "----", "-------", "-----", "---", "-------------", "-----------")
	for _, r := range rows {
		job := strconv.Itoa(r.JobID)
		if r.JobName != "" {
			job = r.JobName
		}
		line(job, r.ID, r.TaskName, r.Machine.String(),
			strconv.FormatInt(r.Start, 10), strconv.FormatInt(r.End, 10),
			formatTime(r.PlannedStart), formatTime(r.PlannedEnd))
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
