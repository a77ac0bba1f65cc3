package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/me/goshop/internal/report"
	"github.com/me/goshop/internal/rowfilter"
	"github.com/me/goshop/pkg/model"
)

// outputFormat resolves the --output flag. Without one, terminals get a
// table and pipes get CSV.
func outputFormat(flag string, w io.Writer) (report.Format, error) {
	if flag != "" {
		return report.ParseFormat(flag)
	}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return report.FormatTable, nil
	}
	return report.FormatCSV, nil
}

// parseAnchor reads an RFC 3339 anchor; empty means no anchor.
func parseAnchor(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid --anchor %q: %w", s, err)
	}
	return &t, nil
}

// writeSchedule filters rows with the --where expression and renders the
// schedule.
func writeSchedule(w io.Writer, sched *model.Schedule, format, where string) error {
	f, err := outputFormat(format, w)
	if err != nil {
		return err
	}
	filter, err := rowfilter.Compile(where)
	if err != nil {
		return err
	}
	rows, err := filter.Apply(sched.Rows)
	if err != nil {
		return err
	}
	out := *sched
	out.Rows = rows
	return report.Write(w, &out, f)
}
