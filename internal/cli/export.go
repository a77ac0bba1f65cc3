package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var (
		format  string
		outFile string
	)

	cmd := &cobra.Command{
		Use:   "export <schedule_id>",
		Short: "Export a stored schedule's rows as CSV or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "csv" && format != "json" {
				return fmt.Errorf("unknown export format %q (want csv or json)", format)
			}
			path := "/api/v1/schedules/" + url.PathEscape(args[0]) + "/rows?format=" + format

			var data []byte
			if format == "csv" {
				body, err := client.Download(path)
				if err != nil {
					return fmt.Errorf("export schedule: %w", err)
				}
				data = body
			} else {
				resp, err := client.Get(path)
				if err != nil {
					return fmt.Errorf("export schedule: %w", err)
				}
				var buf bytes.Buffer
				if err := json.Indent(&buf, resp.Data, "", "  "); err != nil {
					return fmt.Errorf("format rows: %w", err)
				}
				buf.WriteByte('\n')
				data = buf.Bytes()
			}

			var w io.Writer = cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("create %s: %w", outFile, err)
				}
				defer f.Close()
				w = f
			}
			if _, err := w.Write(data); err != nil {
				return fmt.Errorf("write rows: %w", err)
			}
			if outFile != "" {
				logger.Info("rows exported", "file", outFile, "bytes", len(data))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Export format: csv or json")
	cmd.Flags().StringVarP(&outFile, "out", "O", "", "Write to file instead of stdout")
	return cmd
}
