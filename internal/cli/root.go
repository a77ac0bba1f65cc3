package cli

import (
	"log/slog"
	"os"

	"github.com/me/goshop/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking GOSHOP_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("GOSHOP_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the goshop CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "goshop",
		Short: "goshop: job-shop scheduling with minimum makespan",
		Long: `goshop assigns every task of every job a start time on its machine so that
no machine runs two tasks at once, each job runs its tasks in order, and the
time until the last job finishes is as small as possible.

Solve instance files locally with "goshop solve", or submit them to a goshop
server and fetch stored schedules.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "goshop server URL (or GOSHOP_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newSolveCmd(),
		newSubmitCmd(),
		newGetCmd(),
		newListCmd(),
		newExportCmd(),
		newDeleteCmd(),
	)

	return root
}
