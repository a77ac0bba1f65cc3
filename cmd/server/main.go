package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/me/goshop/internal/config"
	"github.com/me/goshop/internal/logging"
	"github.com/me/goshop/internal/server"
	"github.com/me/goshop/internal/store"
)

func main() {
	cfg := config.DefaultServerConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Database path (default ~/.goshop/goshop.db)")
	flag.DurationVar(&cfg.Solver.TimeLimit, "time-limit", cfg.Solver.TimeLimit, "Maximum search time per request")
	flag.Int64Var(&cfg.Solver.NodeLimit, "node-limit", cfg.Solver.NodeLimit, "Maximum search nodes per request (0 = unlimited)")
	flag.IntVar(&cfg.Solver.Workers, "workers", cfg.Solver.Workers, "Search goroutines per solve")
	flag.DurationVar(&cfg.Solver.TimeUnit, "time-unit", cfg.Solver.TimeUnit, "Length of one time unit for anchored schedules")
	flag.IntVar(&cfg.MaxConcurrentSolves, "max-solves", cfg.MaxConcurrentSolves, "Maximum solves running at once")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	configFile := flag.String("config", "", "Path to a YAML config file; flags override its values")

	flag.Parse()

	if *configFile != "" {
		if err := config.LoadFile(*configFile, &cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		// Parse again so explicit flags win over the file.
		flag.CommandLine.Parse(os.Args[1:])
	}

	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	// Resolve database path.
	dbPath := cfg.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		dir := filepath.Join(home, ".goshop")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
		dbPath = filepath.Join(dir, "goshop.db")
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", dbPath)

	srv := server.New(cfg, st, logger)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting",
			"addr", cfg.Addr,
			"time_limit", cfg.Solver.TimeLimit,
			"workers", cfg.Solver.Workers,
			"max_solves", cfg.MaxConcurrentSolves,
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// In-flight solves finish within their time limit.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Solver.TimeLimit+5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
