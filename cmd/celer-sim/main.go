// Package main is the entry point for the celer-sim stepping driver.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/celeritas-project/celer-engine/internal/config"
	"github.com/celeritas-project/celer-engine/internal/importer"
	"github.com/celeritas-project/celer-engine/internal/ipc"
	"github.com/celeritas-project/celer-engine/internal/logger"
	"github.com/celeritas-project/celer-engine/internal/metrics"
	"github.com/celeritas-project/celer-engine/internal/runner"
	"github.com/celeritas-project/celer-engine/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to configuration JSON file")
	flag.Parse()

	if *showVersion {
		fmt.Printf("celer-sim %s (commit=%s, built=%s)\n", version, commit, date)
		os.Exit(0)
	}

	// Resolve config path: --config flag > CELER_CONFIG env > auto-discover next to exe.
	path := config.Discover(*configPath)
	if path == "" {
		fatal("no config found. Place config.json next to the exe, use --config <path>, or set " + config.EnvConfig + ".")
	}

	cfg, err := config.Load(path)
	if err != nil {
		fatal(fmt.Sprintf("load config: %v", err))
	}

	logger.Initialize(cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()
	log := logger.For(logger.ComponentRunner)

	problem, err := importer.Load(cfg.ResolveProblemPath(path))
	if err != nil {
		fatal(fmt.Sprintf("load problem: %v", err))
	}

	opts := runner.Options{}
	if cfg.DBPath != "" {
		db, err := store.NewDB(cfg.DBPath)
		if err != nil {
			fatal(fmt.Sprintf("store: %v", err))
		}
		defer db.Close()
		opts.DB = db
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts.Metrics = metrics.New(reg)
		metricsSrv = metrics.SetupMetricsEndpoint(cfg.MetricsAddr, reg)
	}

	r, err := runner.New(cfg, problem, opts)
	if err != nil {
		fatal(fmt.Sprintf("setup: %v", err))
	}
	defer r.Close()

	// Graceful shutdown on interrupt.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *ipc.Server
	if cfg.ListenAddr != "" && opts.DB != nil {
		srv = ipc.NewServer(ipc.NewHandler(opts.DB, r.Params().ActionRegistry(), version), cfg.ListenAddr)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("Diagnostics server failed", "error", err)
			}
		}()
		log.Infow("Diagnostics API listening", "url", ipc.FormatListenURL(cfg.ListenAddr))
	}

	summary, runErr := r.Run(ctx)
	if summary != nil {
		printSummary(summary)
	}

	// Keep serving diagnostics until interrupted.
	if srv != nil && ctx.Err() == nil {
		log.Info("Run finished; serving diagnostics until interrupted")
		<-ctx.Done()
	}
	shutdown(srv, metricsSrv)

	if runErr != nil {
		fatal(fmt.Sprintf("run: %v", runErr))
	}
}

func shutdown(srv *ipc.Server, metricsSrv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "server shutdown: %v\n", err)
		}
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "metrics shutdown: %v\n", err)
		}
	}
}

func printSummary(s *runner.Summary) {
	fmt.Printf("run %s: %s events, %s steps on %d streams in %s\n",
		s.RunID, humanize.Comma(int64(s.Events)), humanize.Comma(int64(s.Steps)), s.Streams, s.Elapsed.Round(time.Millisecond))
	fmt.Printf("  active slots per step: %.1f +/- %.1f, steps per event: %.1f\n",
		s.ActiveMean, s.ActiveStdDev, s.StepsPerEvent)
	if s.Killed > 0 {
		fmt.Printf("  killed at step limit: %s tracks\n", humanize.Comma(int64(s.Killed)))
	}
	if s.Photons > 0 {
		fmt.Printf("  optical photons: %s\n", humanize.Comma(int64(s.Photons)))
	}
	if len(s.ActionTimes) == 0 {
		return
	}
	labels := make([]string, 0, len(s.ActionTimes))
	for label := range s.ActionTimes {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return s.ActionTimes[labels[i]] > s.ActionTimes[labels[j]] })
	for _, label := range labels {
		fmt.Printf("  %-28s %10.6f s\n", label, s.ActionTimes[label])
	}
}

// fatal prints an error and, on Windows, waits for a keypress so the user can
// read the message when the exe is launched by double-click.
func fatal(msg string) {
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", msg)
	if runtime.GOOS == "windows" {
		fmt.Fprintln(os.Stderr, "\nPress Enter to exit...")
		bufio.NewReader(os.Stdin).ReadBytes('\n')
	}
	os.Exit(1)
}
