// Command bbsyncer drains a Betaflight FC's dataflash over MSP/serial
// into a content-addressed session file, verifies it bit-exact, and
// conditionally erases the FC's flash. Run with --web to instead serve
// the read-only status/download UI over the same storage root.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kstaniek/bbsyncer/internal/led"
	"github.com/kstaniek/bbsyncer/internal/metrics"
	syncsvc "github.com/kstaniek/bbsyncer/internal/sync"
	"github.com/kstaniek/bbsyncer/internal/web"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cli, showVersion := parseFlags(argv)
	if showVersion {
		fmt.Printf("bbsyncer %s (commit %s, built %s)\n", version, commit, date)
		return 0
	}
	if cli == nil {
		return 1
	}

	l := setupLogger(cli.verbose)
	cfg, err := loadConfig(cli.configPath, l)
	if err != nil {
		l.Error("config_load_error", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		l.Info("shutdown_signal", "signal", s.String())
		cancel()
	}()

	if cli.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srv := metrics.StartHTTP(cli.metricsAddr)
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cli.logMetricsEvery, l, &wg)
	defer wg.Wait()

	if cli.web {
		return runWeb(ctx, cfg, l)
	}
	return runSync(cfg, cli, l)
}

func runWeb(ctx context.Context, cfg appConfig, l *slog.Logger) int {
	status := syncsvc.NewStatus()
	srv := web.NewServer(cfg.StoragePath, status, web.WithLogger(l))
	metrics.SetReadinessFunc(func() bool { return true })

	addr := fmt.Sprintf(":%d", cfg.WebPort)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(addr) }()

	select {
	case err := <-errCh:
		if err != nil {
			l.Error("web_server_error", "error", err)
			return 1
		}
		return 0
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error("web_server_shutdown_error", "error", err)
			return 1
		}
		return 0
	}
}

func runSync(cfg appConfig, cli *cliArgs, l *slog.Logger) int {
	port := cli.port
	if port == "" {
		port = cfg.SerialPort
	}
	if port == "" {
		port = autoDetectPort()
	}
	if port == "" {
		l.Error("no serial port specified and no /dev/ttyACM* found; use --port or connect the FC")
		return 1
	}

	backend, err := newLEDBackend(cfg)
	if err != nil {
		l.Warn("led_backend_init_failed", "error", err)
	}
	ledCtl := led.New(backend)
	ledCtl.Start()
	defer func() {
		ledCtl.WaitUntilIdle(6 * time.Second)
		ledCtl.Stop()
	}()

	l.Info("starting sync", "port", port, "dry_run", cli.dryRun)
	orch := syncsvc.New(cfg.Config, ledCtl, syncsvc.WithDryRun(cli.dryRun), syncsvc.WithLogger(l))
	result := orch.Run(port)
	l.Info("sync result", "result", result.String())

	switch result {
	case syncsvc.ResultSuccess, syncsvc.ResultAlreadyEmpty, syncsvc.ResultDryRun:
		return 0
	default:
		return 1
	}
}
