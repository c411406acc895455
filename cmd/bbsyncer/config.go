package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kstaniek/bbsyncer/internal/config"
	flag "github.com/spf13/pflag"
)

// appConfig wraps the on-disk/default config so cmd/bbsyncer can attach
// CLI-only fields without polluting internal/config's TOML schema.
type appConfig struct {
	config.Config
}

// cliArgs holds the parsed command-line flags, mirroring the Python
// original's argparse surface (spec.md §6).
type cliArgs struct {
	port            string
	configPath      string
	dryRun          bool
	web             bool
	verbose         bool
	metricsAddr     string
	logMetricsEvery time.Duration
}

// parseFlags parses argv with pflag, the GNU-style flag library the rest
// of the pack favors over stdlib flag. Returns (nil, false) on a parse or
// validation error, having already printed the problem.
func parseFlags(argv []string) (*cliArgs, bool) {
	fs := flag.NewFlagSet("bbsyncer", flag.ContinueOnError)
	port := fs.StringP("port", "p", "", "Serial port (e.g. /dev/ttyACM0). Empty = auto-detect.")
	configPath := fs.StringP("config", "c", "", "Path to bbsyncer.toml config file.")
	dryRun := fs.Bool("dry-run", false, "Copy flash but skip the erase step.")
	web := fs.Bool("web", false, "Run the read-only web UI instead of a sync.")
	verbose := fs.BoolP("verbose", "v", false, "Enable debug logging.")
	metricsAddr := fs.String("metrics-addr", "", "Prometheus metrics HTTP listen address (e.g. :9100); empty disables.")
	logMetricsEvery := fs.Duration("log-metrics-interval", 0, "If >0, periodically log a metrics counter snapshot.")
	showVersion := fs.Bool("version", false, "Print version and exit.")

	if err := fs.Parse(argv); err != nil {
		if err == flag.ErrHelp {
			return nil, false
		}
		fmt.Fprintf(os.Stderr, "argument error: %v\n", err)
		return nil, false
	}

	cli := &cliArgs{
		port:            *port,
		configPath:      *configPath,
		dryRun:          *dryRun,
		web:             *web,
		verbose:         *verbose,
		metricsAddr:     *metricsAddr,
		logMetricsEvery: *logMetricsEvery,
	}
	applyEnvOverrides(cli, fs)
	return cli, *showVersion
}

// applyEnvOverrides maps BBSYNCER_* environment variables onto cli. An
// explicitly-set flag always wins over its environment counterpart.
func applyEnvOverrides(cli *cliArgs, fs *flag.FlagSet) {
	get := func(k string) (string, bool) {
		v, ok := os.LookupEnv(k)
		return strings.TrimSpace(v), ok
	}
	if !fs.Changed("port") {
		if v, ok := get("BBSYNCER_PORT"); ok && v != "" {
			cli.port = v
		}
	}
	if !fs.Changed("config") {
		if v, ok := get("BBSYNCER_CONFIG"); ok && v != "" {
			cli.configPath = v
		}
	}
	if !fs.Changed("dry-run") {
		if v, ok := get("BBSYNCER_DRY_RUN"); ok {
			cli.dryRun = parseBool(v, cli.dryRun)
		}
	}
	if !fs.Changed("web") {
		if v, ok := get("BBSYNCER_WEB"); ok {
			cli.web = parseBool(v, cli.web)
		}
	}
	if !fs.Changed("verbose") {
		if v, ok := get("BBSYNCER_VERBOSE"); ok {
			cli.verbose = parseBool(v, cli.verbose)
		}
	}
	if !fs.Changed("metrics-addr") {
		if v, ok := get("BBSYNCER_METRICS_ADDR"); ok {
			cli.metricsAddr = v
		}
	}
	if !fs.Changed("log-metrics-interval") {
		if v, ok := get("BBSYNCER_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				cli.logMetricsEvery = d
			}
		}
	}
}

func parseBool(v string, fallback bool) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		if n, err := strconv.Atoi(v); err == nil {
			return n != 0
		}
		return fallback
	}
}

// loadConfig reads the TOML config (per internal/config's search order)
// and logs — but does not fail on — a file that exists but fails to
// parse, matching the Python original's warn-and-continue behavior.
func loadConfig(path string, l *slog.Logger) (appConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		l.Warn("config_parse_error_using_defaults", "path", path, "error", err)
	}
	return appConfig{Config: cfg}, nil
}
