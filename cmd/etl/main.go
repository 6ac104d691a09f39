package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cyberetl/internal/config"
	"cyberetl/internal/etl"
	"cyberetl/internal/logging"
	"cyberetl/internal/metrics"
	"cyberetl/internal/metrics/datadog"
	"cyberetl/internal/metrics/prompush"
	"cyberetl/internal/monitor"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "cyberetl/internal/storage/all"
)

// runPipelineFn is swapped in tests.
var runPipelineFn = func(ctx context.Context, p *etl.Pipeline) (*etl.Outcome, error) { return p.Run(ctx) }

// main is the entry point for the ETL binary. It loads the pipeline config,
// optionally initializes a metrics backend, and executes one run.
func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("etl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath        = fs.String("config", "configs/pipeline.sample.json", "pipeline config JSON path")
		envFile        = fs.String("env-file", ".env", "dotenv file loaded before the config is expanded (missing is fine)")
		validateOnly   = fs.Bool("validate", false, "validate the configuration and exit")
		metricsBackend = fs.String("metrics-backend", "", "metrics backend: none, pushgateway or datadog (env METRICS_BACKEND)")
		pushGatewayURL = fs.String("pushgateway-url", "", "Pushgateway base URL (env PUSHGATEWAY_URL)")
		datadogAddr    = fs.String("datadog-addr", "", "DogStatsD address (env DD_AGENT_ADDR)")
		logLevel       = fs.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
		logFormat      = fs.String("log-format", "", "text or json (env LOG_FORMAT)")
		logFile        = fs.String("log-file", "", "also append logs to this file (env LOG_FILE)")
		verbose        = fs.Bool("v", false, "shorthand for -log-level=debug")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stderr, "env file %s: %v\n", *envFile, err)
			return 1
		}
	}

	level := pick(*logLevel, "LOG_LEVEL", "info")
	if *verbose {
		level = "debug"
	}
	log, closeLog, err := logging.New(logging.Options{
		Level:  level,
		Format: pick(*logFormat, "LOG_FORMAT", "text"),
		File:   pick(*logFile, "LOG_FILE", ""),
		Stdout: stderr,
	})
	if err != nil {
		fmt.Fprintf(stderr, "logging: %v\n", err)
		return 1
	}
	defer closeLog()

	p, err := config.Load(*cfgPath)
	if err != nil {
		log.Error("load config", "path", *cfgPath, "err", err)
		return 1
	}
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Error("configuration is invalid", "path", *cfgPath)
		return 1
	}
	if *validateOnly {
		log.Info("configuration is valid", "path", *cfgPath)
		return 0
	}

	job := p.Job
	if job == "" {
		job = etl.DefaultJob
	}
	flush := setupMetrics(log, job,
		pick(*metricsBackend, "METRICS_BACKEND", "none"),
		pick(*pushGatewayURL, "PUSHGATEWAY_URL", "http://localhost:9091"),
		pick(*datadogAddr, "DD_AGENT_ADDR", "127.0.0.1:8125"))
	defer flush()

	var notifier monitor.Notifier
	if m := monitor.NewMailer(monitor.SMTPConfig{
		Addr:     p.Monitor.SMTPAddr,
		From:     p.Monitor.SMTPFrom,
		To:       p.Monitor.AlertEmail,
		Username: p.Monitor.SMTPUser,
		Password: p.Monitor.SMTPPass,
	}); m != nil {
		notifier = m
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	out, err := runPipelineFn(ctx, etl.New(p, notifier, log))
	if err != nil {
		log.Error("pipeline failed", "err", err, "elapsed", time.Since(start).Truncate(time.Millisecond))
		return 1
	}
	var loaded int64
	for _, n := range out.Loaded {
		loaded += n
	}
	log.Info("pipeline finished", "rows_loaded", loaded, "monitor_issues", len(out.MonitorIssues),
		"elapsed", time.Since(start).Truncate(time.Millisecond))
	return 0
}

// setupMetrics installs the named backend and returns its flush function.
// An unusable backend is logged and metrics stay disabled.
func setupMetrics(log *slog.Logger, job, name, gwURL, ddAddr string) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch strings.ToLower(name) {
	case "pushgateway", "prometheus":
		b, err = prompush.NewBackend(job, gwURL)
		log.Debug("metrics: pushgateway", "url", gwURL, "job", job)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       ddAddr,
			Namespace:  "cyberetl.",
			GlobalTags: []string{"job:" + job},
		})
		log.Debug("metrics: datadog", "addr", ddAddr, "job", job)
	case "", "none":
		log.Debug("metrics: disabled")
		return func() {}
	default:
		log.Warn("metrics: unknown backend; metrics disabled", "backend", name)
		return func() {}
	}
	if err != nil {
		log.Warn("metrics: backend init failed; metrics disabled", "backend", name, "err", err)
		return func() {}
	}
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics: flush failed", "err", err)
		}
	}
}

// pick resolves a setting: flag, then environment, then default.
func pick(flagVal, env, def string) string {
	if flagVal != "" {
		return flagVal
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}
