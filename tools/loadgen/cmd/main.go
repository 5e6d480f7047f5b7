// Package main provides the CLI entry point for the export load generator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/storefront/tools/loadgen/internal/config"
	"github.com/storefront/tools/loadgen/internal/metrics"
	"github.com/storefront/tools/loadgen/internal/runner"
)

// version is populated at build time
var version = "dev"

func main() {
	var (
		configPath     string
		duration       time.Duration
		qps            float64
		workers        int
		prometheusAddr string
		validate       bool
		showVersion    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration file (default: built-in smoke mix)")
	flag.StringVar(&configPath, "c", "", "Path to the YAML configuration file (shorthand)")
	flag.DurationVar(&duration, "duration", 0, "Override run duration (e.g., 30s, 5m)")
	flag.Float64Var(&qps, "qps", 0, "Override requests per second")
	flag.IntVar(&workers, "workers", 0, "Override number of workers")
	flag.StringVar(&prometheusAddr, "prometheus", "", "Serve Prometheus metrics on this address (e.g., :9091)")
	flag.BoolVar(&validate, "validate", false, "Validate configuration and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("loadgen %s\n", version)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if duration > 0 {
		cfg.Duration = duration
	}
	if qps > 0 {
		cfg.Rate.QPS = qps
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if prometheusAddr != "" {
		cfg.Metrics.Listen = prometheusAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if validate {
		fmt.Printf("Configuration %q is valid (%d endpoints)\n", cfg.Name, len(cfg.Endpoints))
		return
	}

	collector := metrics.NewCollector()
	if cfg.Metrics.Listen != "" {
		srv, err := collector.Serve(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: metrics endpoint: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Prometheus metrics on http://%s%s\n", srv.Addr(), cfg.Metrics.Path)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Running %q against %s for %s at %.1f qps with %d workers\n",
		cfg.Name, cfg.Target.BaseURL, cfg.Duration, cfg.Rate.QPS, cfg.Workers)

	report := runner.New(cfg, collector).Run(ctx)
	printReport(report)

	if _, failures := report.Total(); failures > 0 {
		os.Exit(2)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(path)
}

func printReport(r runner.Report) {
	requests, failures := r.Total()
	fmt.Printf("\nFinished in %s: %d requests, %d failed, %d jobs created\n",
		r.Duration.Round(time.Millisecond), requests, failures, r.JobsAdded)

	names := make([]string, 0, len(r.Endpoints))
	for name := range r.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%-16s %8s %8s %10s %10s\n", "ENDPOINT", "REQS", "FAILED", "AVG", "MAX")
	for _, name := range names {
		s := r.Endpoints[name]
		fmt.Printf("%-16s %8d %8d %10s %10s\n", name, s.Requests, s.Failures,
			s.AvgLatency().Round(time.Millisecond), s.MaxLatency.Round(time.Millisecond))
	}
}
