// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/oomdp/pkg/dp"
	"github.com/AleutianAI/oomdp/pkg/logging"
	"github.com/AleutianAI/oomdp/pkg/telemetry"
	"github.com/AleutianAI/oomdp/pkg/ux"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath     string
	logLevel       string
	logFormat      string
	logDir         string
	traceExporter  string
	metricExporter string
	metricsAddr    string
	gamma          float64
	maxDelta       float64
	maxIterations  int

	grid gridFlags

	cfg      dp.Config
	logger   *logging.Logger
	metrics  *telemetry.Metrics
	shutdown func(context.Context) error
	server   *http.Server
	out      *ux.Printer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "oodp",
		Short:         "Tabular dynamic programming planners for grid-world OO-MDPs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "planner config file (YAML or JSON)")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json (default: text on a terminal)")
	pf.StringVar(&a.logDir, "log-dir", "", "also write JSON logs to this directory")
	pf.StringVar(&a.traceExporter, "trace-exporter", telemetry.ExporterNone, "trace exporter: otlp, stdout, none")
	pf.StringVar(&a.metricExporter, "metric-exporter", telemetry.ExporterNone, "metric exporter: prometheus, stdout, none")
	pf.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	pf.Float64Var(&a.gamma, "gamma", 0, "discount factor (overrides config)")
	pf.Float64Var(&a.maxDelta, "max-delta", 0, "convergence threshold (overrides config)")
	pf.IntVar(&a.maxIterations, "max-iterations", 0, "sweep cap (overrides config)")
	a.grid.register(root)

	root.AddCommand(
		newSolveCmd(a),
		newReachCmd(a),
		newRolloutCmd(a),
		newIRLCmd(a),
	)
	return root
}

// setup loads configuration and starts logging and telemetry.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := dp.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("gamma") {
		cfg.Gamma = a.gamma
	}
	if flags.Changed("max-delta") {
		cfg.MaxDelta = a.maxDelta
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations = a.maxIterations
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		Format:  logging.Format(a.logFormat),
		LogDir:  a.logDir,
		Service: "oodp",
		Output:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(a.logger.Slog())
	a.out = ux.NewPrinter(cmd.OutOrStdout())

	tcfg := telemetry.DefaultConfig()
	tcfg.TraceExporter = a.traceExporter
	tcfg.MetricExporter = a.metricExporter
	if a.metricsAddr != "" && tcfg.MetricExporter == telemetry.ExporterNone {
		tcfg.MetricExporter = telemetry.ExporterPrometheus
	}
	if tcfg.TraceExporter == telemetry.ExporterNone {
		a.cfg.Observability.TracingEnabled = false
	}
	a.shutdown, err = telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.metrics, err = telemetry.NewMetrics(otel.Meter("github.com/AleutianAI/oomdp"))
	if err != nil {
		return err
	}

	if a.metricsAddr != "" {
		if err := a.serveMetrics(); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) serveMetrics() error {
	handler := telemetry.MetricsHandler()
	if handler == nil {
		return errors.New("metrics endpoint requires the prometheus exporter")
	}
	ln, err := net.Listen("tcp", a.metricsAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.metricsAddr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Slog().Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}()
	a.logger.Slog().Info("serving metrics", slog.String("addr", ln.Addr().String()))
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var errs []error
	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}

// engineOptions are the dp options every planner gets.
func (a *app) engineOptions() []dp.Option {
	return []dp.Option{dp.WithLogger(a.logger.Slog())}
}

// record reports a finished run to the run metrics.
func (a *app) record(ctx context.Context, planner string, start time.Time, states int, err error) {
	a.metrics.RecordRun(ctx, planner, time.Since(start), states, err)
}
