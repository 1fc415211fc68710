package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/panbanda/ilscan/internal/cache"
	"github.com/panbanda/ilscan/internal/output"
	"github.com/panbanda/ilscan/internal/progress"
	"github.com/panbanda/ilscan/internal/service/analysis"
	"github.com/panbanda/ilscan/pkg/config"
	"github.com/panbanda/ilscan/pkg/metadata/snapshot"
)

// env is the per-invocation state shared by the commands: the effective
// config, the logger, and the analysis service wired to them.
type env struct {
	cfg      *config.Config
	source   string
	logger   *slog.Logger
	registry *prometheus.Registry
	tp       *sdktrace.TracerProvider
	svc      *analysis.Service

	noCache  bool
	progress bool
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newEnv(c *cli.Context) (*env, error) {
	res, err := config.LoadFrom(c.String("config"))
	if err != nil {
		return nil, err
	}
	cfg := res.Config
	if f := c.String("format"); f != "" {
		cfg.Output.Format = f
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger := newLogger(os.Stderr, c.Bool("verbose") || cfg.Output.Verbose)
	slog.SetDefault(logger)

	e := &env{
		cfg:      cfg,
		source:   res.Source,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		noCache:  c.Bool("no-cache"),
		progress: !c.Bool("no-progress"),
	}
	opts := []analysis.Option{
		analysis.WithConfig(cfg),
		analysis.WithLogger(logger),
		analysis.WithRegisterer(e.registry),
	}
	if c.Bool("trace") {
		e.tp = sdktrace.NewTracerProvider(sdktrace.WithSyncer(&slogExporter{logger: logger}))
		opts = append(opts, analysis.WithTracerProvider(e.tp))
	}
	e.svc = analysis.New(opts...)

	if res.Source != "" {
		logger.Debug("loaded config", "path", res.Source)
	}
	return e, nil
}

func (e *env) close() {
	if e.tp != nil {
		if err := e.tp.Shutdown(context.Background()); err != nil {
			e.logger.Warn("trace shutdown", "error", err)
		}
	}
}

func (e *env) formatter(c *cli.Context) (*output.Formatter, error) {
	return output.NewFormatter(output.ParseFormat(e.cfg.Output.Format), c.String("output"), e.cfg.Output.Color)
}

func (e *env) cache() (*cache.Cache, error) {
	return cache.New(e.cfg.Cache.Dir, e.cfg.Cache.TTL, e.cfg.Cache.Enabled && !e.noCache)
}

func (e *env) tracker(label string, total int) *progress.Tracker {
	if !e.progress {
		return nil
	}
	return progress.NewTracker(label, total)
}

// load decodes files. A single failed file fails the whole load.
func (e *env) load(ctx context.Context, files []string) ([]*snapshot.Snapshot, error) {
	tracker := e.tracker("Loading snapshots...", len(files))
	snaps, err := e.svc.Load(ctx, files, tracker.Func())
	if err != nil {
		tracker.FinishError(err)
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	tracker.FinishSuccess()
	return snaps, nil
}

// slogExporter writes finished spans to the logger.
type slogExporter struct {
	logger *slog.Logger
}

func (x *slogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		args := []any{"span", s.Name(), "duration", s.EndTime().Sub(s.StartTime())}
		for _, kv := range s.Attributes() {
			args = append(args, string(kv.Key), kv.Value.Emit())
		}
		if st := s.Status(); st.Description != "" {
			args = append(args, "status", st.Description)
		}
		x.logger.InfoContext(ctx, "trace", args...)
	}
	return nil
}

func (x *slogExporter) Shutdown(context.Context) error {
	return nil
}
