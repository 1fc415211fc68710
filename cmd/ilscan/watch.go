package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/ilscan/internal/output"
	"github.com/panbanda/ilscan/pkg/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch for snapshot changes and re-analyze",
		ArgsUsage: "[dir]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Value: 500 * time.Millisecond,
				Usage: "Wait this long after the last write before re-analyzing",
			},
			&cli.StringSliceFlag{
				Name:    "rule",
				Aliases: []string{"r"},
				Usage:   "Rule to run (repeatable, default: configured rules)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address, e.g. :9090",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.close()
	e.noCache = true
	e.progress = false

	root, err := filepath.Abs(getPaths(c)[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := c.String("metrics-addr"); addr != "" {
		srv := serveMetrics(e, addr)
		defer srv.Shutdown(context.Background())
	}

	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()

	rules := c.StringSlice("rule")
	run := func(ctx context.Context) {
		if err := e.watchRun(ctx, formatter, root, rules); err != nil && ctx.Err() == nil {
			color.Red("Error: %v", err)
		}
	}

	watcher, err := watch.NewWatcher(root, e.cfg, c.Duration("debounce"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()
	watcher.SetLogger(e.logger)
	watcher.SetCallback(func(ctx context.Context, changed []string) {
		for _, f := range changed {
			e.logger.Debug("changed", "file", f)
		}
		run(ctx)
	})

	run(ctx)
	if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchRun analyzes every snapshot below root with a fresh session.
func (e *env) watchRun(ctx context.Context, f *output.Formatter, root string, rules []string) error {
	files, err := e.svc.Scan([]string{root})
	if err != nil {
		return err
	}
	result, _, err := e.analyze(ctx, files, rules)
	if err != nil {
		return err
	}
	return f.Output(analyzeReport(result, f.Colored()))
}

func serveMetrics(e *env, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server", "addr", addr, "error", err)
		}
	}()
	e.logger.Info("serving metrics", "addr", addr)
	return srv
}
