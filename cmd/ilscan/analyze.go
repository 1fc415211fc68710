package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/ilscan/internal/cache"
	"github.com/panbanda/ilscan/internal/output"
	"github.com/panbanda/ilscan/internal/progress"
	"github.com/panbanda/ilscan/internal/service/analysis"
	"github.com/panbanda/ilscan/pkg/config"
	"github.com/panbanda/ilscan/pkg/rule"
)

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"a"},
		Usage:     "Run rules over metadata snapshots",
		ArgsUsage: "[path...]",
		Description: `Runs the configured rules over every assembly in the given snapshot
files, directories or glob patterns and reports the defects found.

Examples:
  ilscan analyze build/                       # all snapshots below build/
  ilscan analyze -r AvoidUncalledPrivateCode app.snapshot.json
  ilscan -f json analyze --fail 'out/**/*.snapshot.yaml'`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "rule",
				Aliases: []string{"r"},
				Usage:   "Rule to run (repeatable, default: configured rules)",
			},
			&cli.BoolFlag{
				Name:  "fail",
				Usage: "Exit with status 2 when defects are reported",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write Prometheus metrics of the run to file (not written for cached results)",
			},
		},
		Action: runAnalyzeCmd,
	}
}

func runAnalyzeCmd(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	files, err := e.svc.Scan(getPaths(c))
	if errors.Is(err, analysis.ErrNoSnapshots) {
		color.Yellow("No snapshot files found")
		return nil
	}
	if err != nil {
		return err
	}

	result, cached, err := e.analyze(c.Context, files, c.StringSlice("rule"))
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()
	if err := formatter.Output(analyzeReport(result, formatter.Colored())); err != nil {
		return err
	}

	if path := c.String("metrics-file"); path != "" {
		if cached {
			e.logger.Info("metrics file not written for cached result", "path", path)
		} else if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if c.Bool("fail") && result.Outcome == rule.Failure {
		return errDefectsFound
	}
	return nil
}

// analyze runs the rules, reusing a cached result when neither the
// snapshots nor the configuration changed. cached reports whether the
// result came from the cache.
func (e *env) analyze(ctx context.Context, files, rules []string) (res *analysis.AnalyzeResult, cached bool, err error) {
	rc, err := e.cache()
	if err != nil {
		return nil, false, err
	}
	var key string
	if rc.Enabled() {
		fp, err := cache.Fingerprint(struct {
			Analysis     config.AnalysisConfig
			Thresholds   config.ThresholdConfig
			Suppressions []config.SuppressionConfig
			Rules        []string
		}{e.cfg.Analysis, e.cfg.Thresholds, e.cfg.Suppressions, rules})
		if err != nil {
			return nil, false, err
		}
		if key, err = cache.Key("analyze", files, fp); err != nil {
			return nil, false, err
		}
		if data, ok := rc.Get(key); ok {
			var hit analysis.AnalyzeResult
			if err := json.Unmarshal(data, &hit); err == nil {
				e.logger.Debug("using cached result", "files", len(files))
				return &hit, true, nil
			}
			e.logger.Warn("dropping unreadable cache entry", "key", key)
			if err := rc.Invalidate(key); err != nil {
				e.logger.Warn("cache invalidate failed", "error", err)
			}
		}
	}

	snaps, err := e.load(ctx, files)
	if err != nil {
		return nil, false, err
	}

	var tracker *progress.Tracker
	res, err = e.svc.Analyze(ctx, snaps, analysis.AnalyzeOptions{
		Rules: rules,
		OnStart: func(invocations int) {
			tracker = e.tracker("Running rules...", invocations)
		},
		OnProgress: func() {
			tracker.Tick()
		},
	})
	if err != nil {
		tracker.FinishError(err)
		return nil, false, err
	}
	tracker.FinishSuccess()

	if key != "" {
		if data, err := json.Marshal(res); err == nil {
			if err := rc.Set(key, data); err != nil {
				e.logger.Warn("cache write failed", "error", err)
			}
		}
	}
	return res, false, nil
}

func analyzeReport(res *analysis.AnalyzeResult, colored bool) *output.Report {
	outcome := res.Outcome.String()
	if colored && res.Outcome == rule.Failure {
		outcome = color.RedString(outcome)
	}
	parts := []output.Renderable{&output.Summary{
		Title: "Summary",
		Lines: [][2]string{
			{"Snapshots", strconv.Itoa(len(res.Sources))},
			{"Rules", strings.Join(res.Rules, ", ")},
			{"Invocations", strconv.Itoa(res.Summary.Invocations)},
			{"Defects", strconv.Itoa(res.Summary.Defects)},
			{"Suppressed", strconv.Itoa(res.Summary.Suppressed)},
			{"Outcome", outcome},
		},
	}}

	if len(res.Defects) > 0 {
		rows := make([][]string, 0, len(res.Defects))
		for _, d := range res.Defects {
			sev := d.Severity.String()
			if colored {
				sev = output.SeverityColor(sev, sev)
			}
			rows = append(rows, []string{sev, d.Confidence.String(), d.Target, d.Rule, d.Message})
		}
		parts = append(parts, output.NewTable("Defects",
			[]string{"Severity", "Confidence", "Target", "Rule", "Message"}, rows, nil, nil))
	}
	return &output.Report{Title: "Rule Analysis", Parts: parts, Data: res}
}
