package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/panbanda/ilscan/internal/cache"
	"github.com/panbanda/ilscan/internal/testutil"
	"github.com/panbanda/ilscan/pkg/config"
)

// run executes the app with args and returns what it wrote to App.Writer.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"ilscan"}, args...))
	return buf.String(), err
}

// snapshotDir writes the sample snapshot and a config whose cache lives in
// the same temp dir.
func snapshotDir(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	testutil.WriteSnapshot(t, filepath.Join(dir, "snaps"), "app.snapshot.yaml")
	cfgPath = filepath.Join(dir, "ilscan.toml")
	testutil.WriteFile(t, cfgPath, "[cache]\nenabled = true\ndir = \""+filepath.ToSlash(filepath.Join(dir, "cache"))+"\"\nttl = 1\n")
	return dir, cfgPath
}

func TestGetPaths(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"no args defaults to current dir", []string{}, []string{"."}},
		{"single path", []string{"/foo/bar"}, []string{"/foo/bar"}},
		{"multiple paths", []string{"/foo", "/bar"}, []string{"/foo", "/bar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &cli.App{
				Action: func(c *cli.Context) error {
					result := getPaths(c)
					if len(result) != len(tt.expected) {
						t.Errorf("getPaths() = %v, want %v", result, tt.expected)
						return nil
					}
					for i := range result {
						if result[i] != tt.expected[i] {
							t.Errorf("getPaths()[%d] = %q, want %q", i, result[i], tt.expected[i])
						}
					}
					return nil
				},
			}
			_ = app.Run(append([]string{"test"}, tt.args...))
		})
	}
}

func TestAnalyzeJSON(t *testing.T) {
	dir, cfgPath := snapshotDir(t)
	out := filepath.Join(dir, "out.json")

	if _, err := run(t, "-c", cfgPath, "--no-cache", "--no-progress", "-f", "json", "-o", out, "analyze", filepath.Join(dir, "snaps")); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	var got struct {
		Outcome string `json:"outcome"`
		Defects []struct {
			Target string `json:"target"`
			Rule   string `json:"rule"`
		} `json:"defects"`
	}
	if err := json.Unmarshal([]byte(testutil.ReadFile(t, out)), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got.Outcome != "failure" {
		t.Errorf("outcome = %q, want failure", got.Outcome)
	}
	if len(got.Defects) != len(testutil.SampleDefects) {
		t.Fatalf("got %d defects, want %d", len(got.Defects), len(testutil.SampleDefects))
	}
	for i, d := range got.Defects {
		if d.Target != testutil.SampleDefects[i] {
			t.Errorf("defect %d target = %q, want %q", i, d.Target, testutil.SampleDefects[i])
		}
		if d.Rule != "AvoidUncalledPrivateCode" {
			t.Errorf("defect %d rule = %q", i, d.Rule)
		}
	}
}

func TestAnalyzeText(t *testing.T) {
	dir, cfgPath := snapshotDir(t)
	out := filepath.Join(dir, "out.txt")

	if _, err := run(t, "-c", cfgPath, "--no-cache", "--no-progress", "-o", out, "analyze", filepath.Join(dir, "snaps")); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	text := testutil.ReadFile(t, out)
	for _, want := range []string{"Rule Analysis", "Outcome:", "failure", "Acme.Service::Stale()"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestAnalyzeFail(t *testing.T) {
	dir, cfgPath := snapshotDir(t)
	_, err := run(t, "-c", cfgPath, "--no-cache", "--no-progress", "-o", filepath.Join(dir, "out.txt"), "analyze", "--fail", filepath.Join(dir, "snaps"))
	if !errors.Is(err, errDefectsFound) {
		t.Fatalf("expected errDefectsFound, got %v", err)
	}
}

func TestAnalyzeUsesCache(t *testing.T) {
	dir, cfgPath := snapshotDir(t)
	args := []string{"-c", cfgPath, "--no-progress", "-f", "json", "-o", filepath.Join(dir, "out.json"), "analyze", filepath.Join(dir, "snaps")}

	if _, err := run(t, args...); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first := testutil.ReadFile(t, filepath.Join(dir, "out.json"))

	rc, err := cache.New(filepath.Join(dir, "cache"), 1, true)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := rc.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Fatalf("cache entries = %d, want 1", stats.Entries)
	}

	if _, err := run(t, args...); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second := testutil.ReadFile(t, filepath.Join(dir, "out.json")); second != first {
		t.Errorf("cached output differs:\nfirst:  %s\nsecond: %s", first, second)
	}

	out, err := run(t, "-c", cfgPath, "cache", "stats")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Entries: 1") {
		t.Errorf("unexpected cache stats: %s", out)
	}
}

func TestAnalyzeMetricsFile(t *testing.T) {
	dir, cfgPath := snapshotDir(t)
	metrics := filepath.Join(dir, "metrics.prom")
	if _, err := run(t, "-c", cfgPath, "--no-cache", "--no-progress", "-o", filepath.Join(dir, "out.txt"),
		"analyze", "--metrics-file", metrics, filepath.Join(dir, "snaps")); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	text := testutil.ReadFile(t, metrics)
	if !strings.Contains(text, "ilscan_rule_invocations_total") {
		t.Errorf("metrics file missing invocation counter:\n%s", text)
	}
}

func TestAnalyzeMetricsFileSkippedOnCacheHit(t *testing.T) {
	dir, cfgPath := snapshotDir(t)
	metrics := filepath.Join(dir, "metrics.prom")
	args := []string{"-c", cfgPath, "--no-progress", "-o", filepath.Join(dir, "out.txt"),
		"analyze", "--metrics-file", metrics, filepath.Join(dir, "snaps")}

	if _, err := run(t, args...); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if _, err := os.Stat(metrics); err != nil {
		t.Fatalf("first run did not write metrics: %v", err)
	}
	if err := os.Remove(metrics); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, args...); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if _, err := os.Stat(metrics); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("metrics file written for cached result: %v", err)
	}
}

func TestAnalyzeRecomputesUnreadableCacheEntry(t *testing.T) {
	dir, cfgPath := snapshotDir(t)
	out := filepath.Join(dir, "out.json")
	args := []string{"-c", cfgPath, "--no-progress", "-f", "json", "-o", out, "analyze", filepath.Join(dir, "snaps")}

	if _, err := run(t, args...); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first := testutil.ReadFile(t, out)

	entries, err := filepath.Glob(filepath.Join(dir, "cache", "*.json"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("cache entries = %v, %v", entries, err)
	}
	var entry cache.Entry
	if err := json.Unmarshal([]byte(testutil.ReadFile(t, entries[0])), &entry); err != nil {
		t.Fatal(err)
	}
	entry.Data = []byte("{broken")
	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, entries[0], string(data))

	if _, err := run(t, args...); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second := testutil.ReadFile(t, out); second != first {
		t.Errorf("recomputed output differs:\nfirst:  %s\nsecond: %s", first, second)
	}
	if err := json.Unmarshal([]byte(testutil.ReadFile(t, entries[0])), &entry); err != nil {
		t.Fatal(err)
	}
	if !json.Valid(entry.Data) {
		t.Errorf("cache entry not rewritten: %s", entry.Data)
	}
}

func TestAnalyzeRejectsBadFormat(t *testing.T) {
	_, cfgPath := snapshotDir(t)
	if _, err := run(t, "-c", cfgPath, "-f", "yaml", "analyze"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestReachabilityMarkdown(t *testing.T) {
	dir, cfgPath := snapshotDir(t)
	out := filepath.Join(dir, "out.md")
	if _, err := run(t, "-c", cfgPath, "--no-progress", "-f", "markdown", "-o", out, "reachability", "--items", filepath.Join(dir, "snaps")); err != nil {
		t.Fatalf("reachability failed: %v", err)
	}
	text := testutil.ReadFile(t, out)
	for _, want := range []string{"# Reachability", "| Acme.Service |", "unused-private"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestInspect(t *testing.T) {
	dir, cfgPath := snapshotDir(t)
	out := filepath.Join(dir, "out.txt")
	if _, err := run(t, "-c", cfgPath, "--no-progress", "-o", out, "inspect", "--type", "Acme.Program", filepath.Join(dir, "snaps")); err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if text := testutil.ReadFile(t, out); !strings.Contains(text, "entry-point") {
		t.Errorf("expected entry-point fact:\n%s", text)
	}

	_, err := run(t, "-c", cfgPath, "--no-progress", "-o", out, "inspect", "--type", "Acme.Missing", filepath.Join(dir, "snaps"))
	if err == nil || !strings.Contains(err.Error(), `"Acme.Missing" not found`) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestGraphJSON(t *testing.T) {
	dir, cfgPath := snapshotDir(t)
	out := filepath.Join(dir, "out.json")
	if _, err := run(t, "-c", cfgPath, "--no-progress", "-f", "json", "-o", out, "graph", "--top", "2", filepath.Join(dir, "snaps")); err != nil {
		t.Fatalf("graph failed: %v", err)
	}
	var got struct {
		Methods   int `json:"methods"`
		TopRanked []struct {
			Method string `json:"method"`
		} `json:"top_ranked"`
	}
	if err := json.Unmarshal([]byte(testutil.ReadFile(t, out)), &got); err != nil {
		t.Fatal(err)
	}
	if got.Methods != 6 {
		t.Errorf("methods = %d, want 6", got.Methods)
	}
	if len(got.TopRanked) != 2 {
		t.Errorf("top ranked = %d, want 2", len(got.TopRanked))
	}
}

func TestNoSnapshots(t *testing.T) {
	_, cfgPath := snapshotDir(t)
	if _, err := run(t, "-c", cfgPath, "--no-progress", "analyze", t.TempDir()); err != nil {
		t.Fatalf("empty directory should not fail: %v", err)
	}
}

func TestConfigCommands(t *testing.T) {
	dir, cfgPath := snapshotDir(t)

	out, err := run(t, "-c", cfgPath, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "# Configuration from: "+cfgPath) {
		t.Errorf("missing source line:\n%s", out)
	}
	if !strings.Contains(out, "parallel = true") {
		t.Errorf("missing analysis defaults:\n%s", out)
	}

	if _, err := run(t, "-c", cfgPath, "config", "validate"); err != nil {
		t.Errorf("validate failed: %v", err)
	}

	bad := filepath.Join(dir, "bad.toml")
	testutil.WriteFile(t, bad, "[thresholds]\nmin_severity = \"urgent\"\n")
	if _, err := run(t, "-c", bad, "config", "validate"); err == nil {
		t.Error("expected validation error")
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "ilscan.toml")
	if _, err := run(t, "init", "--path", path); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.Graph.Top != config.DefaultConfig().Graph.Top {
		t.Errorf("graph.top = %d", cfg.Graph.Top)
	}

	if _, err := run(t, "init", "--path", path); err == nil {
		t.Error("expected error when config exists")
	}
	if _, err := run(t, "init", "--path", path, "--force"); err != nil {
		t.Errorf("init --force failed: %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	ctx := context.Background()
	if newLogger(io.Discard, false).Enabled(ctx, slog.LevelDebug) {
		t.Error("debug enabled without verbose")
	}
	if !newLogger(io.Discard, true).Enabled(ctx, slog.LevelDebug) {
		t.Error("debug disabled with verbose")
	}
}

func TestSlogExporter(t *testing.T) {
	var buf bytes.Buffer
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(&slogExporter{logger: newLogger(&buf, false)}))
	_, span := tp.Tracer("test").Start(context.Background(), "rule.Runner.Run")
	span.End()
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "span=rule.Runner.Run") {
		t.Errorf("span not logged: %s", buf.String())
	}
}

func TestMCPManifest(t *testing.T) {
	// The manifest goes to stdout; swap it for a pipe.
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout := os.Stdout
	os.Stdout = w
	_, runErr := run(t, "mcp", "--manifest")
	os.Stdout = stdout
	w.Close()
	data, _ := io.ReadAll(r)
	if runErr != nil {
		t.Fatal(runErr)
	}
	if !strings.Contains(string(data), `"io.github.panbanda/ilscan"`) {
		t.Errorf("unexpected manifest: %s", data)
	}
}
