package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/ilscan/internal/fileproc"
	"github.com/panbanda/ilscan/internal/testutil"
	"github.com/panbanda/ilscan/pkg/config"
	"github.com/panbanda/ilscan/pkg/metadata/snapshot"
	"github.com/panbanda/ilscan/pkg/rule"
)

func newService(t *testing.T, opts ...Option) (*Service, []*snapshot.Snapshot) {
	t.Helper()
	svc := New(append([]Option{WithConfig(config.DefaultConfig())}, opts...)...)
	path := testutil.WriteSnapshot(t, t.TempDir(), "App.snapshot.yaml")
	snaps, err := svc.Load(context.Background(), []string{path}, nil)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	return svc, snaps
}

func TestNew(t *testing.T) {
	svc := New()
	assert.NotNil(t, svc.Config())
	assert.NotNil(t, svc.logger)
	assert.Equal(t, []string{"AvoidUncalledPrivateCode"}, svc.Registry().Names())

	cfg := config.DefaultConfig()
	assert.Same(t, cfg, New(WithConfig(cfg)).Config())
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteSnapshot(t, dir, "a/App.snapshot.yaml")
	testutil.WriteSnapshot(t, dir, "b/Lib.snapshot.yaml")
	testutil.WriteFile(t, filepath.Join(dir, "notes.txt"), "")

	svc := New(WithConfig(config.DefaultConfig()))
	files, err := svc.Scan([]string{dir})
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = svc.Scan([]string{t.TempDir()})
	assert.ErrorIs(t, err, ErrNoSnapshots)
}

func TestLoadReportsFailures(t *testing.T) {
	dir := t.TempDir()
	good := testutil.WriteSnapshot(t, dir, "App.snapshot.yaml")
	bad := filepath.Join(dir, "Bad.snapshot.json")
	testutil.WriteFile(t, bad, "{not json")

	svc := New(WithConfig(config.DefaultConfig()))
	snaps, err := svc.Load(context.Background(), []string{good, bad}, nil)
	require.Error(t, err)
	assert.Len(t, snaps, 1)

	var perrs *fileproc.ProcessingErrors
	require.True(t, errors.As(err, &perrs))
	assert.Equal(t, bad, perrs.Errors[0].Path)
}

func TestLoadRejectsDuplicateAssemblies(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WriteSnapshot(t, dir, "a/App.snapshot.yaml")
	b := testutil.WriteSnapshot(t, dir, "b/App.snapshot.yaml")

	svc := New(WithConfig(config.DefaultConfig()))
	snaps, err := svc.Load(context.Background(), []string{a, b}, nil)
	require.ErrorIs(t, err, ErrDuplicateAssembly)
	assert.ErrorContains(t, err, `"App, Version=1.0.0.0"`)
	assert.Nil(t, snaps)
}

func TestAnalyzeAcrossAssemblyVersions(t *testing.T) {
	dir := t.TempDir()
	v1 := testutil.WriteSnapshot(t, dir, "v1/App.snapshot.yaml")
	v2 := filepath.Join(dir, "v2", "App.snapshot.yaml")
	// In version 2 Run calls Unused instead of Helper.
	body := strings.Replace(testutil.SampleSnapshot, `version: "1.0.0.0"`, `version: "2.0.0.0"`, 1)
	body = strings.Replace(body, `method: {type: "Acme.Service", name: Helper}`, `method: {type: "Acme.Service", name: Unused}`, 1)
	testutil.WriteFile(t, v2, body)

	svc := New(WithConfig(config.DefaultConfig()))
	snaps, err := svc.Load(context.Background(), []string{v1, v2}, nil)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	res, err := svc.Analyze(context.Background(), snaps, AnalyzeOptions{})
	require.NoError(t, err)

	got := make(map[string][]string)
	for _, d := range res.Defects {
		got[d.Assembly] = append(got[d.Assembly], d.Target)
	}
	assert.ElementsMatch(t, testutil.SampleDefects, got["App, Version=1.0.0.0"])
	assert.ElementsMatch(t, []string{
		"System.Void Acme.Service::Helper()",
		"System.Void Acme.Service::Stale()",
	}, got["App, Version=2.0.0.0"])
}

func TestAnalyze(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc, snaps := newService(t, WithRegisterer(reg))

	var total int
	var ticks atomic.Int32
	res, err := svc.Analyze(context.Background(), snaps, AnalyzeOptions{
		OnStart:    func(n int) { total = n },
		OnProgress: func() { ticks.Add(1) },
	})
	require.NoError(t, err)

	assert.Equal(t, 6, total)
	assert.Equal(t, int32(6), ticks.Load())
	assert.Equal(t, rule.Failure, res.Outcome)
	assert.Equal(t, []string{"AvoidUncalledPrivateCode"}, res.Rules)
	assert.Equal(t, []string{snaps[0].Source}, res.Sources)

	var targets []string
	for _, d := range res.Defects {
		targets = append(targets, d.Target)
	}
	assert.Equal(t, testutil.SampleDefects, targets)

	stats := res.Summary.ByRule["AvoidUncalledPrivateCode"]
	assert.Equal(t, 1, stats.NotApplicable)
	assert.Equal(t, 3, stats.Success)
	assert.Equal(t, 2, stats.Failure)
}

func TestAnalyzeSequentialMatchesParallel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Analysis.Parallel = false
	seq, snaps := newService(t, WithConfig(cfg))
	par := New(WithConfig(config.DefaultConfig()))

	a, err := seq.Analyze(context.Background(), snaps, AnalyzeOptions{})
	require.NoError(t, err)
	b, err := par.Analyze(context.Background(), snaps, AnalyzeOptions{})
	require.NoError(t, err)
	assert.Equal(t, a.Defects, b.Defects)
	assert.Equal(t, a.Summary, b.Summary)
}

func TestAnalyzeSuppressions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Suppressions = []config.SuppressionConfig{{Rule: "AvoidUncalledPrivateCode", Target: "**::Stale()"}}
	svc, snaps := newService(t, WithConfig(cfg))

	res, err := svc.Analyze(context.Background(), snaps, AnalyzeOptions{})
	require.NoError(t, err)
	require.Len(t, res.Defects, 1)
	assert.Equal(t, testutil.SampleDefects[1], res.Defects[0].Target)
	assert.Equal(t, 1, res.Summary.Suppressed)
}

func TestAnalyzeUnknownRule(t *testing.T) {
	svc, snaps := newService(t)
	_, err := svc.Analyze(context.Background(), snaps, AnalyzeOptions{Rules: []string{"Nope"}})
	assert.ErrorContains(t, err, `unknown rule "Nope"`)
}

func TestReachability(t *testing.T) {
	svc, snaps := newService(t)
	a, err := svc.Reachability(context.Background(), snaps)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Summary.UnreachableMethods)
	require.Len(t, a.Types, 1)
	assert.Equal(t, "Acme.Service", a.Types[0].Type)
}

func TestCallGraph(t *testing.T) {
	svc, snaps := newService(t)
	report, err := svc.CallGraph(context.Background(), snaps, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, report.Methods)
	assert.Equal(t, 3, report.Edges)
	assert.Equal(t, 4, report.Reachable)
	assert.ElementsMatch(t, testutil.SampleDefects, report.Unreachable)
}

func TestInspect(t *testing.T) {
	svc, snaps := newService(t)

	all := svc.Inspect(snaps, "")
	assert.Len(t, all.Types, 2)
	require.Len(t, all.Links, 1)

	res := svc.Inspect(snaps, "Acme.Program")
	require.Len(t, res.Types, 1)
	main := res.Types[0].Methods[0]
	assert.True(t, main.EntryPoint)
	assert.False(t, main.Visible)

	assert.Equal(t, "App, Version=1.0.0.0", res.Types[0].Assembly)
	assert.Equal(t, []string{
		"[App, Version=1.0.0.0]Acme.Service::.ctor():System.Void",
		"[App, Version=1.0.0.0]Acme.Service::Run():System.Void",
	}, res.Types[0].Calls)

	svcFacts := svc.Inspect(snaps, "Acme.Service").Types[0]
	assert.True(t, svcFacts.Visible)
	assert.Equal(t, []string{"[App, Version=1.0.0.0]Acme.Service::Helper():System.Void"}, svcFacts.Calls)
	for _, m := range svcFacts.Methods {
		if m.Method == testutil.SampleDefects[0] {
			assert.Equal(t, "unreachable", m.Verdict.Status.String())
		}
	}
}
