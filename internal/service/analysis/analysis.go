// Package analysis wires scanning, snapshot loading, the rule runner and
// the supplementary analyzers behind one service used by the CLI, the
// watcher and the MCP server.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/panbanda/ilscan/internal/fileproc"
	"github.com/panbanda/ilscan/internal/scanner"
	"github.com/panbanda/ilscan/pkg/analyzer/callgraph"
	"github.com/panbanda/ilscan/pkg/analyzer/deadcode"
	"github.com/panbanda/ilscan/pkg/config"
	"github.com/panbanda/ilscan/pkg/metadata"
	"github.com/panbanda/ilscan/pkg/metadata/snapshot"
	"github.com/panbanda/ilscan/pkg/rule"
)

// ErrNoSnapshots is returned when the given paths contain no snapshot
// files.
var ErrNoSnapshots = errors.New("no snapshot files found")

// ErrDuplicateAssembly is returned when two loaded assemblies share a name
// and version.
var ErrDuplicateAssembly = errors.New("duplicate assembly")

// DefaultRegistry returns the built-in rule catalog.
func DefaultRegistry() *rule.Registry {
	return rule.NewRegistry(deadcode.NewRule())
}

// Service orchestrates analysis operations.
type Service struct {
	config         *config.Config
	logger         *slog.Logger
	registry       *rule.Registry
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithLogger sets the logger handed to rule runs.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithRegistry replaces the built-in rule catalog.
func WithRegistry(r *rule.Registry) Option {
	return func(s *Service) {
		s.registry = r
	}
}

// WithRegisterer registers rule run metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Service) {
		s.registerer = reg
	}
}

// WithTracerProvider traces rule runs with tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracerProvider = tp
	}
}

// New creates a new analysis service.
func New(opts ...Option) *Service {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	if s.config == nil {
		s.config = config.LoadOrDefault()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.registry == nil {
		s.registry = DefaultRegistry()
	}
	return s
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// Registry returns the rule catalog.
func (s *Service) Registry() *rule.Registry {
	return s.registry
}

// Scan expands paths into snapshot files. No paths means the current
// directory.
func (s *Service) Scan(paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	files, err := scanner.NewScanner(s.config).Expand(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoSnapshots
	}
	return files, nil
}

// Load decodes files in parallel. Snapshots that loaded are returned even
// when others failed; the error then lists every failure. Assemblies with
// the same identity in two places fail the whole load.
func (s *Service) Load(ctx context.Context, files []string, onProgress func()) ([]*snapshot.Snapshot, error) {
	snaps, errs := fileproc.LoadSnapshots(ctx, files, s.workers(), onProgress)
	if err := uniqueAssemblies(snaps); err != nil {
		if errs != nil {
			return nil, errors.Join(err, errs)
		}
		return nil, err
	}
	for _, snap := range snaps {
		if n := snap.Stats.UnresolvedTypeRefs + snap.Stats.UnresolvedMethodRefs; n > 0 {
			s.logger.Warn("unresolved references", "snapshot", snap.Source, "count", n)
		}
	}
	if errs != nil {
		return snaps, errs
	}
	return snaps, nil
}

func (s *Service) workers() int {
	if !s.config.Analysis.Parallel {
		return 1
	}
	return fileproc.Workers(s.config.Analysis.Workers)
}

// Assemblies flattens the assemblies of snaps.
func Assemblies(snaps []*snapshot.Snapshot) []*metadata.Assembly {
	var out []*metadata.Assembly
	for _, snap := range snaps {
		out = append(out, snap.Assemblies...)
	}
	return out
}

func uniqueAssemblies(snaps []*snapshot.Snapshot) error {
	seen := make(map[metadata.AssemblyID]string)
	var errs []error
	for _, snap := range snaps {
		for _, asm := range snap.Assemblies {
			id := asm.ID()
			if prev, ok := seen[id]; ok {
				errs = append(errs, fmt.Errorf("%w %q: %s and %s", ErrDuplicateAssembly, id, prev, snap.Source))
				continue
			}
			seen[id] = snap.Source
		}
	}
	return errors.Join(errs...)
}

// AnalyzeOptions configures a rule run.
type AnalyzeOptions struct {
	// Rules overrides the configured rule selection.
	Rules []string
	// OnStart receives the number of invocations before the run starts.
	OnStart func(invocations int)
	// OnProgress is called after every invocation, possibly concurrently.
	OnProgress func()
}

// AnalyzeResult is the outcome of one rule run.
type AnalyzeResult struct {
	Sources []string      `json:"sources" toon:"sources"`
	Rules   []string      `json:"rules" toon:"rules"`
	Outcome rule.Outcome  `json:"outcome" toon:"outcome"`
	Summary rule.Summary  `json:"summary" toon:"summary"`
	Defects []rule.Defect `json:"defects" toon:"defects"`
}

// Runner builds a rule runner for the named rules, or the configured
// selection when names is empty.
func (s *Service) Runner(names []string, onProgress func()) (*rule.Runner, error) {
	if len(names) == 0 {
		names = s.config.Analysis.Rules
	}
	rules, err := s.registry.Select(names, s.config.Analysis.Disabled)
	if err != nil {
		return nil, err
	}
	sup, err := s.config.Suppressor()
	if err != nil {
		return nil, fmt.Errorf("suppressions: %w", err)
	}

	opts := []rule.Option{
		rule.WithWorkers(s.workers()),
		rule.WithSuppressor(sup),
		rule.WithLogger(s.logger),
		rule.WithProgress(onProgress),
	}
	if s.registerer != nil {
		opts = append(opts, rule.WithRegisterer(s.registerer))
	}
	if s.tracerProvider != nil {
		opts = append(opts, rule.WithTracerProvider(s.tracerProvider))
	}
	return rule.NewRunner(rules, opts...)
}

// Analyze runs the selected rules over every assembly of snaps. Each call
// uses a fresh session.
func (s *Service) Analyze(ctx context.Context, snaps []*snapshot.Snapshot, opts AnalyzeOptions) (*AnalyzeResult, error) {
	runner, err := s.Runner(opts.Rules, opts.OnProgress)
	if err != nil {
		return nil, err
	}
	asms := Assemblies(snaps)
	if opts.OnStart != nil {
		opts.OnStart(runner.Invocations(asms...))
	}

	res, err := runner.Run(ctx, asms...)
	if err != nil {
		return nil, err
	}

	out := &AnalyzeResult{
		Outcome: res.Outcome(),
		Summary: res.Summary(),
		Defects: res.Defects(),
	}
	for _, snap := range snaps {
		out.Sources = append(out.Sources, snap.Source)
	}
	for _, rl := range runner.Rules() {
		out.Rules = append(out.Rules, rl.Name())
	}
	return out, nil
}

// Reachability classifies every method of snaps and summarizes the
// unreachable ones per type.
func (s *Service) Reachability(ctx context.Context, snaps []*snapshot.Snapshot) (*deadcode.Analysis, error) {
	return deadcode.Analyze(ctx, Assemblies(snaps)...)
}

// CallGraph builds and summarizes the method call graph of snaps. A top of
// zero uses the configured value.
func (s *Service) CallGraph(ctx context.Context, snaps []*snapshot.Snapshot, top int) (*callgraph.Report, error) {
	if top <= 0 {
		top = s.config.Graph.Top
	}
	g := callgraph.Build(Assemblies(snaps)...)
	return callgraph.Analyze(ctx, g,
		callgraph.WithTop(top),
		callgraph.WithDamping(s.config.Graph.Damping),
	)
}
