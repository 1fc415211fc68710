package rule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/panbanda/ilscan/pkg/metadata"
)

const tracerName = "github.com/panbanda/ilscan/pkg/rule"

// Runner applies a fixed set of rules to assemblies.
type Runner struct {
	rules         []Rule
	assemblyRules []AssemblyRule
	typeRules     []TypeRule
	methodRules   []MethodRule

	workers    int
	suppressor Suppressor
	logger     *slog.Logger
	registerer prometheus.Registerer
	tracer     trace.Tracer
	onProgress func()
	metrics    *metrics
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the number of concurrent invocations. Values below two
// run every invocation on the calling goroutine.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithSuppressor drops matching defects before they reach the result.
func WithSuppressor(s Suppressor) Option {
	return func(r *Runner) {
		r.suppressor = s
	}
}

// WithLogger sets the logger passed to sessions and rules.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithRegisterer registers run counters with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Runner) {
		r.registerer = reg
	}
}

// WithTracerProvider sets the provider used for run spans. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runner) {
		r.tracer = tp.Tracer(tracerName)
	}
}

// WithProgress calls fn after every invocation. With more than one worker
// fn is called concurrently.
func WithProgress(fn func()) Option {
	return func(r *Runner) {
		r.onProgress = fn
	}
}

// NewRunner creates a runner for rules. Every rule must implement at least
// one of AssemblyRule, TypeRule and MethodRule, and names must be unique.
func NewRunner(rules []Rule, opts ...Option) (*Runner, error) {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}

	seen := make(map[string]bool, len(rules))
	for _, rl := range rules {
		name := rl.Name()
		if seen[name] {
			return nil, fmt.Errorf("duplicate rule %q", name)
		}
		seen[name] = true

		matched := false
		if ar, ok := rl.(AssemblyRule); ok {
			r.assemblyRules = append(r.assemblyRules, ar)
			matched = true
		}
		if tr, ok := rl.(TypeRule); ok {
			r.typeRules = append(r.typeRules, tr)
			matched = true
		}
		if mr, ok := rl.(MethodRule); ok {
			r.methodRules = append(r.methodRules, mr)
			matched = true
		}
		if !matched {
			return nil, fmt.Errorf("rule %q inspects no targets", name)
		}
		r.rules = append(r.rules, rl)
	}

	m, err := newMetrics(r.registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	r.metrics = m
	return r, nil
}

// Rules returns the runner's rules.
func (r *Runner) Rules() []Rule {
	return r.rules
}

// Invocations returns how many rule invocations a run over assemblies
// performs.
func (r *Runner) Invocations(assemblies ...*metadata.Assembly) int {
	n := 0
	for _, a := range assemblies {
		n += len(r.assemblyRules)
		for t := range a.Types() {
			n += len(r.typeRules) + len(t.Methods)*len(r.methodRules)
		}
	}
	return n
}

// Run applies every rule to every assembly, type and method. Each run gets
// a fresh Session whose caches are cleared before Run returns.
//
// An InternalError from any invocation aborts the run and is returned
// together with the partial result.
func (r *Runner) Run(ctx context.Context, assemblies ...*metadata.Assembly) (res *Result, err error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "rule.Runner.Run", trace.WithAttributes(
		attribute.Int("assemblies", len(assemblies)),
		attribute.Int("rules", len(r.rules)),
		attribute.Int("workers", r.workers),
	))
	defer span.End()

	sess := NewSession(r.logger)
	res = newResult()

	defer func() {
		if terr := r.tearDown(sess); terr != nil && err == nil {
			err = terr
		}
		sess.Close()
		res.sort()
		r.metrics.observeRun(start)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.logger.Error("rule run aborted", "error", err)
			return
		}
		sum := res.Summary()
		span.SetAttributes(
			attribute.Int("defects", sum.Defects),
			attribute.Int("suppressed", sum.Suppressed),
		)
		r.logger.Debug("rule run finished",
			"invocations", sum.Invocations,
			"defects", sum.Defects,
			"suppressed", sum.Suppressed,
			"duration", time.Since(start))
	}()

	if err := r.setup(sess); err != nil {
		return res, err
	}
	for _, asm := range assemblies {
		if err := r.runAssembly(ctx, sess, res, asm); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (r *Runner) setup(sess *Session) (err error) {
	var current Rule
	defer func() {
		if p := recover(); p != nil {
			err = &InternalError{Rule: current.Name(), Err: errors.New("setup"), Panic: p}
		}
	}()
	for _, rl := range r.rules {
		current = rl
		su, ok := rl.(SetupRule)
		if !ok {
			continue
		}
		if serr := su.Setup(sess); serr != nil {
			return fmt.Errorf("setup %s: %w", rl.Name(), serr)
		}
	}
	return nil
}

// tearDown calls TearDown on every rule in reverse order. A panicking
// TearDown does not prevent the others from running.
func (r *Runner) tearDown(sess *Session) error {
	var first error
	for i := len(r.rules) - 1; i >= 0; i-- {
		td, ok := r.rules[i].(TearDownRule)
		if !ok {
			continue
		}
		if err := r.tearDownOne(r.rules[i], td, sess); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *Runner) tearDownOne(rl Rule, td TearDownRule, sess *Session) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &InternalError{Rule: rl.Name(), Err: errors.New("teardown"), Panic: p}
		}
	}()
	td.TearDown(sess)
	return nil
}

type invocation struct {
	rule   Rule
	target metadata.Entity
	check  func(c *Context) (Outcome, error)
}

func (r *Runner) plan(asm *metadata.Assembly) []invocation {
	var jobs []invocation
	for _, rl := range r.assemblyRules {
		jobs = append(jobs, invocation{rule: rl, target: asm, check: func(c *Context) (Outcome, error) {
			return rl.CheckAssembly(c, asm)
		}})
	}
	for t := range asm.Types() {
		for _, rl := range r.typeRules {
			jobs = append(jobs, invocation{rule: rl, target: t, check: func(c *Context) (Outcome, error) {
				return rl.CheckType(c, t)
			}})
		}
		for _, m := range t.Methods {
			for _, rl := range r.methodRules {
				jobs = append(jobs, invocation{rule: rl, target: m, check: func(c *Context) (Outcome, error) {
					return rl.CheckMethod(c, m)
				}})
			}
		}
	}
	return jobs
}

func (r *Runner) runAssembly(ctx context.Context, sess *Session, res *Result, asm *metadata.Assembly) error {
	ctx, span := r.tracer.Start(ctx, "rule.Runner.assembly", trace.WithAttributes(
		attribute.String("assembly", asm.Name),
	))
	defer span.End()

	jobs := r.plan(asm)
	span.SetAttributes(attribute.Int("invocations", len(jobs)))

	if r.workers < 2 {
		for _, j := range jobs {
			if err := r.invoke(ctx, sess, res, j); err != nil {
				return err
			}
		}
		return nil
	}

	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(r.workers)
	for _, j := range jobs {
		p.Go(func(ctx context.Context) error {
			return r.invoke(ctx, sess, res, j)
		})
	}
	return p.Wait()
}

// invoke runs one rule against one target. Panics and errors become
// InternalErrors, as does an outcome that disagrees with what the rule
// reported.
func (r *Runner) invoke(ctx context.Context, sess *Session, res *Result, j invocation) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := j.rule.Name()
	c := &Context{ctx: ctx, session: sess, rule: j.rule, runner: r, result: res}

	defer func() {
		if p := recover(); p != nil {
			err = &InternalError{Rule: name, Target: j.target.FullName(), Panic: p}
		}
		if r.onProgress != nil {
			r.onProgress()
		}
	}()

	outcome, cerr := j.check(c)
	if cerr != nil {
		if errors.Is(cerr, context.Canceled) || errors.Is(cerr, context.DeadlineExceeded) {
			return cerr
		}
		return asInternal(name, j.target.FullName(), cerr)
	}

	switch {
	case outcome == Failure && c.reported == 0:
		return &InternalError{Rule: name, Target: j.target.FullName(), Err: errors.New("failure without a reported defect")}
	case outcome != Failure && c.reported > 0:
		return &InternalError{Rule: name, Target: j.target.FullName(), Err: fmt.Errorf("%d defect(s) reported with outcome %s", c.reported, outcome)}
	}

	res.addOutcome(name, outcome)
	r.metrics.outcome(name, outcome)
	return nil
}
