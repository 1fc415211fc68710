package rule

import (
	"context"
	"log/slog"

	"github.com/panbanda/ilscan/pkg/analyzer/usage"
	"github.com/panbanda/ilscan/pkg/metadata"
)

// Context is handed to a rule for a single invocation.
type Context struct {
	ctx      context.Context
	session  *Session
	rule     Rule
	runner   *Runner
	result   *Result
	reported int
}

// Context returns the run's context.Context.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Session returns the run's session.
func (c *Context) Session() *Session {
	return c.session
}

// Usage is shorthand for Session().Usage().
func (c *Context) Usage() *usage.Index {
	return c.session.usage
}

// Logger returns a logger tagged with the invoking rule.
func (c *Context) Logger() *slog.Logger {
	return c.session.logger.With("rule", c.rule.Name())
}

// Report records a defect against target. A rule that reports must return
// Failure from the same invocation.
func (c *Context) Report(target metadata.Entity, sev Severity, conf Confidence, msg string) {
	c.reported++
	d := newDefect(c.rule.Name(), target, sev, conf, msg)
	suppressed := c.runner.suppressor != nil && c.runner.suppressor.Suppress(d)
	c.result.addDefect(d, suppressed)
	c.runner.metrics.defect(d, suppressed)
}
