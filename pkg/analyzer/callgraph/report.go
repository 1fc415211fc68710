package callgraph

import (
	"cmp"
	"context"
	"slices"

	"github.com/panbanda/ilscan/pkg/stats"
)

// RankedMethod is a method with its PageRank score.
type RankedMethod struct {
	Method   string  `json:"method" toon:"method"`
	PageRank float64 `json:"pagerank" toon:"pagerank"`
	Callers  int     `json:"callers" toon:"callers"`
	Callees  int     `json:"callees" toon:"callees"`
}

// Report summarizes a call graph.
type Report struct {
	Methods         int                `json:"methods" toon:"methods"`
	Edges           int                `json:"edges" toon:"edges"`
	Roots           int                `json:"roots" toon:"roots"`
	Reachable       int                `json:"reachable" toon:"reachable"`
	Unreachable     []string           `json:"unreachable" toon:"unreachable"`
	SelfRecursive   []string           `json:"self_recursive" toon:"self_recursive"`
	RecursionGroups [][]string         `json:"recursion_groups" toon:"recursion_groups"`
	FanIn           stats.Distribution `json:"fan_in" toon:"fan_in"`
	FanOut          stats.Distribution `json:"fan_out" toon:"fan_out"`
	TopRanked       []RankedMethod     `json:"top_ranked" toon:"top_ranked"`
}

type reportConfig struct {
	top       int
	damping   float64
	tolerance float64
}

// ReportOption configures Analyze.
type ReportOption func(*reportConfig)

// WithTop sets how many methods TopRanked lists. Zero lists none.
func WithTop(n int) ReportOption {
	return func(c *reportConfig) {
		c.top = n
	}
}

// WithDamping sets the PageRank damping factor.
func WithDamping(d float64) ReportOption {
	return func(c *reportConfig) {
		c.damping = d
	}
}

// Analyze builds a Report for g.
func Analyze(ctx context.Context, g *Graph, opts ...ReportOption) (*Report, error) {
	cfg := reportConfig{top: 10, damping: 0.85, tolerance: 1e-6}
	for _, opt := range opts {
		opt(&cfg)
	}

	reachable, err := g.Reachable(ctx)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Methods:   g.Len(),
		Edges:     g.Edges(),
		Roots:     int(g.roots.GetCardinality()),
		Reachable: int(reachable.GetCardinality()),
	}
	fanIn := make([]float64, 0, g.Len())
	fanOut := make([]float64, 0, g.Len())
	for id, m := range g.methods {
		fanIn = append(fanIn, float64(g.directed.To(int64(id)).Len()))
		fanOut = append(fanOut, float64(g.directed.From(int64(id)).Len()))
		if !reachable.Contains(uint32(id)) {
			r.Unreachable = append(r.Unreachable, m.FullName())
		}
		if g.selfCalls.Contains(uint32(id)) {
			r.SelfRecursive = append(r.SelfRecursive, m.FullName())
		}
	}
	r.FanIn = stats.Describe(fanIn)
	r.FanOut = stats.Describe(fanOut)
	for _, group := range g.RecursionGroups() {
		names := make([]string, len(group))
		for i, m := range group {
			names[i] = m.FullName()
		}
		r.RecursionGroups = append(r.RecursionGroups, names)
	}

	if cfg.top > 0 && g.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ranks := g.PageRank(cfg.damping, cfg.tolerance)
		ranked := make([]RankedMethod, 0, len(ranks))
		for id, score := range ranks {
			ranked = append(ranked, RankedMethod{
				Method:   g.methods[id].FullName(),
				PageRank: score,
				Callers:  g.directed.To(id).Len(),
				Callees:  g.directed.From(id).Len(),
			})
		}
		slices.SortFunc(ranked, func(a, b RankedMethod) int {
			return cmp.Or(cmp.Compare(b.PageRank, a.PageRank), cmp.Compare(a.Method, b.Method))
		})
		if len(ranked) > cfg.top {
			ranked = ranked[:cfg.top]
		}
		r.TopRanked = ranked
	}
	return r, nil
}
