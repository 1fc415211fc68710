package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/ilscan/internal/output"
	"github.com/panbanda/ilscan/internal/service/analysis"
	"github.com/panbanda/ilscan/pkg/analyzer/callgraph"
)

func graphCmd() *cli.Command {
	return &cli.Command{
		Name:      "graph",
		Aliases:   []string{"g"},
		Usage:     "Build the method call graph and rank methods",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "top",
				Usage: "Number of top ranked methods (default from config)",
			},
		},
		Action: runGraphCmd,
	}
}

func runGraphCmd(c *cli.Context) error {
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
	snaps, err := e.load(c.Context, files)
	if err != nil {
		return err
	}

	report, err := e.svc.CallGraph(c.Context, snaps, c.Int("top"))
	if err != nil {
		return fmt.Errorf("call graph failed: %w", err)
	}

	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(graphReport(report))
}

func graphReport(r *callgraph.Report) *output.Report {
	parts := []output.Renderable{&output.Summary{
		Title: "Summary",
		Lines: [][2]string{
			{"Methods", strconv.Itoa(r.Methods)},
			{"Edges", strconv.Itoa(r.Edges)},
			{"Roots", strconv.Itoa(r.Roots)},
			{"Reachable", strconv.Itoa(r.Reachable)},
			{"Unreachable", strconv.Itoa(len(r.Unreachable))},
			{"Recursion groups", strconv.Itoa(len(r.RecursionGroups))},
			{"Fan-in p90/max", fmt.Sprintf("%.0f / %.0f", r.FanIn.P90, r.FanIn.Max)},
			{"Fan-out p90/max", fmt.Sprintf("%.0f / %.0f", r.FanOut.P90, r.FanOut.Max)},
		},
	}}

	if len(r.TopRanked) > 0 {
		rows := make([][]string, 0, len(r.TopRanked))
		for _, m := range r.TopRanked {
			rows = append(rows, []string{
				m.Method,
				fmt.Sprintf("%.4f", m.PageRank),
				strconv.Itoa(m.Callers),
				strconv.Itoa(m.Callees),
			})
		}
		parts = append(parts, output.NewTable("Top Methods",
			[]string{"Method", "PageRank", "Callers", "Callees"}, rows, nil, nil))
	}

	if len(r.Unreachable) > 0 {
		rows := make([][]string, 0, len(r.Unreachable))
		for _, m := range r.Unreachable {
			rows = append(rows, []string{m})
		}
		parts = append(parts, output.NewTable("Unreachable From Roots", []string{"Method"}, rows, nil, nil))
	}

	if len(r.RecursionGroups) > 0 {
		rows := make([][]string, 0, len(r.RecursionGroups))
		for i, g := range r.RecursionGroups {
			rows = append(rows, []string{strconv.Itoa(i + 1), strings.Join(g, " -> ")})
		}
		parts = append(parts, output.NewTable("Recursion Groups", []string{"Group", "Methods"}, rows, nil, nil))
	}
	return &output.Report{Title: "Call Graph", Parts: parts, Data: r}
}
