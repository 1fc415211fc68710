package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/ilscan/internal/output"
	"github.com/panbanda/ilscan/internal/service/analysis"
	"github.com/panbanda/ilscan/pkg/analyzer/deadcode"
)

func reachabilityCmd() *cli.Command {
	return &cli.Command{
		Name:      "reachability",
		Aliases:   []string{"dc"},
		Usage:     "Summarize unreachable methods per type",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "items",
				Usage: "List every unreachable method",
			},
		},
		Action: runReachabilityCmd,
	}
}

func runReachabilityCmd(c *cli.Context) error {
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

	result, err := e.svc.Reachability(c.Context, snaps)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(reachabilityReport(result, c.Bool("items")))
}

func reachabilityReport(a *deadcode.Analysis, items bool) *output.Report {
	s := a.Summary
	parts := []output.Renderable{&output.Summary{
		Title: "Summary",
		Lines: [][2]string{
			{"Assemblies", strconv.Itoa(s.TotalAssemblies)},
			{"Types", strconv.Itoa(s.TotalTypes)},
			{"Methods", strconv.Itoa(s.TotalMethods)},
			{"Candidates", strconv.Itoa(s.CandidateMethods)},
			{"Unreachable", strconv.Itoa(s.UnreachableMethods)},
			{"Dead code", fmt.Sprintf("%.1f%%", s.DeadPercentage)},
		},
	}}

	if len(a.Types) > 0 {
		rows := make([][]string, 0, len(a.Types))
		for _, t := range a.Types {
			rows = append(rows, []string{
				t.Type,
				t.Assembly,
				strconv.Itoa(t.Unreachable),
				strconv.Itoa(t.Candidates),
				fmt.Sprintf("%.1f%%", t.DeadPercentage),
			})
		}
		parts = append(parts, output.NewTable("Types",
			[]string{"Type", "Assembly", "Unreachable", "Candidates", "Dead"}, rows, nil, nil))
	}

	if items {
		var rows [][]string
		for _, t := range a.Types {
			for _, it := range t.Items {
				rows = append(rows, []string{it.Method, it.Access, it.Reason.String()})
			}
		}
		if len(rows) > 0 {
			parts = append(parts, output.NewTable("Unreachable Methods",
				[]string{"Method", "Access", "Reason"}, rows, nil, nil))
		}
	}
	return &output.Report{Title: "Reachability", Parts: parts, Data: a}
}
