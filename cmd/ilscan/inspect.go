package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/ilscan/internal/output"
	"github.com/panbanda/ilscan/internal/service/analysis"
)

func inspectCmd() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show capability facts for every method",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Only show the type with this full name",
			},
		},
		Action: runInspectCmd,
	}
}

func runInspectCmd(c *cli.Context) error {
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

	typeName := c.String("type")
	result := e.svc.Inspect(snaps, typeName)
	if typeName != "" && len(result.Types) == 0 {
		return fmt.Errorf("type %q not found", typeName)
	}

	formatter, err := e.formatter(c)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(inspectReport(result))
}

// methodFlags lists the facts that hold for m.
func methodFlags(m analysis.MethodFacts) string {
	var flags []string
	add := func(ok bool, name string) {
		if ok {
			flags = append(flags, name)
		}
	}
	add(m.Abstract, "abstract")
	add(m.EntryPoint, "entry-point")
	add(m.Main, "main")
	add(m.Finalizer, "finalizer")
	add(m.Generated, "generated")
	add(m.Override, "override")
	add(m.Visible, "visible")
	add(m.EventCallback, "event-callback")
	if m.Property != "" {
		flags = append(flags, "property:"+m.Property)
	}
	return strings.Join(flags, ",")
}

func inspectReport(res *analysis.InspectResult) *output.Report {
	parts := make([]output.Renderable, 0, len(res.Types))
	for _, t := range res.Types {
		rows := make([][]string, 0, len(t.Methods))
		for _, m := range t.Methods {
			rows = append(rows, []string{
				m.Method,
				m.Access,
				methodFlags(m),
				m.Verdict.Status.String() + " (" + m.Verdict.Reason.String() + ")",
			})
		}
		title := t.Type
		if t.Visible {
			title += " [visible]"
		}
		if t.Generated {
			title += " [generated]"
		}
		parts = append(parts, output.NewTable(title,
			[]string{"Method", "Access", "Facts", "Verdict"}, rows, nil, nil))
	}
	return &output.Report{Title: "Capabilities", Parts: parts, Data: res}
}
