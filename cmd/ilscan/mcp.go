package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/ilscan/internal/mcpserver"
	"github.com/panbanda/ilscan/internal/service/analysis"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes ilscan's analyses
as tools that LLMs can invoke.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "ilscan": {
        "command": "ilscan",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - analyze_snapshot       Run the rule catalog and report defects
  - reachability_snapshot  Unreachable methods per type
  - inspect_snapshot       Capability facts for every method of a type
  - callgraph_snapshot     Call graph, recursion groups and PageRank`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "manifest",
				Usage: "Print the server.json manifest and exit",
			},
		},
		Action: runMCPCmd,
	}
}

func runMCPCmd(c *cli.Context) error {
	if c.Bool("manifest") {
		data, err := mcpserver.GenerateManifest(version)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}

	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := mcpserver.NewServer(version, e.logger,
		analysis.WithConfig(e.cfg),
		analysis.WithRegisterer(e.registry),
	)
	return server.Run(ctx)
}
