package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/ilscan/internal/service/analysis"
)

// Server wraps the MCP server and registers the ilscan snapshot tools.
type Server struct {
	server *mcp.Server
	tools  *tools
	logger *slog.Logger
}

// NewServer creates a new MCP server. Every tool call builds its service
// with opts, so the configuration is read once per call.
func NewServer(version string, logger *slog.Logger, opts ...analysis.Option) *Server {
	if version == "" {
		version = "dev"
	}
	if logger == nil {
		logger = slog.Default()
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "ilscan",
			Version: version,
		},
		nil,
	)

	s := &Server{
		server: server,
		tools:  &tools{logger: logger, opts: opts},
		logger: logger,
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_snapshot",
		Description: describeAnalyze(),
	}, s.tools.handleAnalyze)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "reachability_snapshot",
		Description: describeReachability(),
	}, s.tools.handleReachability)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "inspect_snapshot",
		Description: describeInspect(),
	}, s.tools.handleInspect)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "callgraph_snapshot",
		Description: describeCallGraph(),
	}, s.tools.handleCallGraph)
}
