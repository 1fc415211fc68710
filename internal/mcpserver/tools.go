package mcpserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/ilscan/internal/output"
	"github.com/panbanda/ilscan/internal/service/analysis"
	"github.com/panbanda/ilscan/pkg/metadata/snapshot"
)

// SnapshotInput is the base input for all snapshot tools.
type SnapshotInput struct {
	Paths  []string `json:"paths,omitempty" jsonschema:"Snapshot files, directories or glob patterns. Defaults to current directory if empty."`
	Format string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// AnalyzeInput selects the rules to run.
type AnalyzeInput struct {
	SnapshotInput
	Rules []string `json:"rules,omitempty" jsonschema:"Rule names to run. Defaults to the configured rules."`
}

// InspectInput narrows inspection to one type.
type InspectInput struct {
	SnapshotInput
	Type string `json:"type,omitempty" jsonschema:"Full type name to inspect, e.g. Acme.Service. Defaults to every type."`
}

// CallGraphInput adds call graph options.
type CallGraphInput struct {
	SnapshotInput
	Top int `json:"top,omitempty" jsonschema:"Number of top ranked methods to include. Default 10."`
}

type tools struct {
	logger *slog.Logger
	opts   []analysis.Option
}

func getFormat(input SnapshotInput) output.Format {
	switch input.Format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := output.Marshal(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func (t *tools) service() *analysis.Service {
	opts := append([]analysis.Option{analysis.WithLogger(t.logger)}, t.opts...)
	return analysis.New(opts...)
}

// load scans and decodes input.Paths. Partial load failures are logged and
// the loaded snapshots are still analyzed.
func (t *tools) load(ctx context.Context, svc *analysis.Service, input SnapshotInput) ([]*snapshot.Snapshot, error) {
	files, err := svc.Scan(input.Paths)
	if err != nil {
		return nil, err
	}
	snaps, err := svc.Load(ctx, files, nil)
	if err != nil {
		if len(snaps) == 0 {
			return nil, err
		}
		t.logger.Warn("some snapshots failed to load", "error", err)
	}
	return snaps, nil
}

func (t *tools) handleAnalyze(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, any, error) {
	svc := t.service()
	snaps, err := t.load(ctx, svc, input.SnapshotInput)
	if err != nil {
		return toolError(err.Error())
	}

	result, err := svc.Analyze(ctx, snaps, analysis.AnalyzeOptions{Rules: input.Rules})
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(result, getFormat(input.SnapshotInput))
}

func (t *tools) handleReachability(ctx context.Context, req *mcp.CallToolRequest, input SnapshotInput) (*mcp.CallToolResult, any, error) {
	svc := t.service()
	snaps, err := t.load(ctx, svc, input)
	if err != nil {
		return toolError(err.Error())
	}

	result, err := svc.Reachability(ctx, snaps)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(result, getFormat(input))
}

func (t *tools) handleInspect(ctx context.Context, req *mcp.CallToolRequest, input InspectInput) (*mcp.CallToolResult, any, error) {
	svc := t.service()
	snaps, err := t.load(ctx, svc, input.SnapshotInput)
	if err != nil {
		return toolError(err.Error())
	}

	result := svc.Inspect(snaps, input.Type)
	if input.Type != "" && len(result.Types) == 0 {
		return toolError("type not found: " + input.Type)
	}
	return toolResult(result, getFormat(input.SnapshotInput))
}

func (t *tools) handleCallGraph(ctx context.Context, req *mcp.CallToolRequest, input CallGraphInput) (*mcp.CallToolResult, any, error) {
	svc := t.service()
	snaps, err := t.load(ctx, svc, input.SnapshotInput)
	if err != nil {
		return toolError(err.Error())
	}

	result, err := svc.CallGraph(ctx, snaps, input.Top)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, nil, err
		}
		return toolError(err.Error())
	}
	return toolResult(result, getFormat(input.SnapshotInput))
}
