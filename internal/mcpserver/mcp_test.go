package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/ilscan/internal/service/analysis"
	"github.com/panbanda/ilscan/internal/testutil"
	"github.com/panbanda/ilscan/pkg/config"
)

func newTestTools() *tools {
	return &tools{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		opts:   []analysis.Option{analysis.WithConfig(config.DefaultConfig())},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("handler returned nil result")
	}
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return text.Text
}

func TestNewServer(t *testing.T) {
	s := NewServer("", nil)
	if s == nil || s.server == nil {
		t.Fatal("NewServer returned nil server")
	}
	if s.tools == nil {
		t.Fatal("NewServer did not set up tools")
	}
}

func TestGetFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "toon"},
		{"toon", "toon"},
		{"json", "json"},
		{"md", "markdown"},
		{"markdown", "markdown"},
		{"text", "toon"},
	}
	for _, tt := range tests {
		if got := getFormat(SnapshotInput{Format: tt.in}); string(got) != tt.want {
			t.Errorf("getFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHandleAnalyze(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteSnapshot(t, dir, "app.snapshot.yaml")

	input := AnalyzeInput{SnapshotInput: SnapshotInput{Paths: []string{dir}, Format: "json"}}
	result, _, err := newTestTools().handleAnalyze(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("handleAnalyze returned error: %v", err)
	}
	text := resultText(t, result)
	if result.IsError {
		t.Fatalf("handleAnalyze returned tool error: %s", text)
	}

	var got struct {
		Outcome string            `json:"outcome"`
		Defects []json.RawMessage `json:"defects"`
	}
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, text)
	}
	if got.Outcome != "failure" {
		t.Errorf("outcome = %q, want failure", got.Outcome)
	}
	if len(got.Defects) != len(testutil.SampleDefects) {
		t.Errorf("got %d defects, want %d", len(got.Defects), len(testutil.SampleDefects))
	}
}

func TestHandleAnalyzeUnknownRule(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteSnapshot(t, dir, "app.snapshot.yaml")

	input := AnalyzeInput{
		SnapshotInput: SnapshotInput{Paths: []string{dir}},
		Rules:         []string{"Nope"},
	}
	result, _, err := newTestTools().handleAnalyze(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("handleAnalyze returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unknown rule")
	}
	if text := resultText(t, result); !strings.Contains(text, `unknown rule "Nope"`) {
		t.Errorf("unexpected error text: %s", text)
	}
}

func TestHandleNoSnapshots(t *testing.T) {
	input := SnapshotInput{Paths: []string{t.TempDir()}}
	result, _, err := newTestTools().handleReachability(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("handleReachability returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for empty directory")
	}
	if text := resultText(t, result); !strings.Contains(text, "no snapshot files found") {
		t.Errorf("unexpected error text: %s", text)
	}
}

func TestHandleReachability(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteSnapshot(t, dir, "app.snapshot.yaml")

	result, _, err := newTestTools().handleReachability(context.Background(), nil, SnapshotInput{Paths: []string{path}})
	if err != nil {
		t.Fatalf("handleReachability returned error: %v", err)
	}
	text := resultText(t, result)
	if result.IsError {
		t.Fatalf("handleReachability returned tool error: %s", text)
	}
	if !strings.Contains(text, "Acme.Service") {
		t.Errorf("expected Acme.Service in output:\n%s", text)
	}
}

func TestHandleInspect(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteSnapshot(t, dir, "app.snapshot.yaml")
	tl := newTestTools()

	t.Run("known type", func(t *testing.T) {
		input := InspectInput{
			SnapshotInput: SnapshotInput{Paths: []string{dir}, Format: "json"},
			Type:          "Acme.Program",
		}
		result, _, err := tl.handleInspect(context.Background(), nil, input)
		if err != nil {
			t.Fatal(err)
		}
		text := resultText(t, result)
		if result.IsError {
			t.Fatalf("handleInspect returned tool error: %s", text)
		}
		var got struct {
			Types []struct {
				Type    string `json:"type"`
				Methods []struct {
					Method     string `json:"method"`
					EntryPoint bool   `json:"entry_point"`
				} `json:"methods"`
			} `json:"types"`
		}
		if err := json.Unmarshal([]byte(text), &got); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if len(got.Types) != 1 || got.Types[0].Type != "Acme.Program" {
			t.Fatalf("unexpected types: %+v", got.Types)
		}
		if !got.Types[0].Methods[0].EntryPoint {
			t.Error("Main should be reported as entry point")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		input := InspectInput{SnapshotInput: SnapshotInput{Paths: []string{dir}}, Type: "Acme.Missing"}
		result, _, err := tl.handleInspect(context.Background(), nil, input)
		if err != nil {
			t.Fatal(err)
		}
		if !result.IsError {
			t.Fatal("expected tool error for unknown type")
		}
	})
}

func TestHandleCallGraph(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteSnapshot(t, dir, "app.snapshot.yaml")

	input := CallGraphInput{SnapshotInput: SnapshotInput{Paths: []string{filepath.Join(dir, "*.snapshot.yaml")}, Format: "md"}, Top: 3}
	result, _, err := newTestTools().handleCallGraph(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("handleCallGraph returned error: %v", err)
	}
	text := resultText(t, result)
	if result.IsError {
		t.Fatalf("handleCallGraph returned tool error: %s", text)
	}
	if !strings.HasPrefix(text, "```") {
		t.Errorf("markdown output should be fenced:\n%s", text)
	}
	if !strings.Contains(text, "top_ranked") {
		t.Errorf("expected top_ranked in output:\n%s", text)
	}
}

func TestParsePrompt(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantDesc string
		wantBody string
		wantArgs int
	}{
		{"with header", "---\ndescription: Triage\n---\n\n# Body\n", "Triage", "# Body\n", 0},
		{"with arguments", "---\ndescription: D\narguments:\n  - {name: paths, default: .}\n---\nat {{paths}}\n", "D", "at {{paths}}\n", 1},
		{"no header", "# Body\n", "", "# Body\n", 0},
		{"unterminated", "---\ndescription: x\n# Body\n", "", "---\ndescription: x\n# Body\n", 0},
		{"bad yaml", "---\ndescription: [\n---\nBody\n", "", "---\ndescription: [\n---\nBody\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parsePrompt([]byte(tt.content))
			if doc.Description != tt.wantDesc {
				t.Errorf("description = %q, want %q", doc.Description, tt.wantDesc)
			}
			if doc.Body != tt.wantBody {
				t.Errorf("body = %q, want %q", doc.Body, tt.wantBody)
			}
			if len(doc.Arguments) != tt.wantArgs {
				t.Errorf("got %d arguments, want %d", len(doc.Arguments), tt.wantArgs)
			}
		})
	}
}

func TestPromptRender(t *testing.T) {
	doc := promptDoc{
		Name: "explain",
		Arguments: []promptParam{
			{Name: "method", Required: true},
			{Name: "paths", Default: "."},
		},
		Body: "explain {{method}} under {{paths}}",
	}

	got, err := doc.render(map[string]string{"method": "Acme.Service::Stale"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "explain Acme.Service::Stale under ." {
		t.Errorf("render = %q", got)
	}

	got, err = doc.render(map[string]string{"method": "A::B", "paths": "build/"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "explain A::B under build/" {
		t.Errorf("render = %q", got)
	}

	if _, err := doc.render(nil); err == nil || !strings.Contains(err.Error(), `"method"`) {
		t.Errorf("missing required argument not reported: %v", err)
	}
}

func TestEmbeddedPrompts(t *testing.T) {
	docs, err := loadPrompts(promptFiles, "prompts")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) == 0 {
		t.Fatal("no prompts embedded")
	}
	for _, doc := range docs {
		t.Run(doc.Name, func(t *testing.T) {
			if doc.Description == "" {
				t.Error("prompt has no description")
			}
			args := map[string]string{}
			for _, a := range doc.Arguments {
				if a.Required {
					args[a.Name] = "Acme.Service::Stale"
				}
			}
			req := &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: doc.Name, Arguments: args}}
			result, err := doc.handler()(context.Background(), req)
			if err != nil {
				t.Fatal(err)
			}
			if len(result.Messages) != 1 || result.Messages[0].Role != "user" {
				t.Fatalf("unexpected messages: %+v", result.Messages)
			}
			text, ok := result.Messages[0].Content.(*mcp.TextContent)
			if !ok || !strings.Contains(text.Text, "_snapshot") {
				t.Error("prompt should reference a snapshot tool")
			}
			if strings.Contains(text.Text, "{{") {
				t.Errorf("unfilled placeholder in prompt:\n%s", text.Text)
			}
			if got := doc.prompt(); len(got.Arguments) != len(doc.Arguments) {
				t.Errorf("prompt lists %d arguments, want %d", len(got.Arguments), len(doc.Arguments))
			}
		})
	}
}

func TestGenerateManifest(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"", "0.0.0"},
		{"dev", "0.0.0"},
		{"v1.4.2", "1.4.2"},
		{"1.4.2", "1.4.2"},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			data, err := GenerateManifest(tt.version)
			if err != nil {
				t.Fatal(err)
			}
			var m Manifest
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatal(err)
			}
			if m.Version != tt.want {
				t.Errorf("version = %q, want %q", m.Version, tt.want)
			}
			if m.Name != "io.github.panbanda/ilscan" {
				t.Errorf("name = %q", m.Name)
			}
			if len(m.Packages) != 1 || m.Packages[0].Identifier != "ghcr.io/panbanda/ilscan:"+tt.want {
				t.Errorf("unexpected packages: %+v", m.Packages)
			}
		})
	}
}
