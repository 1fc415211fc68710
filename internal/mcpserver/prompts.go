package mcpserver

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var promptFiles embed.FS

// promptDoc is one markdown prompt. The optional YAML header carries the
// description and the arguments; each argument is substituted into the
// body wherever {{name}} appears.
type promptDoc struct {
	Name        string        `yaml:"-"`
	Description string        `yaml:"description"`
	Arguments   []promptParam `yaml:"arguments"`
	Body        string        `yaml:"-"`
}

type promptParam struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Default     string `yaml:"default"`
}

// loadPrompts reads every *.md file in dir, in name order.
func loadPrompts(fsys fs.FS, dir string) ([]promptDoc, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.md"))
	if err != nil {
		return nil, err
	}
	docs := make([]promptDoc, 0, len(files))
	for _, file := range files {
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", file, err)
		}
		doc := parsePrompt(content)
		doc.Name = strings.TrimSuffix(path.Base(file), ".md")
		docs = append(docs, doc)
	}
	return docs, nil
}

// parsePrompt splits a "---" delimited YAML header from the body. Content
// without a readable header is all body.
func parsePrompt(content []byte) promptDoc {
	text := string(content)
	rest, ok := strings.CutPrefix(text, "---\n")
	if !ok {
		return promptDoc{Body: text}
	}
	header, body, ok := strings.Cut(rest, "\n---\n")
	if !ok {
		return promptDoc{Body: text}
	}
	var doc promptDoc
	if err := yaml.Unmarshal([]byte(header), &doc); err != nil {
		return promptDoc{Body: text}
	}
	doc.Body = strings.TrimPrefix(body, "\n")
	return doc
}

func (d promptDoc) prompt() *mcp.Prompt {
	p := &mcp.Prompt{Name: d.Name, Description: d.Description}
	for _, a := range d.Arguments {
		p.Arguments = append(p.Arguments, &mcp.PromptArgument{
			Name:        a.Name,
			Description: a.Description,
			Required:    a.Required,
		})
	}
	return p
}

// render fills the body with args. Unset optional arguments take their
// default.
func (d promptDoc) render(args map[string]string) (string, error) {
	pairs := make([]string, 0, 2*len(d.Arguments))
	for _, a := range d.Arguments {
		v := args[a.Name]
		if v == "" {
			if a.Required {
				return "", fmt.Errorf("prompt %s: argument %q is required", d.Name, a.Name)
			}
			v = a.Default
		}
		pairs = append(pairs, "{{"+a.Name+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(d.Body), nil
}

func (d promptDoc) handler() mcp.PromptHandler {
	return func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var args map[string]string
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		text, err := d.render(args)
		if err != nil {
			return nil, err
		}
		return &mcp.GetPromptResult{
			Description: d.Description,
			Messages: []*mcp.PromptMessage{{
				Role:    "user",
				Content: &mcp.TextContent{Text: text},
			}},
		}, nil
	}
}

func (s *Server) registerPrompts() {
	docs, err := loadPrompts(promptFiles, "prompts")
	if err != nil {
		s.logger.Error("prompts not registered", "error", err)
		return
	}
	for _, d := range docs {
		s.server.AddPrompt(d.prompt(), d.handler())
	}
}
