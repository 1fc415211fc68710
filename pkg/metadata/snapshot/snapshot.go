// Package snapshot loads metadata snapshots: JSON, YAML or TOML documents
// that describe one or more assemblies. Loading validates the document
// against an embedded JSON Schema, builds the metadata graph and links every
// symbolic reference.
package snapshot

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/panbanda/ilscan/pkg/metadata"
)

// Format is a snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnknownFormat is returned for files whose extension names no
// supported encoding.
var ErrUnknownFormat = errors.New("unknown snapshot format")

// Extensions lists the file extensions recognized as snapshots.
var Extensions = []string{".json", ".yaml", ".yml", ".toml"}

// FormatOf returns the format implied by path's extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// SchemaError reports a document that does not conform to the snapshot
// schema.
type SchemaError struct {
	Source string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("snapshot %s does not match schema: %v", e.Source, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Snapshot is a loaded and linked metadata graph.
type Snapshot struct {
	Source     string
	Assemblies []*metadata.Assembly
	Stats      LinkStats
}

// Types returns the number of type definitions in the snapshot.
func (s *Snapshot) Types() int {
	n := 0
	for _, a := range s.Assemblies {
		for range a.Types() {
			n++
		}
	}
	return n
}

// Methods returns the number of method definitions in the snapshot.
func (s *Snapshot) Methods() int {
	n := 0
	for _, a := range s.Assemblies {
		for range a.Methods() {
			n++
		}
	}
	return n
}

// Load reads and decodes the snapshot at path.
func Load(path string) (*Snapshot, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data, format, path)
}

// Decode validates, builds and links a snapshot document. source names the
// document in errors.
func Decode(data []byte, format Format, source string) (*Snapshot, error) {
	normalized, err := toJSON(data, format)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", source, err)
	}

	if err := validate(normalized); err != nil {
		return nil, &SchemaError{Source: source, Err: err}
	}

	var doc document
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", source, err)
	}

	b := newBuilder()
	asms, err := b.build(&doc)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", source, err)
	}
	stats := b.link(asms)

	return &Snapshot{Source: source, Assemblies: asms, Stats: stats}, nil
}

// toJSON re-encodes YAML and TOML documents as JSON so that one schema and
// one decoder serve every format.
func toJSON(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		return json.Marshal(v)
	case FormatTOML:
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		return json.Marshal(tree.ToMap())
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "snapshot.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

func validate(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return schema.Validate(inst)
}

// Schema returns the embedded JSON Schema document.
func Schema() []byte {
	return bytes.Clone(schemaJSON)
}
