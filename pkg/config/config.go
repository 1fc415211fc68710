package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/panbanda/ilscan/pkg/rule"
)

// Config holds all configuration options for ilscan.
type Config struct {
	// Analysis settings
	Analysis AnalysisConfig `koanf:"analysis" toml:"analysis"`

	// Defects below these levels are suppressed
	Thresholds ThresholdConfig `koanf:"thresholds" toml:"thresholds"`

	Suppressions []SuppressionConfig `koanf:"suppressions" toml:"suppressions"`

	// Snapshot discovery
	Scan ScanConfig `koanf:"scan" toml:"scan"`

	Graph GraphConfig `koanf:"graph" toml:"graph"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// AnalysisConfig controls how rules run.
type AnalysisConfig struct {
	Parallel bool     `koanf:"parallel" toml:"parallel"`
	Workers  int      `koanf:"workers" toml:"workers"` // 0 = 2 x NumCPU
	Rules    []string `koanf:"rules" toml:"rules"`     // empty = all
	Disabled []string `koanf:"disabled" toml:"disabled"`
}

// ThresholdConfig defines the minimum severity and confidence reported.
type ThresholdConfig struct {
	MinSeverity   string `koanf:"min_severity" toml:"min_severity"`
	MinConfidence string `koanf:"min_confidence" toml:"min_confidence"`
}

// SuppressionConfig silences matching defects. Rule and Target are glob
// patterns over rule names and target full names.
type SuppressionConfig struct {
	Rule   string `koanf:"rule" toml:"rule"`
	Target string `koanf:"target" toml:"target"`
	Reason string `koanf:"reason" toml:"reason"`
}

// ScanConfig selects snapshot files when a directory is given.
type ScanConfig struct {
	Patterns []string `koanf:"patterns" toml:"patterns"`
	Exclude  []string `koanf:"exclude" toml:"exclude"`
}

// GraphConfig tunes the call graph report.
type GraphConfig struct {
	Top     int     `koanf:"top" toml:"top"`
	Damping float64 `koanf:"damping" toml:"damping"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"` // text, json, markdown, toon
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Parallel: true,
		},
		Thresholds: ThresholdConfig{
			MinSeverity:   "low",
			MinConfidence: "low",
		},
		Scan: ScanConfig{
			Patterns: []string{
				"**/*.snapshot.json",
				"**/*.snapshot.yaml",
				"**/*.snapshot.yml",
				"**/*.snapshot.toml",
			},
			Exclude: []string{
				"**/.git/**",
				"**/.ilscan/**",
				"**/node_modules/**",
			},
		},
		Graph: GraphConfig{
			Top:     10,
			Damping: 0.85,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".ilscan/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

var formats = []string{"text", "json", "markdown", "toon"}

// Validate checks values that koanf cannot type-check.
func (c *Config) Validate() error {
	var errs []error
	if _, err := rule.ParseSeverity(c.Thresholds.MinSeverity); err != nil {
		errs = append(errs, fmt.Errorf("thresholds.min_severity: %w", err))
	}
	if _, err := rule.ParseConfidence(c.Thresholds.MinConfidence); err != nil {
		errs = append(errs, fmt.Errorf("thresholds.min_confidence: %w", err))
	}
	if c.Analysis.Workers < 0 {
		errs = append(errs, fmt.Errorf("analysis.workers: must not be negative, got %d", c.Analysis.Workers))
	}
	if !slices.Contains(formats, c.Output.Format) {
		errs = append(errs, fmt.Errorf("output.format: unknown format %q", c.Output.Format))
	}
	if c.Graph.Damping <= 0 || c.Graph.Damping >= 1 {
		errs = append(errs, fmt.Errorf("graph.damping: must be in (0, 1), got %g", c.Graph.Damping))
	}
	for _, p := range append(slices.Clone(c.Scan.Patterns), c.Scan.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("scan: invalid pattern %q", p))
		}
	}
	if _, err := c.suppressions(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) suppressions() (*rule.GlobSuppressor, error) {
	entries := make([]rule.Suppression, len(c.Suppressions))
	for i, s := range c.Suppressions {
		entries[i] = rule.Suppression{Rule: s.Rule, Target: s.Target, Reason: s.Reason}
	}
	return rule.NewGlobSuppressor(entries)
}

// Suppressor combines the configured suppressions with the severity and
// confidence thresholds.
func (c *Config) Suppressor() (rule.Suppressor, error) {
	sev, err := rule.ParseSeverity(c.Thresholds.MinSeverity)
	if err != nil {
		return nil, err
	}
	conf, err := rule.ParseConfidence(c.Thresholds.MinConfidence)
	if err != nil {
		return nil, err
	}
	globs, err := c.suppressions()
	if err != nil {
		return nil, err
	}
	return rule.Suppressors{rule.Threshold(sev, conf), globs}, nil
}

// ShouldExclude reports whether path matches an exclude pattern.
func (c *Config) ShouldExclude(path string) bool {
	p := filepath.ToSlash(path)
	for _, pattern := range c.Scan.Exclude {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

// Load loads configuration from a file over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Standard config file names, searched in order.
var configNames = []string{
	"ilscan.toml",
	"ilscan.yaml",
	"ilscan.yml",
	"ilscan.json",
	".ilscan.toml",
	".ilscan.yaml",
	".ilscan.yml",
	".ilscan.json",
}

// Find returns the first standard config file found in dir or dir/.ilscan.
func Find(dir string) (string, bool) {
	for _, d := range []string{dir, filepath.Join(dir, ".ilscan")} {
		for _, name := range configNames {
			path := filepath.Join(d, name)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}
	}
	return "", false
}

// LoadResult is a loaded config and the file it came from. Source is empty
// when defaults were used.
type LoadResult struct {
	Config *Config
	Source string
}

// LoadFrom loads path when it is set and searches the working directory
// otherwise. A config file that exists but fails to load is an error.
func LoadFrom(path string) (*LoadResult, error) {
	if path == "" {
		found, ok := Find(".")
		if !ok {
			return &LoadResult{Config: DefaultConfig()}, nil
		}
		path = found
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, Source: path}, nil
}

// LoadOrDefault loads the first standard config file or returns defaults.
func LoadOrDefault() *Config {
	if path, ok := Find("."); ok {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}
