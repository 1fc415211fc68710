package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/panbanda/ilscan/pkg/config"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to create file %s: %v", name, err)
		}
	}
}

func relAll(t *testing.T, root string, files []string) map[string]bool {
	t.Helper()
	out := make(map[string]bool, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			t.Fatal(err)
		}
		out[filepath.ToSlash(rel)] = true
	}
	return out
}

func TestNewScanner(t *testing.T) {
	s := NewScanner(nil)
	if s.config == nil {
		t.Error("scanner.config should not be nil when passing nil")
	}

	cfg := config.DefaultConfig()
	if NewScanner(cfg).config != cfg {
		t.Error("scanner.config should be the provided config")
	}
}

func TestScanDir(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"App.snapshot.json":                "{}",
		"lib/Core.snapshot.yaml":           "assemblies: []",
		"lib/deep/Tools.snapshot.toml":     "",
		"lib/notes.json":                   "{}",
		".git/App.snapshot.json":           "{}",
		"node_modules/x/Lib.snapshot.json": "{}",
		"README.md":                        "",
	})

	files, err := NewScanner(nil).ScanDir(root)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	found := relAll(t, root, files)
	want := []string{"App.snapshot.json", "lib/Core.snapshot.yaml", "lib/deep/Tools.snapshot.toml"}
	if len(found) != len(want) {
		t.Errorf("ScanDir() found %v, want %v", found, want)
	}
	for _, name := range want {
		if !found[name] {
			t.Errorf("File %s was not found", name)
		}
	}
}

func TestExpand(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a/App.snapshot.json": "{}",
		"b/Lib.yaml":          "",
		"b/Other.yml":         "",
		"c/readme.txt":        "",
	})

	s := NewScanner(nil)
	files, err := s.Expand([]string{
		filepath.Join(root, "a"),
		filepath.Join(root, "b", "*.y*ml"),
		filepath.Join(root, "a", "App.snapshot.json"), // duplicate
	})
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}

	found := relAll(t, root, files)
	for _, name := range []string{"a/App.snapshot.json", "b/Lib.yaml", "b/Other.yml"} {
		if !found[name] {
			t.Errorf("File %s was not found in %v", name, files)
		}
	}
	if len(files) != 3 {
		t.Errorf("Expand() returned %d files, want 3", len(files))
	}

	if _, err := s.Expand([]string{filepath.Join(root, "c", "readme.txt")}); err == nil {
		t.Error("Expand() should reject a file with an unknown extension")
	}
	if _, err := s.Expand([]string{filepath.Join(root, "missing.json")}); err == nil {
		t.Error("Expand() should fail for a missing file")
	}
}

func TestScanFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"App.toml": "", "App.txt": ""})
	s := NewScanner(nil)

	if ok, err := s.ScanFile(filepath.Join(root, "App.toml")); err != nil || !ok {
		t.Errorf("ScanFile(App.toml) = %v, %v; want true", ok, err)
	}
	if ok, _ := s.ScanFile(filepath.Join(root, "App.txt")); ok {
		t.Error("ScanFile(App.txt) should be false")
	}
	if ok, _ := s.ScanFile(root); ok {
		t.Error("ScanFile(dir) should be false")
	}
}

func TestFilterBySize(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"small.json": "{}", "big.json": "{\"assemblies\": []}"})
	files := []string{filepath.Join(root, "small.json"), filepath.Join(root, "big.json")}

	kept, skipped := FilterBySize(files, 5)
	if len(kept) != 1 || skipped != 1 {
		t.Errorf("FilterBySize() kept %v, skipped %d", kept, skipped)
	}
	if kept, skipped := FilterBySize(files, 0); len(kept) != 2 || skipped != 0 {
		t.Error("FilterBySize(0) should keep every file")
	}
}

func TestIsWithinRoot(t *testing.T) {
	if !isWithinRoot("/tmp/root/a", "/tmp/root") {
		t.Error("child should be within root")
	}
	if isWithinRoot("/tmp/root2/a", "/tmp/root") {
		t.Error("sibling with shared prefix should not be within root")
	}
}
