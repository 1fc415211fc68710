package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/panbanda/ilscan/pkg/config"
	"github.com/panbanda/ilscan/pkg/metadata/snapshot"
)

// Scanner finds snapshot files.
type Scanner struct {
	config *config.Config
}

// NewScanner creates a new snapshot scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// Expand turns command line arguments into snapshot files. Directories are
// scanned with ScanDir, arguments containing glob metacharacters are
// expanded with doublestar, and plain files are taken as given.
func (s *Scanner) Expand(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(paths ...string) {
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				files = append(files, p)
			}
		}
	}

	for _, arg := range args {
		if strings.ContainsAny(arg, "*?[{") {
			matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
			}
			for _, m := range matches {
				if ok, _ := s.ScanFile(m); ok {
					add(m)
				}
			}
			continue
		}

		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			found, err := s.ScanDir(arg)
			if err != nil {
				return nil, fmt.Errorf("failed to scan directory %s: %w", arg, err)
			}
			add(found...)
			continue
		}
		if _, err := snapshot.FormatOf(arg); err != nil {
			return nil, err
		}
		add(arg)
	}
	slices.Sort(files)
	return files, nil
}

// ScanDir recursively scans a directory for files matching the configured
// snapshot patterns. Symlinks that leave root are skipped.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	files := make([]string, 0, 16)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if d.IsDir() {
			if rel != "." && s.config.ShouldExclude(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.matches(rel) {
			files = append(files, path)
		}
		return nil
	})

	return files, walkErr
}

func (s *Scanner) matches(rel string) bool {
	if s.config.ShouldExclude(rel) {
		return false
	}
	for _, p := range s.config.Scan.Patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// isWithinRoot checks if a path is contained within the root directory.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}

// ScanFile reports whether a single file is a loadable, non-excluded
// snapshot.
func (s *Scanner) ScanFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if s.config.ShouldExclude(path) {
		return false, nil
	}
	_, err = snapshot.FormatOf(path)
	return err == nil, nil
}

// FilterBySize filters files that exceed maxSize bytes and returns the
// number skipped. A maxSize of 0 disables the filter.
func FilterBySize(files []string, maxSize int64) ([]string, int) {
	if maxSize <= 0 {
		return files, 0
	}

	filtered := make([]string, 0, len(files))
	skipped := 0
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || info.Size() > maxSize {
			skipped++
			continue
		}
		filtered = append(filtered, f)
	}
	return filtered, skipped
}
