// Package testutil holds file helpers and snapshot fixtures shared by the
// CLI plumbing tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleSnapshot is a small YAML snapshot with one public entry type, one
// used private helper and two unused private methods.
const SampleSnapshot = `
assemblies:
  - name: App
    version: "1.0.0.0"
    entry_point: "Acme.Program::Main"
    modules:
      - name: App.dll
        types:
          - namespace: Acme
            name: Program
            access: public
            methods:
              - name: Main
                access: private
                flags: [static]
                body:
                  - op: newobj
                    method: {type: "Acme.Service", name: .ctor}
                  - op: callvirt
                    method: {type: "Acme.Service", name: Run}
                  - op: ret
          - namespace: Acme
            name: Service
            access: public
            methods:
              - name: .ctor
                access: public
                body: [{op: ret}]
              - name: Run
                access: public
                body:
                  - op: call
                    method: {type: "Acme.Service", name: Helper}
                  - op: ret
              - name: Helper
                access: private
                body: [{op: ret}]
              - name: Unused
                access: private
                body: [{op: ret}]
              - name: Stale
                access: private
                body: [{op: ret}]
`

// SampleDefects lists the methods of SampleSnapshot reported as uncalled.
var SampleDefects = []string{
	"System.Void Acme.Service::Stale()",
	"System.Void Acme.Service::Unused()",
}

// WriteFile writes content to a file, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll(%s) error: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", path, err)
	}
}

// WriteSnapshot writes SampleSnapshot to dir/name and returns its path.
func WriteSnapshot(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	WriteFile(t, path, SampleSnapshot)
	return path
}

// ReadFile reads content from a file.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error: %v", path, err)
	}
	return string(data)
}
