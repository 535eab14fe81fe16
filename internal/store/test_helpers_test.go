package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/glia/internal/asset"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestPackage creates a package rooted in a temp dir with one mod file.
func createTestPackage(t *testing.T, name string) *asset.Package {
	t.Helper()
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "mods", "hh.mod"), "NEURON { SUFFIX hh }\n")
	return asset.NewPackage(name, root, &asset.Mod{
		Asset:   "hh",
		Dialect: asset.DialectNeuron,
		RelPath: "mods/hh.mod",
	})
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
