package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/roach88/glia/internal/asset"
	"github.com/roach88/glia/internal/config"
	"github.com/roach88/glia/internal/glia"
)

// ModFile is one mod of a fixture package.
type ModFile struct {
	Asset   string
	Variant string
	Dialect asset.Dialect
	// Content defaults to a minimal NEURON block.
	Content string

	PointProcess bool
}

func (m ModFile) fileName() string {
	name := m.Asset
	if m.Variant != "" {
		name += "_" + m.Variant
	}
	if m.Dialect != asset.DialectAny {
		name += "_" + string(m.Dialect)
	}
	return name + ".mod"
}

// WritePackage writes the mod files of package name under dir/name and
// returns the package declaring them.
func WritePackage(t *testing.T, dir, name string, mods ...ModFile) *asset.Package {
	t.Helper()
	root := filepath.Join(dir, name)
	pkg := asset.NewPackage(name, root)
	for _, m := range mods {
		rel := filepath.Join("mods", m.fileName())
		content := m.Content
		if content == "" {
			content = fmt.Sprintf("NEURON { SUFFIX %s }\n", m.Asset)
		}
		WriteFile(t, filepath.Join(root, rel), content)
		pkg.AddMod(&asset.Mod{
			Asset:        m.Asset,
			Variant:      m.Variant,
			Dialect:      m.Dialect,
			RelPath:      rel,
			PointProcess: m.PointProcess,
		})
	}
	return pkg
}

// WriteFile creates path with content, making parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Config returns a configuration rooted in t.TempDir.
func Config(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(root, "data")
	cfg.CacheDir = filepath.Join(root, "cache")
	cfg.InstallRoot = filepath.Join(root, "install")
	cfg.Prefix = filepath.Join(root, "prefix")
	return cfg
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Packages is a fixed Discoverer.
type Packages []*asset.Package

func (p Packages) Discover(context.Context) ([]*asset.Package, error) {
	return p, nil
}

// FakeCompiler records compilations instead of running a toolchain.
//
// Thread-safety: FakeCompiler is safe for concurrent use via internal mutex.
type FakeCompiler struct {
	mu sync.Mutex

	// Err, when set, fails every build.
	Err error

	LibraryCalls   int
	LibraryFiles   []string
	CatalogueCalls int
	CatalogueFiles []string
}

var _ glia.Compiler = (*FakeCompiler)(nil)

func (c *FakeCompiler) CompileLibrary(_ context.Context, dir string, _ []*asset.Mod) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LibraryCalls++
	if c.Err != nil {
		return c.Err
	}
	files, err := listFiles(dir)
	if err != nil {
		return err
	}
	c.LibraryFiles = files
	return nil
}

func (c *FakeCompiler) BuildCatalogue(_ context.Context, pkg *asset.Package, modDir, outDir string, _ glia.BuildOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CatalogueCalls++
	if c.Err != nil {
		return "", c.Err
	}
	files, err := listFiles(modDir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", errors.New("no mods to build")
	}
	c.CatalogueFiles = files

	out := filepath.Join(outDir, pkg.Name+"-catalogue.so")
	if err := os.WriteFile(out, []byte("catalogue "+pkg.Name), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

// Calls returns the number of library and catalogue builds so far.
func (c *FakeCompiler) Calls() (library, catalogue int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.LibraryCalls, c.CatalogueCalls
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
