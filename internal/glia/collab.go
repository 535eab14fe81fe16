package glia

import (
	"context"

	"github.com/roach88/glia/internal/asset"
)

// Discoverer lists the installed packages.
type Discoverer interface {
	Discover(ctx context.Context) ([]*asset.Package, error)
}

// BuildOptions tune a catalogue build.
type BuildOptions struct {
	Verbose bool
	// Debug keeps the build directory for inspection.
	Debug bool
	GPU   string
	// Force rebuilds even when the cached artifact is fresh.
	Force bool
}

// Compiler turns mod sources into loadable artifacts.
type Compiler interface {
	// CompileLibrary builds every mod copied into dir as one library.
	CompileLibrary(ctx context.Context, dir string, mods []*asset.Mod) error
	// BuildCatalogue builds the mods in modDir into a catalogue inside
	// outDir and returns the artifact path.
	BuildCatalogue(ctx context.Context, pkg *asset.Package, modDir, outDir string, opts BuildOptions) (string, error)
}

// Toolchain describes the configuration catalogues are built against.
// A change in the description invalidates every cached catalogue.
type Toolchain interface {
	Describe(ctx context.Context) (string, error)
}

// DiscovererFunc adapts a function to Discoverer.
type DiscovererFunc func(ctx context.Context) ([]*asset.Package, error)

func (f DiscovererFunc) Discover(ctx context.Context) ([]*asset.Package, error) {
	return f(ctx)
}

// StaticToolchain is a fixed toolchain description.
type StaticToolchain string

func (s StaticToolchain) Describe(context.Context) (string, error) {
	return string(s), nil
}
