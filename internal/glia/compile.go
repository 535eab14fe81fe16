package glia

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/roach88/glia/internal/asset"
	"github.com/roach88/glia/internal/coord"
	"github.com/roach88/glia/internal/store"
)

// LibraryTarget is the build history target of library compilations.
const LibraryTarget = "library"

// Compile builds the mechanism library from every non-builtin package.
// With checkCache the build is skipped while the cache is fresh.
//
// Under GLIA_NOCOMPILE the compiler is not invoked but the current
// hashes are still recorded. A failed build records nothing.
func (m *Manager) Compile(ctx context.Context, checkCache bool) error {
	pkgs, err := m.Packages(ctx)
	if err != nil {
		return err
	}
	m.lastBuild = ""
	var fresh coord.FreshFunc
	if checkCache {
		fresh = func(ctx context.Context) bool { return m.store.AllFresh(ctx, pkgs) }
	}

	built, err := m.coordinator().RunUnlessFresh(ctx, fresh, func(ctx context.Context, buildID string) error {
		return m.trackBuild(ctx, buildID, LibraryTarget, func() error {
			return m.compileLibrary(ctx, pkgs)
		})
	})
	if err == nil && !built {
		m.logger.Debug("library cache is fresh")
	}
	return err
}

// trackBuild records fn in the build history.
func (m *Manager) trackBuild(ctx context.Context, buildID, target string, fn func() error) error {
	m.lastBuild = buildID
	if err := m.store.BeginBuild(ctx, buildID, target); err != nil {
		return err
	}
	buildErr := fn()
	if err := m.store.FinishBuild(ctx, buildID, buildErr); err != nil {
		m.logger.Warn("could not record build outcome", "build_id", buildID, "error", err)
	}
	return buildErr
}

func (m *Manager) compileLibrary(ctx context.Context, pkgs []*asset.Package) error {
	var (
		mods   []*asset.Mod
		hashes []store.PackageHash
	)
	for _, pkg := range pkgs {
		if pkg.Builtin {
			continue
		}
		mods = append(mods, pkg.EffectiveMods(asset.DialectNeuron)...)
		h, err := pkg.ContentHash(m.hasher)
		if err != nil {
			return fmt.Errorf("hash package %s: %w", pkg.Name, err)
		}
		hashes = append(hashes, store.PackageHash{
			Identity:    pkg.IdentityHash(m.hasher),
			Package:     pkg.Name,
			ContentHash: h,
		})
	}

	switch {
	case m.cfg.NoCompile:
		m.logger.Info("compilation skipped", "reason", "GLIA_NOCOMPILE")
	case len(mods) == 0:
		m.logger.Info("no mods to compile")
	default:
		if m.compiler == nil {
			return ErrNoCompiler
		}
		dir := m.cfg.LibraryDir()
		if err := resetDir(dir); err != nil {
			return err
		}
		for _, mod := range mods {
			if err := copyFile(mod.Path(), filepath.Join(dir, mod.FullyQualifiedName()+".mod")); err != nil {
				return err
			}
		}
		m.logger.Info("compiling library", "dir", dir, "mods", len(mods))
		if err := m.compiler.CompileLibrary(ctx, dir, mods); err != nil {
			return fmt.Errorf("compile library: %w", err)
		}
	}

	return m.store.RecordHashes(ctx, hashes)
}

// LibraryPath is the compiled library inside the library dir.
func (m *Manager) LibraryPath() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(m.cfg.LibraryDir(), "nrnmech.dll")
	}
	return filepath.Join(m.cfg.LibraryDir(), "x86_64", ".libs", "libnrnmech.so")
}

// Libraries returns the libraries a host should load, or none under
// GLIA_NOLOAD.
func (m *Manager) Libraries() []string {
	if m.cfg.NoLoad {
		return nil
	}
	return []string{m.LibraryPath()}
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
