package glia

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/glia/internal/asset"
	"github.com/roach88/glia/internal/coord"
)

// CatalogueTargetPrefix prefixes catalogue targets in the build history.
const CatalogueTargetPrefix = "catalogue:"

// CataloguePath is where the catalogue of package name is kept.
func (m *Manager) CataloguePath(name string) string {
	return filepath.Join(m.cfg.CatalogueDir(), name+"-catalogue.so")
}

// CatalogueHash combines the content hash of pkg with the toolchain
// description, so that a toolchain change invalidates the catalogue.
func (m *Manager) CatalogueHash(ctx context.Context, pkg *asset.Package) (string, error) {
	if m.toolchain == nil {
		return "", ErrNoToolchain
	}
	content, err := pkg.ContentHash(m.hasher)
	if err != nil {
		return "", fmt.Errorf("hash package %s: %w", pkg.Name, err)
	}
	desc, err := m.toolchain.Describe(ctx)
	if err != nil {
		return "", fmt.Errorf("describe toolchain: %w", err)
	}
	return content + desc, nil
}

// CatalogueIsFresh reports whether the catalogue of pkg exists and was
// built from the current sources with the current toolchain.
func (m *Manager) CatalogueIsFresh(ctx context.Context, pkg *asset.Package) bool {
	if _, err := os.Stat(m.CataloguePath(pkg.Name)); err != nil {
		return false
	}
	combined, err := m.CatalogueHash(ctx, pkg)
	if err != nil {
		return false
	}
	return m.store.CatalogueIsFresh(ctx, pkg.Name, combined)
}

// Catalogue returns the path of the catalogue of package name, building
// it first when it is missing or stale.
func (m *Manager) Catalogue(ctx context.Context, name string) (string, error) {
	return m.BuildCatalogue(ctx, name, BuildOptions{})
}

// BuildCatalogue builds the catalogue of package name. A fresh catalogue
// is reused unless opts.Force is set. The catalogue hash is recorded only
// after the artifact is in place.
func (m *Manager) BuildCatalogue(ctx context.Context, name string, opts BuildOptions) (string, error) {
	pkg, err := m.Package(ctx, name)
	if err != nil {
		return "", err
	}
	combined, err := m.CatalogueHash(ctx, pkg)
	if err != nil {
		return "", err
	}
	artifact := m.CataloguePath(pkg.Name)
	m.lastBuild = ""
	if opts.Debug {
		opts.Verbose = true
	}

	var fresh coord.FreshFunc
	if !opts.Force {
		fresh = func(ctx context.Context) bool { return m.CatalogueIsFresh(ctx, pkg) }
	}
	built, err := m.coordinator().RunUnlessFresh(ctx, fresh, func(ctx context.Context, buildID string) error {
		return m.trackBuild(ctx, buildID, CatalogueTargetPrefix+pkg.Name, func() error {
			return m.buildCatalogue(ctx, pkg, combined, artifact, opts)
		})
	})
	if err != nil {
		return "", err
	}
	if !built {
		m.logger.Debug("catalogue is fresh", "package", pkg.Name)
	}
	return artifact, nil
}

func (m *Manager) buildCatalogue(ctx context.Context, pkg *asset.Package, combined, artifact string, opts BuildOptions) error {
	if m.compiler == nil {
		return ErrNoCompiler
	}

	modDir, err := os.MkdirTemp("", "glia-mods-")
	if err != nil {
		return fmt.Errorf("create mod dir: %w", err)
	}
	defer os.RemoveAll(modDir)

	for _, mod := range pkg.EffectiveMods(asset.DialectArbor) {
		if mod.Builtin {
			continue
		}
		name := mod.Asset + "_" + mod.Variant + ".mod"
		if err := copyFile(mod.Path(), filepath.Join(modDir, name)); err != nil {
			return err
		}
	}

	outDir, err := os.MkdirTemp("", "glia-build-")
	if err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}
	if opts.Debug {
		m.logger.Info("keeping catalogue build dir", "dir", outDir)
	} else {
		defer os.RemoveAll(outDir)
	}

	m.logger.Info("building catalogue", "package", pkg.Name, "mod_dir", modDir)
	built, err := m.compiler.BuildCatalogue(ctx, pkg, modDir, outDir, opts)
	if err != nil {
		return fmt.Errorf("build catalogue %s: %w", pkg.Name, err)
	}
	if built == "" {
		return errors.New("compiler reported no catalogue artifact")
	}

	if err := os.MkdirAll(filepath.Dir(artifact), 0o755); err != nil {
		return fmt.Errorf("create catalogue dir: %w", err)
	}
	if err := copyFile(built, artifact); err != nil {
		return err
	}
	return m.store.RecordCatalogue(ctx, pkg.Name, combined)
}
