package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/glia/internal/asset"
)

// DirDiscoverer finds packages in directories. A directory carrying a
// manifest is a package; otherwise each of its child directories that
// carries one is. Children are visited in name order.
type DirDiscoverer struct {
	Dirs   []string
	Logger *slog.Logger
}

// Discover returns the packages found in every directory, in order.
// Broken manifests are reported together after the scan; the packages
// that did load are still returned.
func (d *DirDiscoverer) Discover(ctx context.Context) ([]*asset.Package, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var (
		pkgs []*asset.Package
		errs []error
		seen = make(map[string]string)
	)
	add := func(dir string) {
		pkg, err := LoadPackage(dir)
		if err != nil {
			errs = append(errs, fmt.Errorf("package %s: %w", dir, err))
			return
		}
		if prev, dup := seen[pkg.Name]; dup {
			errs = append(errs, fmt.Errorf("package %q in %s already provided by %s", pkg.Name, pkg.Root, prev))
			return
		}
		seen[pkg.Name] = pkg.Root
		logger.Debug("package discovered", "package", pkg.Name, "root", pkg.Root, "mods", len(pkg.Mods))
		pkgs = append(pkgs, pkg)
	}

	for _, dir := range d.Dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if HasManifest(dir) {
			add(dir)
			continue
		}

		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("package dir missing", "dir", dir)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("scan %s: %w", dir, err))
			continue
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, e := range entries {
			child := filepath.Join(dir, e.Name())
			if e.IsDir() && HasManifest(child) {
				add(child)
			}
		}
	}

	return pkgs, errors.Join(errs...)
}
