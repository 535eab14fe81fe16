package glia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/glia/internal/asset"
	"github.com/roach88/glia/internal/config"
	"github.com/roach88/glia/internal/coord"
	"github.com/roach88/glia/internal/hash"
	"github.com/roach88/glia/internal/index"
	"github.com/roach88/glia/internal/preference"
	"github.com/roach88/glia/internal/resolve"
	"github.com/roach88/glia/internal/store"
)

// Manager holds the packages, index, preferences and cache of one process.
// It is not safe for concurrent use.
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger
	hasher *hash.Hasher

	discoverer Discoverer
	compiler   Compiler
	toolchain  Toolchain
	comm       coord.Comm
	ids        coord.IDGenerator

	store      *store.Store
	ownsStore  bool
	prefs      *preference.Store
	dialect    asset.Dialect
	packages   []*asset.Package
	discovered bool
	resolver   *resolve.Resolver
	lastBuild  string
}

// Option configures a Manager.
type Option func(*Manager)

// WithDiscoverer sets the package source. Without one only packages added
// with AddPackage exist.
func WithDiscoverer(d Discoverer) Option {
	return func(m *Manager) { m.discoverer = d }
}

// WithCompiler sets the compiler used by Compile and BuildCatalogue.
func WithCompiler(c Compiler) Option {
	return func(m *Manager) { m.compiler = c }
}

// WithToolchain sets the toolchain folded into catalogue hashes.
func WithToolchain(t Toolchain) Option {
	return func(m *Manager) { m.toolchain = t }
}

// WithComm places the Manager in a parallel job. The default is coord.Solo.
func WithComm(c coord.Comm) Option {
	return func(m *Manager) { m.comm = c }
}

// WithIDGenerator sets the source of build ids.
func WithIDGenerator(g coord.IDGenerator) Option {
	return func(m *Manager) { m.ids = g }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithStore supplies an open cache store. The Manager does not close it.
func WithStore(s *store.Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithPreferences supplies the preference store.
func WithPreferences(p *preference.Store) Option {
	return func(m *Manager) { m.prefs = p }
}

// New creates a Manager. Stores not supplied through options are opened
// at the locations cfg names.
func New(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	hasher, err := cfg.Hasher()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:     cfg,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		hasher:  hasher,
		comm:    coord.Solo{},
		ids:     coord.UUIDv7Generator{},
		dialect: asset.Dialect(cfg.Dialect),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil || m.prefs == nil {
		if err := cfg.EnsureDirs(); err != nil {
			return nil, err
		}
	}
	if m.store == nil {
		s, err := store.Open(cfg.CachePath(), store.WithHasher(hasher))
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		m.store = s
		m.ownsStore = true
	}
	if m.prefs == nil {
		p, err := preference.Open(preference.NewFileBackend(cfg.PreferencesPath(), cfg.Namespace()))
		if err != nil {
			m.Close()
			return nil, err
		}
		m.prefs = p
	}

	m.resolver = resolve.New(index.Build(nil, m.dialect), m.prefs)
	return m, nil
}

// Close releases the cache store if the Manager opened it.
func (m *Manager) Close() error {
	if m.ownsStore && m.store != nil {
		return m.store.Close()
	}
	return nil
}

// Config returns the configuration.
func (m *Manager) Config() *config.Config { return m.cfg }

// Store returns the cache store.
func (m *Manager) Store() *store.Store { return m.store }

// Preferences returns the preference store.
func (m *Manager) Preferences() *preference.Store { return m.prefs }

// Hasher returns the content digest in use.
func (m *Manager) Hasher() *hash.Hasher { return m.hasher }

// IsMain reports whether this process performs builds.
func (m *Manager) IsMain() bool { return coord.IsMain(m.comm) }

// discover runs package discovery once.
func (m *Manager) discover(ctx context.Context) error {
	if m.discovered {
		return nil
	}
	var found []*asset.Package
	if m.discoverer != nil {
		pkgs, err := m.discoverer.Discover(ctx)
		if err != nil {
			if len(pkgs) == 0 {
				return fmt.Errorf("discover packages: %w", err)
			}
			m.logger.Warn("some packages could not be loaded", "error", err)
		}
		found = pkgs
	}

	seen := make(map[string]bool, len(found)+len(m.packages))
	for _, pkg := range m.packages {
		seen[pkg.Name] = true
	}
	var valid []*asset.Package
	for _, pkg := range found {
		asset.Normalize(pkg)
		if err := asset.Validate(pkg); err != nil {
			m.logger.Warn("skipping invalid package", "package", pkg.Name, "error", err)
			continue
		}
		if seen[pkg.Name] {
			m.logger.Warn("skipping duplicate package", "package", pkg.Name, "root", pkg.Root)
			continue
		}
		seen[pkg.Name] = true
		valid = append(valid, pkg)
	}

	m.packages = append(valid, m.packages...)
	m.discovered = true
	m.reindex()
	m.logger.Debug("packages discovered", "count", len(m.packages))
	return nil
}

func (m *Manager) reindex() {
	m.resolver.SetIndex(index.Build(m.packages, m.dialect))
}

// Packages returns every known package in discovery order.
func (m *Manager) Packages(ctx context.Context) ([]*asset.Package, error) {
	if err := m.discover(ctx); err != nil {
		return nil, err
	}
	return m.packages, nil
}

// Package returns the package called name.
func (m *Manager) Package(ctx context.Context, name string) (*asset.Package, error) {
	pkgs, err := m.Packages(ctx)
	if err != nil {
		return nil, err
	}
	name = asset.NormalizeName(name)
	for _, pkg := range pkgs {
		if pkg.Name == name {
			return pkg, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPackageNotFound, name)
}

// AddPackage appends pkg to the package set and rebuilds the index.
func (m *Manager) AddPackage(ctx context.Context, pkg *asset.Package) error {
	if err := m.discover(ctx); err != nil {
		return err
	}
	asset.Normalize(pkg)
	if err := asset.Validate(pkg); err != nil {
		return err
	}
	for _, existing := range m.packages {
		if existing.Name == pkg.Name {
			return fmt.Errorf("package %q already present", pkg.Name)
		}
	}
	m.packages = append(m.packages, pkg)
	m.reindex()
	return nil
}

// Index returns the current index.
func (m *Manager) Index(ctx context.Context) (*index.Index, error) {
	if err := m.discover(ctx); err != nil {
		return nil, err
	}
	return m.resolver.Index(), nil
}

// Resolve returns the fully-qualified name spec selects.
func (m *Manager) Resolve(ctx context.Context, spec resolve.Spec) (string, error) {
	if err := m.discover(ctx); err != nil {
		return "", err
	}
	return m.resolver.Resolve(spec)
}

// ResolvePreference reports what preferences alone would select.
func (m *Manager) ResolvePreference(ctx context.Context, spec resolve.Spec) (*asset.Mod, error) {
	if err := m.discover(ctx); err != nil {
		return nil, err
	}
	return m.resolver.ResolvePreference(spec)
}

// Lookup returns the mod with fully-qualified name fqn.
func (m *Manager) Lookup(ctx context.Context, fqn string) (*asset.Mod, error) {
	if err := m.discover(ctx); err != nil {
		return nil, err
	}
	return m.resolver.Lookup(fqn)
}

// Mod resolves spec to its mod. A fully-qualified asset name is looked
// up directly.
func (m *Manager) Mod(ctx context.Context, spec resolve.Spec) (*asset.Mod, error) {
	if err := m.discover(ctx); err != nil {
		return nil, err
	}
	return m.resolver.Mod(spec)
}

// Select records a preference for assetName: persisted when global,
// otherwise for the rest of the process.
func (m *Manager) Select(assetName string, global bool, pkg, variant string) error {
	if assetName == "" {
		return errors.New("select: asset name is required")
	}
	assetName = asset.NormalizeName(assetName)
	pkg = asset.NormalizeName(pkg)
	variant = asset.NormalizeName(variant)
	if global {
		return m.prefs.SetGlobal(assetName, pkg, variant)
	}
	m.prefs.SetLocal(assetName, pkg, variant)
	return nil
}

// Context builds a preference frame: per-asset patches plus optional
// package and variant defaults for every asset.
func (m *Manager) Context(assets map[string]preference.Patch, pkg, variant string) preference.Frame {
	return preference.Context(assets, pkg, variant)
}

// WithContext runs fn with frame pushed. The frame is popped on every exit.
func (m *Manager) WithContext(frame preference.Frame, fn func() error) error {
	return m.prefs.With(frame, fn)
}

// IsCacheFresh reports whether every package's sources match the hashes
// recorded at the last successful build.
func (m *Manager) IsCacheFresh(ctx context.Context) bool {
	pkgs, err := m.Packages(ctx)
	if err != nil {
		return false
	}
	return m.store.AllFresh(ctx, pkgs)
}

// ClearCache forgets every recorded hash. Artifacts on disk stay.
func (m *Manager) ClearCache(ctx context.Context) error {
	return m.store.Clear(ctx)
}

// Builds returns the build history, newest first.
func (m *Manager) Builds(ctx context.Context, limit int) ([]store.Build, error) {
	return m.store.Builds(ctx, limit)
}

// LastBuildID is the id of the build run by the latest Compile or
// BuildCatalogue on this participant. It is empty when that call found a
// fresh cache or this participant is not the main one.
func (m *Manager) LastBuildID() string {
	return m.lastBuild
}

func (m *Manager) coordinator() *coord.Coordinator {
	return coord.New(m.comm, coord.WithLogger(m.logger), coord.WithIDGenerator(m.ids))
}
