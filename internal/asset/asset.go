package asset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/glia/internal/hash"
)

// Dialect restricts a Mod to one target simulation engine.
type Dialect string

const (
	// DialectAny applies to every dialect.
	DialectAny Dialect = ""

	// DialectNeuron targets the NEURON library build.
	DialectNeuron Dialect = "neuron"

	// DialectArbor targets Arbor catalogues.
	DialectArbor Dialect = "arbor"
)

// DefaultVariant is each package's conventional default variant.
const DefaultVariant = "0"

// NamePrefix prefixes every non-builtin fully-qualified name.
const NamePrefix = "glia__"

// nameSeparator joins package, asset and variant in fully-qualified names.
const nameSeparator = "__"

// ValidDialect reports whether d is a known dialect or DialectAny.
func ValidDialect(d Dialect) bool {
	switch d {
	case DialectAny, DialectNeuron, DialectArbor:
		return true
	}
	return false
}

// Mod is one buildable variant of one asset.
type Mod struct {
	// Asset is the logical short name, shared across packages.
	Asset string `json:"asset"`

	// Variant discriminates implementations inside one package.
	Variant string `json:"variant"`

	// Dialect restricts applicability; DialectAny applies everywhere.
	Dialect Dialect `json:"dialect,omitempty"`

	// RelPath locates the mechanism source relative to the package root.
	RelPath string `json:"path,omitempty"`

	PointProcess   bool `json:"point_process,omitempty"`
	ArtificialCell bool `json:"artificial_cell,omitempty"`

	// Builtin artifacts need no compilation (host engine builtins).
	Builtin bool `json:"builtin,omitempty"`

	pkg *Package
}

// Package returns the owning package, nil if the mod is detached.
func (m *Mod) Package() *Package {
	return m.pkg
}

// PackageName returns the owning package's name.
func (m *Mod) PackageName() string {
	if m.pkg == nil {
		return ""
	}
	return m.pkg.Name
}

// FullyQualifiedName returns the name the mod is known by in a compiled
// library: the asset name for builtins, glia__<pkg>__<asset>__<variant>
// otherwise.
func (m *Mod) FullyQualifiedName() string {
	if m.Builtin {
		return m.Asset
	}
	return FullyQualifiedName(m.PackageName(), m.Asset, m.Variant)
}

// FullyQualifiedName joins the parts of a non-builtin mod's name.
func FullyQualifiedName(pkg, assetName, variant string) string {
	return NamePrefix + strings.Join([]string{pkg, assetName, variant}, nameSeparator)
}

// ID returns the (asset, variant, package) triple identifying the mod.
func (m *Mod) ID() (assetName, variant, pkg string) {
	return m.Asset, m.Variant, m.PackageName()
}

// Path returns the absolute location of the mod's source file.
func (m *Mod) Path() string {
	if m.pkg == nil || m.RelPath == "" {
		return m.RelPath
	}
	return filepath.Join(m.pkg.Root, m.RelPath)
}

// String formats the mod as pkg.asset(variant).
func (m *Mod) String() string {
	return fmt.Sprintf("%s.%s(%s)", m.PackageName(), m.Asset, m.Variant)
}

// Package is a named collection of mods rooted at one directory.
type Package struct {
	Name string `json:"name"`
	Root string `json:"root"`

	// Builtin marks the host engine's pseudo-package: its mods are
	// insertable but have no sources to compile.
	Builtin bool `json:"builtin,omitempty"`

	Mods []*Mod `json:"mods"`
}

// NewPackage creates a package and attaches mods to it in order.
func NewPackage(name, root string, mods ...*Mod) *Package {
	p := &Package{Name: name, Root: root}
	for _, m := range mods {
		p.AddMod(m)
	}
	return p
}

// AddMod appends m and sets its owning package.
func (p *Package) AddMod(m *Mod) {
	if m.Variant == "" {
		m.Variant = DefaultVariant
	}
	m.pkg = p
	p.Mods = append(p.Mods, m)
}

// IdentityHash returns the stable identity of the package: the digest of
// its root location.
func (p *Package) IdentityHash(h *hash.Hasher) string {
	return h.String(p.Root)
}

// ContentHash returns the digest of the package's mod-bearing tree.
// Builtin packages have no sources and hash to the empty string.
func (p *Package) ContentHash(h *hash.Hasher) (string, error) {
	if p.Builtin {
		return "", nil
	}
	return h.Directory(p.Root)
}

// EffectiveMods returns the mods applicable to dialect. Dialect-agnostic
// declarations come first; a later declaration with the same asset and
// variant overwrites an earlier one, and dialect-specific declarations
// overwrite dialect-agnostic ones. First-insertion order is kept.
func (p *Package) EffectiveMods(dialect Dialect) []*Mod {
	var order []string
	byName := make(map[string]*Mod)
	put := func(m *Mod) {
		name := m.FullyQualifiedName()
		if _, seen := byName[name]; !seen {
			order = append(order, name)
		}
		byName[name] = m
	}

	for _, m := range p.Mods {
		if m.Dialect == DialectAny {
			put(m)
		}
	}
	if dialect != DialectAny {
		for _, m := range p.Mods {
			if m.Dialect == dialect {
				put(m)
			}
		}
	}

	mods := make([]*Mod, 0, len(order))
	for _, name := range order {
		mods = append(mods, byName[name])
	}
	return mods
}
