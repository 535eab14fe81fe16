// Package resolve turns an asset name plus optional package and variant
// constraints into the fully-qualified name of exactly one mod.
//
// Resolution runs two passes. The preference pass fills missing
// constraints from the preference store and returns a candidate if the
// filled-in constraints select one; a preference that cannot be honored is
// ignored. The unconstrained pass then filters by the caller's explicit
// constraints only and fails with a typed error if it cannot settle on one
// candidate.
//
// Both passes share one tie-break: when every remaining candidate belongs
// to the same package and one of them is the default variant "0", that one
// wins. The rule never applies across packages.
package resolve

import (
	"fmt"
	"strings"

	"github.com/roach88/glia/internal/asset"
	"github.com/roach88/glia/internal/index"
	"github.com/roach88/glia/internal/preference"
)

// Spec is a selection request: an asset name with optional constraints.
type Spec struct {
	Asset   string
	Variant string
	Package string
}

// ParseSpec builds a Spec from the ordered tuple form
// (name[, variant[, package]]).
func ParseSpec(parts ...string) (Spec, error) {
	switch len(parts) {
	case 1:
		return Spec{Asset: parts[0]}, nil
	case 2:
		return Spec{Asset: parts[0], Variant: parts[1]}, nil
	case 3:
		return Spec{Asset: parts[0], Variant: parts[1], Package: parts[2]}, nil
	default:
		return Spec{}, fmt.Errorf("asset spec takes 1 to 3 elements (name[, variant[, package]]), got %d", len(parts))
	}
}

// With returns s with pkg and variant overriding the tuple-supplied
// values when non-empty.
func (s Spec) With(pkg, variant string) Spec {
	if pkg != "" {
		s.Package = pkg
	}
	if variant != "" {
		s.Variant = variant
	}
	return s
}

func (s Spec) String() string {
	return selection(s.Asset, s.Package, s.Variant)
}

// IsFullyQualified reports whether name is already a fully-qualified
// (non-builtin) mod name.
func IsFullyQualified(name string) bool {
	return strings.HasPrefix(name, asset.NamePrefix)
}

// Resolver resolves specs against an index and a preference store.
// Like the store it reads, it is not safe for concurrent use.
type Resolver struct {
	idx   *index.Index
	prefs *preference.Store
}

// New creates a Resolver. prefs may be nil to resolve without preferences.
func New(idx *index.Index, prefs *preference.Store) *Resolver {
	return &Resolver{idx: idx, prefs: prefs}
}

// SetIndex swaps in a rebuilt index.
func (r *Resolver) SetIndex(idx *index.Index) {
	r.idx = idx
}

// Index returns the index in use.
func (r *Resolver) Index() *index.Index {
	return r.idx
}

// Resolve returns the fully-qualified name selected by spec.
func (r *Resolver) Resolve(spec Spec) (string, error) {
	entry, ok := r.idx.Entry(spec.Asset)
	if !ok {
		return "", &UnknownAssetError{Asset: spec.Asset}
	}

	if mod, _ := r.preferred(entry, spec); mod != nil {
		return mod.FullyQualifiedName(), nil
	}

	candidates := filter(entry.Mods, spec.Package, spec.Variant)
	switch len(candidates) {
	case 0:
		return "", &NoMatchesError{Asset: spec.Asset, Package: spec.Package, Variant: spec.Variant}
	case 1:
		return candidates[0].FullyQualifiedName(), nil
	}

	mod, err := tieBreak(candidates, spec)
	if err != nil {
		return "", err
	}
	return mod.FullyQualifiedName(), nil
}

// ResolvePreference runs the preference pass alone. It returns nil, nil
// when preferences hold no opinion or select no candidate, and a
// TooManyMatchesError when they select several the tie-break cannot settle.
func (r *Resolver) ResolvePreference(spec Spec) (*asset.Mod, error) {
	entry, ok := r.idx.Entry(spec.Asset)
	if !ok {
		return nil, &UnknownAssetError{Asset: spec.Asset}
	}
	return r.preferred(entry, spec)
}

func (r *Resolver) preferred(entry *index.Entry, spec Spec) (*asset.Mod, error) {
	if r.prefs == nil {
		return nil, nil
	}
	pref, ok := r.prefs.Effective(spec.Asset)
	if !ok {
		return nil, nil
	}

	constrained := spec
	if constrained.Package == "" {
		constrained.Package = pref.Package
	}
	if constrained.Variant == "" {
		constrained.Variant = pref.Variant
	}

	candidates := filter(entry.Mods, constrained.Package, constrained.Variant)
	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return candidates[0], nil
	}
	return tieBreak(candidates, constrained)
}

// Lookup returns the mod known by a fully-qualified name.
func (r *Resolver) Lookup(fqn string) (*asset.Mod, error) {
	mod, ok := r.idx.Lookup(fqn)
	if !ok {
		return nil, &LookupError{Name: fqn}
	}
	return mod, nil
}

// Mod resolves spec and looks up the result. A fully-qualified asset name
// bypasses resolution.
func (r *Resolver) Mod(spec Spec) (*asset.Mod, error) {
	name := spec.Asset
	if !IsFullyQualified(name) {
		var err error
		if name, err = r.Resolve(spec); err != nil {
			return nil, err
		}
	}
	return r.Lookup(name)
}

func filter(mods []*asset.Mod, pkg, variant string) []*asset.Mod {
	out := make([]*asset.Mod, 0, len(mods))
	for _, m := range mods {
		if pkg != "" && m.PackageName() != pkg {
			continue
		}
		if variant != "" && m.Variant != variant {
			continue
		}
		out = append(out, m)
	}
	return out
}

// tieBreak settles an ambiguity within one package in favor of its
// default variant.
func tieBreak(candidates []*asset.Mod, spec Spec) (*asset.Mod, error) {
	samePackage := true
	var fallback *asset.Mod
	for _, m := range candidates {
		if m.Package() != candidates[0].Package() {
			samePackage = false
			break
		}
		if fallback == nil && m.Variant == asset.DefaultVariant {
			fallback = m
		}
	}
	if samePackage && fallback != nil {
		return fallback, nil
	}

	names := make([]string, len(candidates))
	for i, m := range candidates {
		names[i] = m.FullyQualifiedName()
	}
	return nil, &TooManyMatchesError{
		Asset:      spec.Asset,
		Package:    spec.Package,
		Variant:    spec.Variant,
		Candidates: names,
	}
}
