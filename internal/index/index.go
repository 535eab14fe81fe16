// Package index maps short asset names to their candidate mods across all
// known packages, and fully-qualified names back to their mod.
//
// An Index is derived state: rebuild it with Build whenever the package set
// changes. There is no incremental update.
package index

import (
	"sort"

	"github.com/roach88/glia/internal/asset"
)

// Entry lists the mods sharing one asset name, in package discovery order
// then declaration order.
type Entry struct {
	Name string
	Mods []*asset.Mod
}

// Len returns the number of candidates.
func (e *Entry) Len() int {
	return len(e.Mods)
}

// Index is the forward (asset -> entry) and reverse (name -> mod) mapping.
type Index struct {
	dialect asset.Dialect
	entries map[string]*Entry
	order   []string
	reverse map[string]*asset.Mod
}

// Build indexes the effective mods of every package for dialect.
func Build(pkgs []*asset.Package, dialect asset.Dialect) *Index {
	idx := &Index{
		dialect: dialect,
		entries: make(map[string]*Entry),
		reverse: make(map[string]*asset.Mod),
	}
	for _, pkg := range pkgs {
		for _, mod := range pkg.EffectiveMods(dialect) {
			entry, ok := idx.entries[mod.Asset]
			if !ok {
				entry = &Entry{Name: mod.Asset}
				idx.entries[mod.Asset] = entry
				idx.order = append(idx.order, mod.Asset)
			}
			entry.Mods = append(entry.Mods, mod)
			idx.reverse[mod.FullyQualifiedName()] = mod
		}
	}
	return idx
}

// Dialect returns the dialect the index was built for.
func (idx *Index) Dialect() asset.Dialect {
	return idx.dialect
}

// Entry returns the candidates for name.
func (idx *Index) Entry(name string) (*Entry, bool) {
	e, ok := idx.entries[name]
	return e, ok
}

// Lookup returns the mod known by a fully-qualified name.
func (idx *Index) Lookup(fqn string) (*asset.Mod, bool) {
	m, ok := idx.reverse[fqn]
	return m, ok
}

// Entries returns every entry in first-seen order.
func (idx *Index) Entries() []*Entry {
	out := make([]*Entry, 0, len(idx.order))
	for _, name := range idx.order {
		out = append(out, idx.entries[name])
	}
	return out
}

// Assets returns the sorted asset names.
func (idx *Index) Assets() []string {
	names := append([]string(nil), idx.order...)
	sort.Strings(names)
	return names
}

// Len returns the number of distinct assets.
func (idx *Index) Len() int {
	return len(idx.entries)
}
