package preference

import (
	"fmt"
	"maps"
)

// Wildcard keys supply defaults for every asset without a specific preference.
const (
	WildcardPackage = "__pkg"
	WildcardVariant = "__variant"
)

// Preference steers resolution of one asset. Empty fields express no opinion.
type Preference struct {
	Package string `json:"package,omitempty"`
	Variant string `json:"variant,omitempty"`
}

// IsZero reports whether p expresses no opinion.
func (p Preference) IsZero() bool {
	return p.Package == "" && p.Variant == ""
}

// Patch is one entry of a context frame.
type Patch struct {
	Package string
	Variant string

	// Unset clears inherited fields before Package and Variant apply.
	Unset bool
}

// Frame is a temporary overlay keyed by asset name or wildcard key.
// For wildcard keys only Package (for __pkg) or Variant (for __variant)
// is read.
type Frame map[string]Patch

// FrameID identifies a pushed frame.
type FrameID uint64

// Backend persists the global preference layer.
type Backend interface {
	Load() (Global, error)
	Save(Global) error
}

// Global is the persisted layer.
type Global struct {
	Assets          map[string]Preference
	WildcardPackage string
	WildcardVariant string
}

type stackedFrame struct {
	id    FrameID
	frame Frame
}

// Store merges the preference layers. It is not safe for concurrent use.
type Store struct {
	backend Backend
	global  Global
	local   map[string]Preference
	frames  []stackedFrame
	nextID  FrameID
}

// Open loads the global layer from backend. A nil backend keeps global
// preferences in memory only.
func Open(backend Backend) (*Store, error) {
	s := &Store{
		backend: backend,
		local:   make(map[string]Preference),
	}
	if backend != nil {
		g, err := backend.Load()
		if err != nil {
			return nil, fmt.Errorf("load preferences: %w", err)
		}
		s.global = g
	}
	if s.global.Assets == nil {
		s.global.Assets = make(map[string]Preference)
	}
	return s, nil
}

// SetGlobal records a persisted preference for asset and saves it before
// returning. Use the wildcard keys to set defaults for every asset.
func (s *Store) SetGlobal(asset, pkg, variant string) error {
	next := s.global
	next.Assets = maps.Clone(s.global.Assets)
	switch asset {
	case WildcardPackage:
		next.WildcardPackage = pkg
	case WildcardVariant:
		next.WildcardVariant = variant
	default:
		next.Assets[asset] = Preference{Package: pkg, Variant: variant}
	}

	if s.backend != nil {
		if err := s.backend.Save(next); err != nil {
			return fmt.Errorf("save preferences: %w", err)
		}
	}
	s.global = next
	return nil
}

// SetLocal records a preference for the lifetime of the process.
func (s *Store) SetLocal(asset, pkg, variant string) {
	s.local[asset] = Preference{Package: pkg, Variant: variant}
}

// Push stacks frame on top of all layers and returns its id.
func (s *Store) Push(frame Frame) FrameID {
	s.nextID++
	s.frames = append(s.frames, stackedFrame{id: s.nextID, frame: maps.Clone(frame)})
	return s.nextID
}

// Pop removes the frame with id. Frames need not be popped in LIFO order.
// Popping an unknown id is a no-op.
func (s *Store) Pop(id FrameID) {
	for i, f := range s.frames {
		if f.id == id {
			s.frames = append(s.frames[:i], s.frames[i+1:]...)
			return
		}
	}
}

// With pushes frame for the duration of fn. The frame is popped on every
// exit path, including errors and panics.
func (s *Store) With(frame Frame, fn func() error) error {
	id := s.Push(frame)
	defer s.Pop(id)
	return fn()
}

// Depth returns the number of active frames.
func (s *Store) Depth() int {
	return len(s.frames)
}

// Context builds a frame from per-asset patches plus optional wildcard
// package and variant defaults.
func Context(assets map[string]Patch, pkg, variant string) Frame {
	frame := make(Frame, len(assets)+2)
	maps.Copy(frame, assets)
	if pkg != "" {
		frame[WildcardPackage] = Patch{Package: pkg}
	}
	if variant != "" {
		frame[WildcardVariant] = Patch{Variant: variant}
	}
	return frame
}

// wildcards returns the wildcard defaults merged across the global layer
// and every frame.
func (s *Store) wildcards() Preference {
	w := Preference{Package: s.global.WildcardPackage, Variant: s.global.WildcardVariant}
	for _, f := range s.frames {
		if patch, ok := f.frame[WildcardPackage]; ok {
			if patch.Unset {
				w.Package = ""
			}
			if patch.Package != "" {
				w.Package = patch.Package
			}
		}
		if patch, ok := f.frame[WildcardVariant]; ok {
			if patch.Unset {
				w.Variant = ""
			}
			if patch.Variant != "" {
				w.Variant = patch.Variant
			}
		}
	}
	return w
}

// Effective returns the merged preference for asset, field by field:
// wildcard defaults, then the global, local and frame layers in order.
// ok is false when no layer expresses any opinion about asset.
func (s *Store) Effective(asset string) (pref Preference, ok bool) {
	pref = s.wildcards()
	ok = !pref.IsZero()

	overlay := func(p Preference) {
		if p.Package != "" {
			pref.Package = p.Package
		}
		if p.Variant != "" {
			pref.Variant = p.Variant
		}
	}
	if p, has := s.global.Assets[asset]; has {
		overlay(p)
		ok = true
	}
	if p, has := s.local[asset]; has {
		overlay(p)
		ok = true
	}
	for _, f := range s.frames {
		patch, has := f.frame[asset]
		if !has {
			continue
		}
		ok = true
		if patch.Unset {
			pref = Preference{}
		}
		overlay(Preference{Package: patch.Package, Variant: patch.Variant})
	}
	return pref, ok
}

// Snapshot returns the effective preference of every asset that any layer
// mentions, plus the wildcard keys when set.
func (s *Store) Snapshot() map[string]Preference {
	out := make(map[string]Preference)
	add := func(asset string) {
		if asset == WildcardPackage || asset == WildcardVariant {
			return
		}
		if _, done := out[asset]; !done {
			out[asset], _ = s.Effective(asset)
		}
	}
	for asset := range s.global.Assets {
		add(asset)
	}
	for asset := range s.local {
		add(asset)
	}
	for _, f := range s.frames {
		for asset := range f.frame {
			add(asset)
		}
	}

	w := s.wildcards()
	if w.Package != "" {
		out[WildcardPackage] = Preference{Package: w.Package}
	}
	if w.Variant != "" {
		out[WildcardVariant] = Preference{Variant: w.Variant}
	}
	return out
}
