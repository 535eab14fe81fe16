package asset

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ValidationError describes one malformed package or mod declaration.
type ValidationError struct {
	// Package is the declaring package's name (may be empty if that is the problem).
	Package string

	// Index is the mod's position in the declaration list, -1 for package fields.
	Index int

	// Field names the offending attribute.
	Field string

	Message string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("package %q: mod[%d].%s: %s", e.Package, e.Index, e.Field, e.Message)
	}
	return fmt.Sprintf("package %q: %s: %s", e.Package, e.Field, e.Message)
}

// NormalizeName returns name in Unicode NFC form so visually identical
// names from different sources compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// Normalize rewrites the package and mod names of p to NFC in place.
func Normalize(p *Package) {
	p.Name = NormalizeName(p.Name)
	for _, m := range p.Mods {
		m.Asset = NormalizeName(m.Asset)
		m.Variant = NormalizeName(m.Variant)
	}
}

// Validate checks p against the declaration schema. All problems are
// reported, joined with errors.Join.
func Validate(p *Package) error {
	var errs []error
	fail := func(index int, field, format string, args ...any) {
		errs = append(errs, &ValidationError{
			Package: p.Name,
			Index:   index,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if msg := checkName(p.Name); msg != "" {
		fail(-1, "name", "%s", msg)
	}
	if p.Root == "" && !p.Builtin {
		fail(-1, "root", "root is required")
	}

	type key struct {
		asset, variant string
		dialect        Dialect
	}
	seen := make(map[key]int)

	for i, m := range p.Mods {
		if m == nil {
			fail(i, "mod", "nil mod declaration")
			continue
		}
		if msg := checkName(m.Asset); msg != "" {
			fail(i, "asset", "%s", msg)
		}
		if msg := checkName(m.Variant); msg != "" {
			fail(i, "variant", "%s", msg)
		}
		if !ValidDialect(m.Dialect) {
			fail(i, "dialect", "unknown dialect %q: must be %q or %q", m.Dialect, DialectNeuron, DialectArbor)
		}
		if !m.Builtin && !p.Builtin && m.RelPath == "" {
			fail(i, "path", "path is required for non-builtin mods")
		}
		if m.pkg != nil && m.pkg != p {
			fail(i, "package", "mod belongs to package %q", m.pkg.Name)
		}

		k := key{m.Asset, m.Variant, m.Dialect}
		if first, dup := seen[k]; dup {
			fail(i, "asset", "duplicate declaration of %s variant %q (dialect %q), first at mod[%d]",
				m.Asset, m.Variant, m.Dialect, first)
			continue
		}
		seen[k] = i
	}

	return errors.Join(errs...)
}

// checkName returns a problem description, or "" if name is usable as a
// package, asset or variant name.
func checkName(name string) string {
	if name == "" {
		return "must not be empty"
	}
	if strings.Contains(name, nameSeparator) {
		return fmt.Sprintf("%q must not contain %q", name, nameSeparator)
	}
	// An edge underscore would merge with a separator of the FQN.
	if strings.HasPrefix(name, "_") || strings.HasSuffix(name, "_") {
		return fmt.Sprintf("%q must not start or end with %q", name, "_")
	}
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Sprintf("%q must not contain whitespace", name)
		}
	}
	return ""
}
