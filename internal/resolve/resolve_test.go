package resolve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/glia/internal/asset"
	"github.com/roach88/glia/internal/index"
	"github.com/roach88/glia/internal/preference"
)

func mod(name, variant string) *asset.Mod {
	return &asset.Mod{Asset: name, Variant: variant, RelPath: name + "__" + variant + ".mod"}
}

func newResolver(t *testing.T, pkgs ...*asset.Package) (*Resolver, *preference.Store) {
	t.Helper()
	prefs, err := preference.Open(nil)
	require.NoError(t, err)
	return New(index.Build(pkgs, asset.DialectAny), prefs), prefs
}

// A: Na(0), Na(fast), Kdr(0); B: Na(0), Cad(x)
func fixture(t *testing.T) (*Resolver, *preference.Store) {
	t.Helper()
	a := asset.NewPackage("A", "/a", mod("Na", "0"), mod("Na", "fast"), mod("Kdr", "0"))
	b := asset.NewPackage("B", "/b", mod("Na", "0"), mod("Cad", "x"))
	return newResolver(t, a, b)
}

func TestResolve_SingleCandidate(t *testing.T) {
	hello := &asset.Mod{Asset: "hello", Variant: "test_v", RelPath: "./doesntexist"}
	pkg := asset.NewPackage("test", "/test", hello)
	r, _ := newResolver(t, pkg)

	name, err := r.Resolve(Spec{Asset: "hello"})
	require.NoError(t, err)
	assert.Equal(t, hello.FullyQualifiedName(), name)

	name, err = r.Resolve(Spec{Asset: "hello", Package: "test", Variant: "test_v"})
	require.NoError(t, err)
	assert.Equal(t, hello.FullyQualifiedName(), name)

	for _, parts := range [][]string{{"hello"}, {"hello", "test_v"}, {"hello", "test_v", "test"}} {
		spec, err := ParseSpec(parts...)
		require.NoError(t, err)
		name, err := r.Resolve(spec)
		require.NoError(t, err)
		assert.Equal(t, hello.FullyQualifiedName(), name)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	r, _ := fixture(t)

	first, err := r.Resolve(Spec{Asset: "Kdr"})
	require.NoError(t, err)
	second, err := r.Resolve(Spec{Asset: "Kdr"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolve_UnknownAsset(t *testing.T) {
	r, _ := fixture(t)

	_, err := r.Resolve(Spec{Asset: "Ca"})
	require.Error(t, err)
	assert.True(t, IsUnknownAsset(err))
	assert.ErrorIs(t, err, ErrResolve)
	assert.Equal(t, CodeUnknownAsset, CodeOf(err))
}

func TestResolve_AcrossPackagesIsAmbiguous(t *testing.T) {
	r, _ := fixture(t)

	_, err := r.Resolve(Spec{Asset: "Na"})
	require.Error(t, err)

	var tooMany *TooManyMatchesError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, "Na", tooMany.Asset)
	assert.Equal(t, []string{"glia__A__Na__0", "glia__A__Na__fast", "glia__B__Na__0"}, tooMany.Candidates)
	assert.Contains(t, err.Error(), "glia__B__Na__0")
	assert.ErrorIs(t, err, ErrResolve)
}

func TestResolve_PackageFilterThenDefaultVariant(t *testing.T) {
	r, _ := fixture(t)

	name, err := r.Resolve(Spec{Asset: "Na", Package: "A"})
	require.NoError(t, err)
	assert.Equal(t, "glia__A__Na__0", name)

	name, err = r.Resolve(Spec{Asset: "Na", Package: "B"})
	require.NoError(t, err)
	assert.Equal(t, "glia__B__Na__0", name)

	name, err = r.Resolve(Spec{Asset: "Na", Variant: "fast"})
	require.NoError(t, err)
	assert.Equal(t, "glia__A__Na__fast", name)
}

func TestResolve_SamePackageDefaultVariant(t *testing.T) {
	a := asset.NewPackage("A", "/a", mod("Na", "x"), mod("Na", "0"))
	r, _ := newResolver(t, a)

	name, err := r.Resolve(Spec{Asset: "Na"})
	require.NoError(t, err)
	assert.Equal(t, "glia__A__Na__0", name)
}

func TestResolve_DefaultVariantNeverCrossesPackages(t *testing.T) {
	a := asset.NewPackage("A", "/a", mod("Na", "0"))
	b := asset.NewPackage("B", "/b", mod("Na", "x"))
	r, _ := newResolver(t, a, b)

	_, err := r.Resolve(Spec{Asset: "Na"})
	assert.True(t, IsTooManyMatches(err))
}

func TestResolve_SamePackageWithoutDefaultIsAmbiguous(t *testing.T) {
	a := asset.NewPackage("A", "/a", mod("Na", "x"), mod("Na", "y"))
	r, _ := newResolver(t, a)

	_, err := r.Resolve(Spec{Asset: "Na"})
	assert.True(t, IsTooManyMatches(err))
}

func TestResolve_NoMatches(t *testing.T) {
	r, _ := fixture(t)

	_, err := r.Resolve(Spec{Asset: "Na", Package: "C"})
	require.Error(t, err)

	var noMatches *NoMatchesError
	require.ErrorAs(t, err, &noMatches)
	assert.Equal(t, "C", noMatches.Package)
	assert.Equal(t, CodeNoMatches, CodeOf(err))

	_, err = r.Resolve(Spec{Asset: "Kdr", Variant: "fast"})
	assert.True(t, IsNoMatches(err))
}

func TestResolve_GlobalPreference(t *testing.T) {
	r, prefs := fixture(t)
	require.NoError(t, prefs.SetGlobal("Na", "B", ""))

	name, err := r.Resolve(Spec{Asset: "Na"})
	require.NoError(t, err)
	assert.Equal(t, "glia__B__Na__0", name)

	// Explicit constraints beat preferences.
	name, err = r.Resolve(Spec{Asset: "Na", Package: "A", Variant: "fast"})
	require.NoError(t, err)
	assert.Equal(t, "glia__A__Na__fast", name)
}

func TestResolve_UnhonorablePreferenceFallsThrough(t *testing.T) {
	r, prefs := fixture(t)
	require.NoError(t, prefs.SetGlobal("Kdr", "B", ""))

	name, err := r.Resolve(Spec{Asset: "Kdr"})
	require.NoError(t, err)
	assert.Equal(t, "glia__A__Kdr__0", name)

	// Falls through to the unconstrained pass, which is still ambiguous.
	require.NoError(t, prefs.SetGlobal("Na", "C", ""))
	_, err = r.Resolve(Spec{Asset: "Na"})
	assert.True(t, IsTooManyMatches(err))
}

func TestResolve_AmbiguousPreferenceFallsThrough(t *testing.T) {
	r, prefs := fixture(t)
	require.NoError(t, prefs.SetGlobal("Na", "", "0"))

	_, err := r.ResolvePreference(Spec{Asset: "Na"})
	assert.True(t, IsTooManyMatches(err))

	name, err := r.Resolve(Spec{Asset: "Na", Package: "A"})
	require.NoError(t, err)
	assert.Equal(t, "glia__A__Na__0", name)
}

func TestResolve_WildcardPreference(t *testing.T) {
	r, prefs := fixture(t)
	require.NoError(t, prefs.SetGlobal(preference.WildcardPackage, "A", ""))

	name, err := r.Resolve(Spec{Asset: "Na"})
	require.NoError(t, err)
	assert.Equal(t, "glia__A__Na__0", name)

	name, err = r.Resolve(Spec{Asset: "Cad"})
	require.NoError(t, err)
	assert.Equal(t, "glia__B__Cad__x", name)
}

func TestResolve_ContextScoping(t *testing.T) {
	r, prefs := fixture(t)
	require.NoError(t, prefs.SetGlobal("Na", "A", "fast"))

	before, err := r.Resolve(Spec{Asset: "Na"})
	require.NoError(t, err)
	assert.Equal(t, "glia__A__Na__fast", before)

	scopeErr := errors.New("scope body failed")
	err = prefs.With(preference.Frame{"Na": {Package: "B", Unset: true}}, func() error {
		name, err := r.Resolve(Spec{Asset: "Na"})
		require.NoError(t, err)
		assert.Equal(t, "glia__B__Na__0", name)
		return scopeErr
	})
	assert.ErrorIs(t, err, scopeErr)

	after, err := r.Resolve(Spec{Asset: "Na"})
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestResolvePreference(t *testing.T) {
	r, prefs := fixture(t)

	m, err := r.ResolvePreference(Spec{Asset: "Na"})
	require.NoError(t, err)
	assert.Nil(t, m)

	prefs.SetLocal("Na", "B", "")
	m, err = r.ResolvePreference(Spec{Asset: "Na"})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "glia__B__Na__0", m.FullyQualifiedName())

	_, err = r.ResolvePreference(Spec{Asset: "missing"})
	assert.True(t, IsUnknownAsset(err))
}

func TestLookupAndMod(t *testing.T) {
	r, _ := fixture(t)

	m, err := r.Lookup("glia__B__Cad__x")
	require.NoError(t, err)
	assert.Equal(t, "Cad", m.Asset)

	_, err = r.Lookup("glia__Z__Cad__x")
	assert.True(t, IsLookupError(err))
	assert.ErrorIs(t, err, ErrResolve)

	m, err = r.Mod(Spec{Asset: "glia__A__Na__fast"})
	require.NoError(t, err)
	assert.Equal(t, "fast", m.Variant)

	m, err = r.Mod(Spec{Asset: "Kdr"})
	require.NoError(t, err)
	assert.Equal(t, "A", m.PackageName())
}

func TestResolve_WithoutPreferenceStore(t *testing.T) {
	a := asset.NewPackage("A", "/a", mod("Na", "0"))
	r := New(index.Build([]*asset.Package{a}, asset.DialectAny), nil)

	name, err := r.Resolve(Spec{Asset: "Na"})
	require.NoError(t, err)
	assert.Equal(t, "glia__A__Na__0", name)
}

func TestSetIndex(t *testing.T) {
	a := asset.NewPackage("A", "/a", mod("Na", "0"))
	r, _ := newResolver(t, a)

	hh := &asset.Mod{Asset: "hh", Builtin: true}
	nrn := asset.NewPackage("NEURON", "/nrn", hh)
	r.SetIndex(index.Build([]*asset.Package{a, nrn}, asset.DialectAny))

	name, err := r.Resolve(Spec{Asset: "hh"})
	require.NoError(t, err)
	assert.Equal(t, "hh", name)
	assert.Equal(t, 2, r.Index().Len())
}

func TestParseSpec(t *testing.T) {
	_, err := ParseSpec()
	assert.Error(t, err)
	_, err = ParseSpec("a", "b", "c", "d")
	assert.Error(t, err)

	spec, err := ParseSpec("Na", "fast")
	require.NoError(t, err)
	assert.Equal(t, Spec{Asset: "Na", Variant: "fast", Package: "B"}, spec.With("B", ""))
	assert.Equal(t, Spec{Asset: "Na", Variant: "0"}, spec.With("", "0"))
	assert.Equal(t, "B.Na (fast)", spec.With("B", "").String())
}
