package asset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/glia/internal/hash"
)

func TestFullyQualifiedName(t *testing.T) {
	na := &Mod{Asset: "Na", RelPath: "mods/Na__0.mod"}
	fast := &Mod{Asset: "Na", Variant: "fast", RelPath: "mods/Na__fast.mod"}
	pkg := NewPackage("A", "/pkgs/a", na, fast)

	assert.Equal(t, "glia__A__Na__0", na.FullyQualifiedName())
	assert.Equal(t, "glia__A__Na__fast", fast.FullyQualifiedName())
	assert.Equal(t, pkg, na.Package())
	assert.Equal(t, filepath.Join("/pkgs/a", "mods/Na__0.mod"), na.Path())

	a, v, p := fast.ID()
	assert.Equal(t, []string{"Na", "fast", "A"}, []string{a, v, p})
	assert.Equal(t, "A.Na(fast)", fast.String())
}

func TestFullyQualifiedName_Builtin(t *testing.T) {
	hh := &Mod{Asset: "hh", Builtin: true}
	NewPackage("NEURON", "/usr/lib/neuron", hh)

	assert.Equal(t, "hh", hh.FullyQualifiedName())
}

func TestEffectiveMods_DialectOverride(t *testing.T) {
	common := &Mod{Asset: "Na", RelPath: "na.mod"}
	arbor := &Mod{Asset: "Na", RelPath: "na_arbor.mod", Dialect: DialectArbor}
	kdr := &Mod{Asset: "Kdr", RelPath: "kdr.mod"}
	neuronOnly := &Mod{Asset: "Cad", RelPath: "cad.mod", Dialect: DialectNeuron}
	pkg := NewPackage("P", "/p", common, arbor, kdr, neuronOnly)

	assert.Equal(t, []*Mod{common, kdr}, pkg.EffectiveMods(DialectAny))
	assert.Equal(t, []*Mod{arbor, kdr}, pkg.EffectiveMods(DialectArbor))
	assert.Equal(t, []*Mod{common, kdr, neuronOnly}, pkg.EffectiveMods(DialectNeuron))
}

func TestEffectiveMods_LaterDeclarationWins(t *testing.T) {
	first := &Mod{Asset: "Na", RelPath: "a.mod"}
	second := &Mod{Asset: "Na", RelPath: "b.mod"}
	pkg := NewPackage("P", "/p", first, second)

	assert.Equal(t, []*Mod{second}, pkg.EffectiveMods(DialectAny))
}

func TestPackageHashes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "na.mod"), []byte("NEURON {}"), 0o644))
	pkg := NewPackage("P", root, &Mod{Asset: "Na", RelPath: "na.mod"})
	h := hash.Default()

	assert.Equal(t, h.String(root), pkg.IdentityHash(h))

	content, err := pkg.ContentHash(h)
	require.NoError(t, err)
	expected, err := hash.Directory(root)
	require.NoError(t, err)
	assert.Equal(t, expected, content)

	builtin := &Package{Name: "NEURON", Builtin: true}
	content, err = builtin.ContentHash(h)
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		pkg    *Package
		fields []string
	}{
		{
			name: "valid",
			pkg:  NewPackage("P", "/p", &Mod{Asset: "Na", RelPath: "na.mod"}, &Mod{Asset: "Na", Variant: "t", RelPath: "t.mod"}),
		},
		{
			name:   "empty package name",
			pkg:    NewPackage("", "/p", &Mod{Asset: "Na", RelPath: "na.mod"}),
			fields: []string{"name"},
		},
		{
			name:   "separator in asset",
			pkg:    NewPackage("P", "/p", &Mod{Asset: "Na__x", RelPath: "na.mod"}),
			fields: []string{"asset"},
		},
		{
			name:   "unknown dialect",
			pkg:    NewPackage("P", "/p", &Mod{Asset: "Na", RelPath: "na.mod", Dialect: "nest"}),
			fields: []string{"dialect"},
		},
		{
			name:   "missing path",
			pkg:    NewPackage("P", "/p", &Mod{Asset: "Na"}),
			fields: []string{"path"},
		},
		{
			name: "duplicate declaration",
			pkg: NewPackage("P", "/p",
				&Mod{Asset: "Na", RelPath: "a.mod"},
				&Mod{Asset: "Na", RelPath: "b.mod"}),
			fields: []string{"asset"},
		},
		{
			name: "same name in different dialects is an override",
			pkg: NewPackage("P", "/p",
				&Mod{Asset: "Na", RelPath: "a.mod"},
				&Mod{Asset: "Na", RelPath: "b.mod", Dialect: DialectArbor}),
		},
		{
			name: "edge underscores",
			pkg: NewPackage("a_", "/p",
				&Mod{Asset: "_b", RelPath: "a.mod"},
				&Mod{Asset: "c", Variant: "_", RelPath: "c.mod"}),
			fields: []string{"name", "asset", "variant"},
		},
		{
			name: "inner underscore",
			pkg:  NewPackage("my_pkg", "/p", &Mod{Asset: "Na_t", Variant: "x_1", RelPath: "a.mod"}),
		},
		{
			name:   "whitespace in variant",
			pkg:    NewPackage("P", "/p", &Mod{Asset: "Na", Variant: "a b", RelPath: "a.mod"}),
			fields: []string{"variant"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.pkg)
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			joined, ok := err.(interface{ Unwrap() []error })
			require.True(t, ok)
			var got []string
			for _, e := range joined.Unwrap() {
				var ve *ValidationError
				require.ErrorAs(t, e, &ve)
				got = append(got, ve.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	pkg := NewPackage("cafe\u0301", "/p", &Mod{Asset: "Na\u0301", RelPath: "a.mod"})
	Normalize(pkg)

	assert.Equal(t, "caf\u00e9", pkg.Name)
	assert.Equal(t, "N\u00e1", pkg.Mods[0].Asset)
}
