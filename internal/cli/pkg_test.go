package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/glia/internal/testutil"
)

func TestPkg_NewAddCheck(t *testing.T) {
	env := newCLIEnv(t)
	root := filepath.Join(env.pkgDir, "C")
	src := filepath.Join(t.TempDir(), "cad.mod")
	testutil.WriteFile(t, src, "NEURON { SUFFIX cad }\n")

	out, err := env.run(t, "pkg", "new", "C", "--dir", root)
	require.NoError(t, err)
	assert.Equal(t, "✓ Created package C in $PKGS/C\n", out)

	out, err = env.run(t, "pkg", "add", src, "--name", "cad", "--root", root)
	require.NoError(t, err)
	assert.Equal(t, "✓ Added glia__C__cad__0 as mods/cad__0.mod\n", out)

	out, err = env.run(t, "pkg", "add", src, "-n", "cad", "--variant", "slow", "--point-process", "--root", root)
	require.NoError(t, err)
	assert.Equal(t, "✓ Added glia__C__cad__slow as mods/cad__slow.mod\n", out)

	out, err = env.run(t, "pkg", "check", root)
	require.NoError(t, err)
	assert.Equal(t, "✓ Package C is consistent (2 mods)\nMods: glia__C__cad__0, glia__C__cad__slow\n", out)

	// The new package is discovered like any installed one.
	out, err = env.run(t, "resolve", "cad")
	require.NoError(t, err)
	assert.Equal(t, "glia__C__cad__0\n", out)
}

func TestPkgNew_Existing(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "pkg", "new", "A", "--dir", filepath.Join(env.pkgDir, "A"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeManifest+"]")
}

func TestPkgAdd_Refusals(t *testing.T) {
	env := newCLIEnv(t)
	src := filepath.Join(t.TempDir(), "Na.mod")
	testutil.WriteFile(t, src, "NEURON { SUFFIX Na2 }\n")
	rootA := filepath.Join(env.pkgDir, "A")

	// Existing file without --overwrite.
	out, err := env.run(t, "pkg", "add", src, "--name", "Na", "--target", "mods/Na.mod", "--root", rootA)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "already exists")

	// CUE manifests are not rewritten.
	out, err = env.run(t, "pkg", "add", src, "--name", "Cad", "--root", filepath.Join(env.pkgDir, "B"))
	require.Error(t, err)
	assert.Contains(t, out, "not writable")

	_, err = env.run(t, "pkg", "add", src, "--root", rootA)
	assert.Error(t, err, "--name is required")
}

func TestPkgAdd_Overwrite(t *testing.T) {
	env := newCLIEnv(t)
	src := filepath.Join(t.TempDir(), "Na.mod")
	testutil.WriteFile(t, src, "NEURON { SUFFIX Na2 }\n")
	rootA := filepath.Join(env.pkgDir, "A")

	_, err := env.run(t, "pkg", "add", src, "--name", "Na", "--target", "mods/Na.mod", "-w", "--root", rootA)
	require.NoError(t, err)

	out, err := env.run(t, "pkg", "check", rootA, "--format", "json")
	require.NoError(t, err)
	var result PkgResult
	decode(t, out, &result)
	assert.Equal(t, "A", result.Package)
	assert.Equal(t, []string{"glia__A__Na__fast", "glia__A__Kdr__0", "glia__A__Na__0"}, result.Mods)
}

func TestPkgCheck_MissingModFile(t *testing.T) {
	env := newCLIEnv(t)
	testutil.WriteFile(t, filepath.Join(env.pkgDir, "D", "glia.yaml"), "name: D\nmods:\n  - asset: Cad\n    path: mods/Cad.mod\n")

	out, err := env.run(t, "pkg", "check", filepath.Join(env.pkgDir, "D"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, strings.HasPrefix(out, "Error ["+ErrCodeManifest+"]"), out)
	assert.Contains(t, out, "glia__D__Cad__0")
}
