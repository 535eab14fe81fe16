package hash

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string, order []string) {
	t.Helper()
	for _, rel := range order {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(files[rel]), 0o644))
	}
}

var tree = map[string]string{
	"mods/Na__0.mod":   "NEURON { SUFFIX Na }",
	"mods/Na__t.mod":   "NEURON { SUFFIX Na_t }",
	"mods/AMPA__0.mod": "NEURON { POINT_PROCESS AMPA }",
	"README":           "test mods",
}

func TestDirectory_StableAcrossCalls(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, tree, []string{"README", "mods/Na__0.mod", "mods/Na__t.mod", "mods/AMPA__0.mod"})

	first, err := Directory(root)
	require.NoError(t, err)
	second, err := Directory(root)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestDirectory_IndependentOfCreationOrder(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	writeTree(t, a, tree, []string{"README", "mods/Na__0.mod", "mods/Na__t.mod", "mods/AMPA__0.mod"})
	writeTree(t, b, tree, []string{"mods/AMPA__0.mod", "mods/Na__t.mod", "README", "mods/Na__0.mod"})

	ha, err := Directory(a)
	require.NoError(t, err)
	hb, err := Directory(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
}

func TestDirectory_ChangesWithContent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, tree, []string{"README", "mods/Na__0.mod"})

	before, err := Directory(root)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "mods", "Na__0.mod"), []byte("NEURON { SUFFIX Nb }"), 0o644))
	after, err := Directory(root)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestDirectory_ChangesWithName(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, tree, []string{"README"})
	before, err := Directory(root)
	require.NoError(t, err)

	require.NoError(t, os.Rename(filepath.Join(root, "README"), filepath.Join(root, "README.md")))
	after, err := Directory(root)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestDirectory_Errors(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := Directory(filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Directory(file)
	assert.ErrorIs(t, err, ErrNotADirectory)

	_, err = File(root)
	assert.ErrorIs(t, err, ErrNotAFile)

	_, err = File(filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirectory_FollowsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	src := t.TempDir()
	writeTree(t, src, tree, []string{"README", "mods/Na__0.mod", "mods/Na__t.mod", "mods/AMPA__0.mod"})

	root := t.TempDir()
	require.NoError(t, os.Symlink(filepath.Join(src, "mods"), filepath.Join(root, "mods")))
	require.NoError(t, os.Symlink(filepath.Join(src, "README"), filepath.Join(root, "README")))

	linked, err := Directory(root)
	require.NoError(t, err)
	plain, err := Directory(src)
	require.NoError(t, err)
	assert.Equal(t, plain, linked)

	require.NoError(t, os.WriteFile(filepath.Join(src, "mods", "Na__0.mod"), []byte("NEURON { SUFFIX Na2 }"), 0o644))
	changed, err := Directory(root)
	require.NoError(t, err)
	assert.NotEqual(t, linked, changed)

	require.NoError(t, os.Symlink(filepath.Join(src, "gone"), filepath.Join(root, "dangling")))
	_, err = Directory(root)
	assert.NoError(t, err)
}

func TestFile_LargerThanChunk(t *testing.T) {
	root := t.TempDir()
	data := make([]byte, ChunkSize*3+17)
	for i := range data {
		data[i] = byte(i % 251)
	}
	path := filepath.Join(root, "big.mod")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	h1, err := File(path)
	require.NoError(t, err)

	data[len(data)-1]++
	require.NoError(t, os.WriteFile(path, data, 0o644))
	h2, err := File(path)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestNew_Algorithms(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, tree, []string{"README", "mods/Na__0.mod"})

	b3, err := New(Blake3)
	require.NoError(t, err)
	hw, err := New(Highway)
	require.NoError(t, err)

	d1, err := b3.Directory(root)
	require.NoError(t, err)
	d2, err := hw.Directory(root)
	require.NoError(t, err)

	assert.Len(t, d1, 64)
	assert.Len(t, d2, 16)
	assert.NotEqual(t, d1, d2)

	def, err := New("")
	require.NoError(t, err)
	assert.Equal(t, Blake3, def.Algorithm())

	_, err = New("md5")
	assert.Error(t, err)
}

func TestString_Deterministic(t *testing.T) {
	assert.Equal(t, String("/opt/glia"), String("/opt/glia"))
	assert.NotEqual(t, String("/opt/glia"), String("/opt/glia2"))
}
