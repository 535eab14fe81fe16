package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/glia/internal/asset"
)

// DefaultModDir is where new packages keep their mod files.
const DefaultModDir = "mods"

var (
	// ErrManifestExists is returned by Create for a directory that already
	// holds a package.
	ErrManifestExists = errors.New("package manifest already exists")

	// ErrModExists is returned by AddMod when the destination file exists
	// and overwriting was not requested.
	ErrModExists = errors.New("mod file already exists")

	// ErrReadOnlyManifest is returned when saving a manifest glia does not
	// write. Only YAML manifests are rewritten.
	ErrReadOnlyManifest = errors.New("manifest is not writable")
)

// Create starts package name in dir with an empty YAML manifest and a
// mod directory.
func Create(dir, name string) (*Manifest, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve package dir: %w", err)
	}
	if HasManifest(root) {
		return nil, fmt.Errorf("%w in %s", ErrManifestExists, root)
	}

	m := &Manifest{
		Name: asset.NormalizeName(name),
		Mods: []ModDecl{},
		File: filepath.Join(root, YAMLFile),
	}
	if _, err := m.ToPackage(root); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(root, DefaultModDir), 0o755); err != nil {
		return nil, fmt.Errorf("create mod dir: %w", err)
	}
	if err := m.Save(); err != nil {
		return nil, err
	}
	return m, nil
}

// Save writes m to its file through a temp file and rename.
func (m *Manifest) Save() error {
	if filepath.Base(m.File) != YAMLFile {
		return fmt.Errorf("%w: %s", ErrReadOnlyManifest, m.File)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return writeAtomic(m.File, buf.Bytes())
}

// AddOptions describe a mod added with AddMod.
type AddOptions struct {
	Asset   string
	Variant string // defaults to "0"
	Dialect string

	PointProcess   bool
	ArtificialCell bool

	// Target is the destination relative to the package root: an existing
	// directory or a file path. It defaults to DefaultModDir.
	Target string

	// Overwrite replaces an existing file and declaration.
	Overwrite bool
}

// AddMod copies the mod file src into the package rooted at root,
// declares it in m and saves m. Nothing is written when the resulting
// package would not validate.
func (m *Manifest) AddMod(root, src string, opts AddOptions) (ModDecl, error) {
	if filepath.Base(m.File) != YAMLFile {
		return ModDecl{}, fmt.Errorf("%w: %s", ErrReadOnlyManifest, m.File)
	}
	info, err := os.Stat(src)
	if err != nil {
		return ModDecl{}, fmt.Errorf("mod source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return ModDecl{}, fmt.Errorf("mod source %s is not a file", src)
	}

	if opts.Variant == "" {
		opts.Variant = asset.DefaultVariant
	}
	dest, err := modDest(root, opts)
	if err != nil {
		return ModDecl{}, err
	}
	if _, err := os.Stat(dest); err == nil && !opts.Overwrite {
		return ModDecl{}, fmt.Errorf("%w: %s", ErrModExists, dest)
	}
	rel, err := filepath.Rel(root, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ModDecl{}, fmt.Errorf("mod target %s is outside package root %s", dest, root)
	}

	decl := ModDecl{
		Asset:          asset.NormalizeName(opts.Asset),
		Variant:        asset.NormalizeName(opts.Variant),
		Dialect:        opts.Dialect,
		Path:           filepath.ToSlash(rel),
		PointProcess:   opts.PointProcess,
		ArtificialCell: opts.ArtificialCell,
	}

	next := *m
	next.Mods = make([]ModDecl, 0, len(m.Mods)+1)
	for _, d := range m.Mods {
		if opts.Overwrite && sameMod(d, decl) {
			continue
		}
		next.Mods = append(next.Mods, d)
	}
	next.Mods = append(next.Mods, decl)
	if _, err := next.ToPackage(root); err != nil {
		return ModDecl{}, err
	}

	content, err := os.ReadFile(src)
	if err != nil {
		return ModDecl{}, fmt.Errorf("read mod source: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return ModDecl{}, fmt.Errorf("create mod dir: %w", err)
	}
	if err := writeAtomic(dest, content); err != nil {
		return ModDecl{}, err
	}
	if err := next.Save(); err != nil {
		return ModDecl{}, err
	}
	*m = next
	return decl, nil
}

func sameMod(a, b ModDecl) bool {
	variant := func(d ModDecl) string {
		if d.Variant == "" {
			return asset.DefaultVariant
		}
		return asset.NormalizeName(d.Variant)
	}
	return asset.NormalizeName(a.Asset) == asset.NormalizeName(b.Asset) &&
		variant(a) == variant(b) && a.Dialect == b.Dialect
}

// modDest names the file AddMod writes. Files added to a directory are
// called <asset>__<variant>.mod.
func modDest(root string, opts AddOptions) (string, error) {
	target := opts.Target
	if target == "" {
		target = DefaultModDir
	}
	dest := target
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(root, target)
	}
	info, err := os.Stat(dest)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(dest, opts.Asset+"__"+opts.Variant+".mod"), nil
	case err == nil || errors.Is(err, os.ErrNotExist):
		if opts.Target == "" {
			return filepath.Join(dest, opts.Asset+"__"+opts.Variant+".mod"), nil
		}
		return dest, nil
	default:
		return "", fmt.Errorf("mod target: %w", err)
	}
}

// Check loads the package in dir and verifies that every declared mod
// file is present. All problems are reported, joined with errors.Join.
func Check(dir string) (*asset.Package, error) {
	pkg, err := LoadPackage(dir)
	if err != nil {
		return nil, err
	}
	var errs []error
	for _, mod := range pkg.Mods {
		if mod.Builtin {
			continue
		}
		info, err := os.Stat(mod.Path())
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: mod file %s: %w", mod.FullyQualifiedName(), mod.RelPath, err))
		case !info.Mode().IsRegular():
			errs = append(errs, fmt.Errorf("%s: mod file %s is not a regular file", mod.FullyQualifiedName(), mod.RelPath))
		}
	}
	return pkg, errors.Join(errs...)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
