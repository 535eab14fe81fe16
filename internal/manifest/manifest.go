package manifest

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/glia/internal/asset"
)

const (
	// CUEFile is the CUE manifest name.
	CUEFile = "glia.cue"
	// YAMLFile is the YAML manifest name.
	YAMLFile = "glia.yaml"
)

//go:embed schema.cue
var schemaSource string

// ErrNoManifest is returned by Load for a directory without a manifest.
var ErrNoManifest = errors.New("no package manifest")

// ModDecl declares one mod of a package.
type ModDecl struct {
	Asset          string `json:"asset" yaml:"asset"`
	Variant        string `json:"variant,omitempty" yaml:"variant,omitempty"`
	Dialect        string `json:"dialect,omitempty" yaml:"dialect,omitempty"`
	Path           string `json:"path,omitempty" yaml:"path,omitempty"`
	PointProcess   bool   `json:"point_process,omitempty" yaml:"point_process,omitempty"`
	ArtificialCell bool   `json:"artificial_cell,omitempty" yaml:"artificial_cell,omitempty"`
}

// Manifest is the decoded form of a package manifest.
type Manifest struct {
	Name    string    `json:"name" yaml:"name"`
	Builtin bool      `json:"builtin,omitempty" yaml:"builtin,omitempty"`
	Mods    []ModDecl `json:"mods" yaml:"mods"`

	// File is the manifest the value was read from.
	File string `json:"-" yaml:"-"`
}

// SchemaError reports a manifest that does not satisfy #Package.
type SchemaError struct {
	File    string
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(file string, err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{File: file, Message: err.Error()}
	}

	// Report the first error; the rest are usually consequences of it
	first := errs[0]
	se := &SchemaError{File: file, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		se.Pos = positions[0]
	}
	return se
}

// schema compiles the embedded #Package definition in ctx.
func schema(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("manifest schema: %w", err)
	}
	return v.LookupPath(cue.ParsePath("#Package")), nil
}

// check unifies v with #Package and decodes it into a Manifest.
func check(ctx *cue.Context, file string, v cue.Value) (*Manifest, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(file, err)
	}
	def, err := schema(ctx)
	if err != nil {
		return nil, err
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(file, err)
	}

	var m Manifest
	if err := unified.Decode(&m); err != nil {
		return nil, formatCUEError(file, err)
	}
	m.File = file
	return &m, nil
}

// ParseCUE decodes and validates a CUE manifest.
func ParseCUE(file string, src []byte) (*Manifest, error) {
	ctx := cuecontext.New()
	return check(ctx, file, ctx.CompileBytes(src, cue.Filename(file)))
}

// ParseYAML decodes a YAML manifest and validates it against the same
// schema as CUE manifests.
func ParseYAML(file string, src []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(src, &m); err != nil {
		return nil, &SchemaError{File: file, Message: err.Error()}
	}
	if m.Mods == nil {
		m.Mods = []ModDecl{}
	}
	ctx := cuecontext.New()
	return check(ctx, file, ctx.Encode(m))
}

// Load reads the manifest of the package directory dir.
func Load(dir string) (*Manifest, error) {
	for _, candidate := range []struct {
		name  string
		parse func(string, []byte) (*Manifest, error)
	}{
		{CUEFile, ParseCUE},
		{YAMLFile, ParseYAML},
	} {
		path := filepath.Join(dir, candidate.name)
		src, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		return candidate.parse(path, src)
	}
	return nil, fmt.Errorf("%w in %s", ErrNoManifest, dir)
}

// HasManifest reports whether dir carries a manifest.
func HasManifest(dir string) bool {
	for _, name := range []string{CUEFile, YAMLFile} {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// ToPackage builds the validated package rooted at root.
func (m *Manifest) ToPackage(root string) (*asset.Package, error) {
	pkg := asset.NewPackage(m.Name, root)
	pkg.Builtin = m.Builtin
	for _, d := range m.Mods {
		pkg.AddMod(&asset.Mod{
			Asset:          d.Asset,
			Variant:        d.Variant,
			Dialect:        asset.Dialect(d.Dialect),
			RelPath:        filepath.FromSlash(d.Path),
			PointProcess:   d.PointProcess,
			ArtificialCell: d.ArtificialCell,
			Builtin:        m.Builtin,
		})
	}
	asset.Normalize(pkg)
	if err := asset.Validate(pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

// LoadPackage reads the manifest of dir and builds its package.
func LoadPackage(dir string) (*asset.Package, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve package dir: %w", err)
	}
	m, err := Load(root)
	if err != nil {
		return nil, err
	}
	return m.ToPackage(root)
}
