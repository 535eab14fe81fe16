package preference

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// FileBackend stores the global layer in a JSON file shared by every
// installation on the machine. Each installation owns the top-level key
// Namespace; sections of other installations are preserved on save.
//
// The file tolerates comments and trailing commas. A missing or corrupt
// file reads as empty.
type FileBackend struct {
	Path      string
	Namespace string
}

// NewFileBackend returns a backend for path, scoped to namespace.
func NewFileBackend(path, namespace string) *FileBackend {
	return &FileBackend{Path: path, Namespace: namespace}
}

// Load reads this installation's section.
func (b *FileBackend) Load() (Global, error) {
	g := Global{Assets: make(map[string]Preference)}

	shared, err := b.readShared()
	if err != nil {
		return g, err
	}
	raw, ok := shared[b.Namespace]
	if !ok {
		return g, nil
	}
	if err := decodeSection(raw, &g); err != nil {
		// A section we cannot parse is treated like a missing one.
		return Global{Assets: make(map[string]Preference)}, nil
	}
	return g, nil
}

// Save replaces this installation's section and rewrites the file atomically.
func (b *FileBackend) Save(g Global) error {
	shared, err := b.readShared()
	if err != nil {
		return err
	}
	section, err := encodeSection(g)
	if err != nil {
		return err
	}
	shared[b.Namespace] = section

	return atomicWrite(b.Path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(shared)
	})
}

func (b *FileBackend) readShared() (map[string]json.RawMessage, error) {
	shared := make(map[string]json.RawMessage)
	data, err := os.ReadFile(b.Path)
	if errors.Is(err, os.ErrNotExist) {
		return shared, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.Path, err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &shared); err != nil {
		return make(map[string]json.RawMessage), nil
	}
	return shared, nil
}

func decodeSection(raw json.RawMessage, g *Global) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	for key, value := range fields {
		switch key {
		case WildcardPackage:
			if err := json.Unmarshal(value, &g.WildcardPackage); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		case WildcardVariant:
			if err := json.Unmarshal(value, &g.WildcardVariant); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		default:
			var p Preference
			if err := json.Unmarshal(value, &p); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			g.Assets[key] = p
		}
	}
	return nil
}

func encodeSection(g Global) (json.RawMessage, error) {
	fields := make(map[string]any, len(g.Assets)+2)
	for asset, p := range g.Assets {
		fields[asset] = p
	}
	if g.WildcardPackage != "" {
		fields[WildcardPackage] = g.WildcardPackage
	}
	if g.WildcardVariant != "" {
		fields[WildcardVariant] = g.WildcardVariant
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}
	return data, nil
}

// atomicWrite writes through a temp file in the target directory and
// renames it into place.
func atomicWrite(path string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := writeFunc(tmpFile); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write content: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("sync file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename to final: %w", err)
	}

	success = true
	return nil
}
