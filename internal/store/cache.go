package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/glia/internal/asset"
)

// Record is the JSON form of the whole cache.
type Record struct {
	ModHashes map[string]string `json:"mod_hashes"`
	CatHashes map[string]string `json:"cat_hashes"`
}

// PackageHash is one mod_hashes entry.
type PackageHash struct {
	Identity    string
	Package     string
	ContentHash string
}

// Read returns the whole cache record. Maps are never nil.
func (s *Store) Read(ctx context.Context) (Record, error) {
	rec := Record{
		ModHashes: make(map[string]string),
		CatHashes: make(map[string]string),
	}

	if err := s.readMap(ctx, `SELECT identity, content_hash FROM mod_hashes ORDER BY identity`, rec.ModHashes); err != nil {
		return rec, fmt.Errorf("read mod hashes: %w", err)
	}
	if err := s.readMap(ctx, `SELECT name, combined_hash FROM cat_hashes ORDER BY name`, rec.CatHashes); err != nil {
		return rec, fmt.Errorf("read catalogue hashes: %w", err)
	}
	return rec, nil
}

func (s *Store) readMap(ctx context.Context, query string, into map[string]string) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		into[k] = v
	}
	return rows.Err()
}

// StoredHash returns the recorded content hash for a package identity.
func (s *Store) StoredHash(ctx context.Context, identity string) (string, bool, error) {
	var h string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash FROM mod_hashes WHERE identity = ?`, identity).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read mod hash: %w", err)
	}
	return h, true, nil
}

// IsFresh reports whether pkg's current content hash matches the recorded
// one. Missing records, unreadable caches and unhashable packages all
// report false. Builtin packages have nothing to compile and are always
// fresh.
func (s *Store) IsFresh(ctx context.Context, pkg *asset.Package) bool {
	if pkg.Builtin {
		return true
	}
	stored, ok, err := s.StoredHash(ctx, pkg.IdentityHash(s.hasher))
	if err != nil || !ok {
		return false
	}
	current, err := pkg.ContentHash(s.hasher)
	if err != nil {
		return false
	}
	return current == stored
}

// AllFresh reports whether every package is fresh.
func (s *Store) AllFresh(ctx context.Context, pkgs []*asset.Package) bool {
	for _, pkg := range pkgs {
		if !s.IsFresh(ctx, pkg) {
			return false
		}
	}
	return true
}

// Record upserts pkg's content hash.
func (s *Store) Record(ctx context.Context, pkg *asset.Package, contentHash string) error {
	return s.RecordHashes(ctx, []PackageHash{{
		Identity:    pkg.IdentityHash(s.hasher),
		Package:     pkg.Name,
		ContentHash: contentHash,
	}})
}

// RecordHashes upserts several package hashes in one transaction.
func (s *Store) RecordHashes(ctx context.Context, hashes []PackageHash) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, h := range hashes {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO mod_hashes (identity, package, content_hash)
				VALUES (?, ?, ?)
				ON CONFLICT(identity) DO UPDATE SET
					package = excluded.package,
					content_hash = excluded.content_hash
			`, h.Identity, h.Package, h.ContentHash); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record mod hashes: %w", err)
	}
	return nil
}

// CatalogueIsFresh reports whether the recorded hash for catalogue name
// equals combined. It never errors.
func (s *Store) CatalogueIsFresh(ctx context.Context, name, combined string) bool {
	var stored string
	err := s.db.QueryRowContext(ctx,
		`SELECT combined_hash FROM cat_hashes WHERE name = ?`, name).Scan(&stored)
	if err != nil {
		return false
	}
	return stored == combined
}

// RecordCatalogue upserts the combined hash of catalogue name.
func (s *Store) RecordCatalogue(ctx context.Context, name, combined string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cat_hashes (name, combined_hash)
		VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET combined_hash = excluded.combined_hash
	`, name, combined)
	if err != nil {
		return fmt.Errorf("record catalogue hash: %w", err)
	}
	return nil
}

// Clear empties both hash maps. Compiled artifacts on disk are untouched.
func (s *Store) Clear(ctx context.Context) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM mod_hashes`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM cat_hashes`)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Export writes the record as indented JSON.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	rec, err := s.Read(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// Import replaces the cache contents with a JSON record.
func (s *Store) Import(ctx context.Context, r io.Reader) error {
	var rec Record
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return fmt.Errorf("decode cache record: %w", err)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM mod_hashes`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cat_hashes`); err != nil {
			return err
		}
		for identity, h := range rec.ModHashes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO mod_hashes (identity, content_hash) VALUES (?, ?)`, identity, h); err != nil {
				return err
			}
		}
		for name, h := range rec.CatHashes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO cat_hashes (name, combined_hash) VALUES (?, ?)`, name, h); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("import cache record: %w", err)
	}
	return nil
}
