package hash

import (
	"encoding/hex"
	"errors"
	"fmt"
	gohash "hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/minio/highwayhash"
	"github.com/zeebo/blake3"
)

// ChunkSize is the read size used when folding file contents into a digest.
const ChunkSize = 4096

// Algorithm names a digest implementation.
type Algorithm string

const (
	// Blake3 is the default algorithm.
	Blake3 Algorithm = "blake3"

	// Highway is HighwayHash-64, a fast non-cryptographic digest.
	Highway Algorithm = "highway"
)

var (
	// ErrNotFound is returned when the hashed path does not exist.
	ErrNotFound = errors.New("path not found")

	// ErrNotADirectory is returned by Directory for non-directory paths.
	ErrNotADirectory = errors.New("not a directory")

	// ErrNotAFile is returned by File for non-regular paths.
	ErrNotAFile = errors.New("not a regular file")
)

// domainKey keys both algorithms so glia digests never collide with plain
// digests of the same bytes. Changing it invalidates every stored cache.
var domainKey = [32]byte{
	'g', 'l', 'i', 'a', '.', 'c', 'o', 'n', 't', 'e', 'n', 't', '.', 'v', '1',
}

// Hasher computes file, directory and string digests with one algorithm.
type Hasher struct {
	alg Algorithm
}

// New returns a Hasher for alg. An empty alg selects Blake3.
func New(alg Algorithm) (*Hasher, error) {
	switch alg {
	case "":
		alg = Blake3
	case Blake3, Highway:
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q: must be %s or %s", alg, Blake3, Highway)
	}
	return &Hasher{alg: alg}, nil
}

// Algorithm returns the digest algorithm in use.
func (h *Hasher) Algorithm() Algorithm {
	return h.alg
}

func (h *Hasher) digest() gohash.Hash {
	switch h.alg {
	case Highway:
		d, err := highwayhash.New64(domainKey[:])
		if err != nil {
			// Only fails for a key that is not 32 bytes.
			panic(err)
		}
		return d
	default:
		d, err := blake3.NewKeyed(domainKey[:])
		if err != nil {
			panic(err)
		}
		return d
	}
}

// File returns the hex digest of the file at path.
func (h *Hasher) File(path string) (string, error) {
	d := h.digest()
	if err := foldFile(d, path); err != nil {
		return "", err
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}

// Directory returns the hex digest of the tree rooted at path.
func (h *Hasher) Directory(path string) (string, error) {
	d := h.digest()
	if err := foldDirectory(d, path); err != nil {
		return "", err
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}

// String returns the hex digest of s.
func (h *Hasher) String(s string) string {
	d := h.digest()
	_, _ = io.WriteString(d, s)
	return hex.EncodeToString(d.Sum(nil))
}

func foldFile(d io.Writer, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("hash %s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("hash %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("hash %s: %w", path, ErrNotAFile)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(d, onlyReader{f}, buf); err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}
	return nil
}

func foldDirectory(d io.Writer, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("hash %s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("hash %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("hash %s: %w", path, ErrNotADirectory)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		_, _ = io.WriteString(d, entry.Name())
		child := filepath.Join(path, entry.Name())
		mode := entry.Type()
		if mode&fs.ModeSymlink != 0 {
			target, err := os.Stat(child)
			if err != nil {
				// Dangling links contribute their name only.
				continue
			}
			mode = target.Mode().Type()
		}
		switch {
		case mode.IsRegular():
			if err := foldFile(d, child); err != nil {
				return err
			}
		case mode.IsDir():
			if err := foldDirectory(d, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// onlyReader hides WriterTo/ReaderFrom so CopyBuffer honors ChunkSize.
type onlyReader struct {
	r io.Reader
}

func (o onlyReader) Read(p []byte) (int, error) {
	return o.r.Read(p)
}

var defaultHasher = &Hasher{alg: Blake3}

// File returns the Blake3 digest of the file at path.
func File(path string) (string, error) {
	return defaultHasher.File(path)
}

// Directory returns the Blake3 digest of the tree rooted at path.
func Directory(path string) (string, error) {
	return defaultHasher.Directory(path)
}

// String returns the Blake3 digest of s.
func String(s string) string {
	return defaultHasher.String(s)
}

// Default returns the shared Blake3 Hasher.
func Default() *Hasher {
	return defaultHasher
}
