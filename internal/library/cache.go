package library

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mirtk/polymir/internal/fasta"
)

// Cache file names inside one published library directory.
const (
	gobName   = "library.gob"
	fastaName = "library.fa"
	// IndexPrefix is the basename of the aligner index inside a
	// published library directory.
	IndexPrefix = "index"
)

// Cache stores content-hash-keyed library directories. Each directory
// holds the serialized Library, the expanded FASTA and the aligner index,
// and is published atomically: it is built under a temporary name and
// renamed into place only when complete, so concurrent sample runs
// sharing one cache root never observe a half-built library.
type Cache struct {
	root string
}

// NewCache creates a cache rooted at the given directory.
func NewCache(root string) *Cache {
	return &Cache{root: root}
}

// Dir returns the published directory for a content hash.
func (c *Cache) Dir(hash string) string {
	return filepath.Join(c.root, hashKey(hash))
}

// IndexPath returns the aligner index prefix for a content hash.
func (c *Cache) IndexPath(hash string) string {
	return filepath.Join(c.Dir(hash), IndexPrefix)
}

// FastaPath returns the expanded library FASTA for a content hash.
func (c *Cache) FastaPath(hash string) string {
	return filepath.Join(c.Dir(hash), fastaName)
}

// Lookup loads a previously published library, if one exists for the hash.
func (c *Cache) Lookup(hash string) (*Library, bool, error) {
	path := filepath.Join(c.Dir(hash), gobName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open cached library: %w", err)
	}
	defer f.Close()

	var lib Library
	if err := gob.NewDecoder(f).Decode(&lib); err != nil {
		return nil, false, fmt.Errorf("decode cached library: %w", err)
	}
	lib.Index()
	return &lib, true, nil
}

// Publish builds and atomically publishes a library directory. The
// library gob and FASTA are written into a temporary directory, build is
// invoked there (the index builder runs inside it), and only then is the
// directory renamed to its final hash-keyed name. On any error the
// temporary directory is removed, leaving no partial artifact.
func (c *Cache) Publish(lib *Library, build func(dir string) error) (string, error) {
	final := c.Dir(lib.Hash)
	if _, err := os.Stat(final); err == nil {
		return final, nil
	}

	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return "", fmt.Errorf("create cache root: %w", err)
	}
	tmp, err := os.MkdirTemp(c.root, ".build-"+hashKey(lib.Hash)+"-")
	if err != nil {
		return "", fmt.Errorf("create build directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := writeGob(filepath.Join(tmp, gobName), lib); err != nil {
		return "", err
	}
	if err := fasta.WriteFile(filepath.Join(tmp, fastaName), lib.FastaRecords()); err != nil {
		return "", err
	}
	if build != nil {
		if err := build(tmp); err != nil {
			return "", err
		}
	}

	if err := os.Rename(tmp, final); err != nil {
		// Another run may have published the same hash first; reuse it.
		if _, statErr := os.Stat(final); statErr == nil {
			return final, nil
		}
		return "", fmt.Errorf("publish library directory: %w", err)
	}
	return final, nil
}

// FastaRecords renders the expanded library as FASTA records, one per
// ReferenceSequence, named by entry ID.
func (l *Library) FastaRecords() []fasta.Record {
	records := make([]fasta.Record, len(l.Sequences))
	for i, seq := range l.Sequences {
		records[i] = fasta.Record{Name: seq.ID, Seq: seq.Seq}
	}
	return records
}

func writeGob(path string, lib *Library) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create library gob: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(lib); err != nil {
		return fmt.Errorf("encode library gob: %w", err)
	}
	return nil
}

// hashKey shortens a content hash for use as a directory name.
func hashKey(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
