package backend

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/segevido/gpukv/internal/interfaces"
)

// Pebble is a persistent interfaces.Backend backed by cockroachdb/pebble,
// the reference persistent implementation of spec.md §6. Its identity
// token is the on-disk directory path.
type Pebble struct {
	dir string
	db  *pebble.DB
}

// NewPebble returns a Pebble backend rooted at dir. The directory is
// created (and the database opened) lazily in OpenDB, matching the
// backend lifecycle contract: construction never touches disk, OpenDB
// does.
func NewPebble(dir string) *Pebble {
	return &Pebble{dir: dir}
}

// OpenDB opens (creating if necessary) the pebble store at dir.
func (p *Pebble) OpenDB() error {
	db, err := pebble.Open(p.dir, &pebble.Options{})
	if err != nil {
		return errors.Wrapf(err, "opening pebble store at %s", p.dir)
	}
	p.db = db
	return nil
}

// CloseDB closes the pebble handle without removing its files.
func (p *Pebble) CloseDB() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// DeleteDB closes the handle (if open) and removes the on-disk directory.
func (p *Pebble) DeleteDB() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return err
		}
		p.db = nil
	}
	return os.RemoveAll(p.dir)
}

// Put stores val under key, returning 0 on success or a non-zero,
// non-5 code on any write failure.
func (p *Pebble) Put(key []byte, val []byte) int {
	if err := p.db.Set(key, val, pebble.NoSync); err != nil {
		return 1
	}
	return 0
}

// Get copies the stored value into dst (truncated to dst's capacity) and
// reports the number of bytes copied. Returns 5 if key is absent.
func (p *Pebble) Get(key []byte, dst []byte) (int, int) {
	v, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, 5
	}
	if err != nil {
		return 0, 1
	}
	defer closer.Close()
	return copy(dst, v), 0
}

// Delete removes key, returning 5 if it was absent.
func (p *Pebble) Delete(key []byte) int {
	_, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return 5
	}
	if err == nil {
		closer.Close()
	}
	if err := p.db.Delete(key, pebble.NoSync); err != nil {
		return 1
	}
	return 0
}

var _ interfaces.Backend = (*Pebble)(nil)
