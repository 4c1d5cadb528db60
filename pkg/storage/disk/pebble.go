package disk

import (
	"errors"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

type pebbleStore struct {
	db *pebble.DB
}

func (s *pebbleStore) get(key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// set skips the fsync. a crashed preprocessing run is restarted from scratch anyway.
func (s *pebbleStore) set(key, value []byte) error {
	return s.db.Set(key, value, pebble.NoSync)
}

func (s *pebbleStore) close() error {
	return s.db.Close()
}

func OpenPebbleDiskManager(dir string, blockSize int, compress bool) (*KVDiskManager, error) {
	return openPebble(dir, &pebble.Options{}, blockSize, compress)
}

// OpenInMemoryPebbleDiskManager keeps the pebble files in a memory vfs. Used by tests.
func OpenInMemoryPebbleDiskManager(blockSize int, compress bool) (*KVDiskManager, error) {
	return openPebble("", &pebble.Options{FS: vfs.NewMem()}, blockSize, compress)
}

func openPebble(dir string, opts *pebble.Options, blockSize int, compress bool) (*KVDiskManager, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}
	dm, err := newKVDiskManager(&pebbleStore{db: db}, blockSize, compress)
	if err != nil {
		db.Close()
		return nil, err
	}
	return dm, nil
}
