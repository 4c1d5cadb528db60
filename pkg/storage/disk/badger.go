package disk

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

type badgerStore struct {
	db *badger.DB
}

func (s *badgerStore) get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return val, err
}

func (s *badgerStore) set(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *badgerStore) close() error {
	return s.db.Close()
}

// OpenBadgerDiskManager opens a badger backed disk manager. inMemory ignores dir.
func OpenBadgerDiskManager(dir string, blockSize int, compress bool, inMemory bool) (*KVDiskManager, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	dm, err := newKVDiskManager(&badgerStore{db: db}, blockSize, compress)
	if err != nil {
		db.Close()
		return nil, err
	}
	return dm, nil
}
