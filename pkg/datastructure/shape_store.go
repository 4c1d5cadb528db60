package datastructure

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/DataDog/zstd"
	"github.com/dgraph-io/badger/v4"
	"github.com/twpayne/go-polyline"
)

// ShapeStore keeps the road geometry between two adjacent vertices, keyed by the directed pair.
type ShapeStore interface {
	Put(tail, head uint32, coords []Coordinate) error
	Get(tail, head uint32) ([]Coordinate, bool, error)
	Delete(tail, head uint32) error
	Close() error
}

type MemoryShapeStore struct {
	mu     sync.RWMutex
	shapes map[[2]uint32][]Coordinate
}

func NewMemoryShapeStore() *MemoryShapeStore {
	return &MemoryShapeStore{shapes: make(map[[2]uint32][]Coordinate)}
}

func (s *MemoryShapeStore) Put(tail, head uint32, coords []Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]Coordinate, len(coords))
	copy(cp, coords)
	s.shapes[[2]uint32{tail, head}] = cp
	return nil
}

func (s *MemoryShapeStore) Get(tail, head uint32) ([]Coordinate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coords, ok := s.shapes[[2]uint32{tail, head}]
	return coords, ok, nil
}

func (s *MemoryShapeStore) Delete(tail, head uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shapes, [2]uint32{tail, head})
	return nil
}

func (s *MemoryShapeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shapes = nil
	return nil
}

// BadgerShapeStore. values are polyline encoded and then zstd compressed.
type BadgerShapeStore struct {
	db *badger.DB
}

func OpenBadgerShapeStore(dir string, inMemory bool) (*BadgerShapeStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerShapeStore{db: db}, nil
}

func shapeKey(tail, head uint32) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint32(key[0:4], tail)
	binary.BigEndian.PutUint32(key[4:8], head)
	return key
}

func encodeShape(coords []Coordinate) ([]byte, error) {
	points := make([][]float64, 0, len(coords))
	for _, c := range coords {
		points = append(points, []float64{c.Lat, c.Lon})
	}
	return zstd.Compress(nil, polyline.EncodeCoords(points))
}

func decodeShape(b []byte) ([]Coordinate, error) {
	raw, err := zstd.Decompress(nil, b)
	if err != nil {
		return nil, err
	}
	points, _, err := polyline.DecodeCoords(raw)
	if err != nil {
		return nil, err
	}
	coords := make([]Coordinate, 0, len(points))
	for _, p := range points {
		coords = append(coords, NewCoordinate(p[0], p[1]))
	}
	return coords, nil
}

func (s *BadgerShapeStore) Put(tail, head uint32, coords []Coordinate) error {
	val, err := encodeShape(coords)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(shapeKey(tail, head), val)
	})
}

func (s *BadgerShapeStore) Get(tail, head uint32) ([]Coordinate, bool, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(shapeKey(tail, head))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	coords, err := decodeShape(val)
	if err != nil {
		return nil, false, err
	}
	return coords, true, nil
}

func (s *BadgerShapeStore) Delete(tail, head uint32) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(shapeKey(tail, head))
	})
}

func (s *BadgerShapeStore) Close() error {
	return s.db.Close()
}
