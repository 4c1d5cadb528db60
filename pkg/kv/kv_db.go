package kv

import (
	"context"
	"errors"
	"math"

	"github.com/dgraph-io/badger/v4"
	"github.com/uber/h3-go/v4"
	"go.uber.org/zap"

	"github.com/lintang-b-s/navigatorx-ch/pkg"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
)

const (
	h3Resolution = 9
	maxRingLevel = 10
	batchSize    = 1000
)

var (
	ErrVerticesNotFound = errors.New("vertices not found")
)

type VertexLocations interface {
	VertexCount() uint32
	GetCoordinate(v uint32) datastructure.Coordinate
}

// KVDB. h3 cell -> vertices inside the cell, kept in badger.
type KVDB struct {
	db     *badger.DB
	logger *zap.Logger
}

func OpenKVDB(dir string, inMemory bool, logger *zap.Logger) (*KVDB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, pkg.WrapErrorf(err, pkg.ErrStorage, "opening h3 index %s", dir)
	}
	return &KVDB{db: db, logger: logger}, nil
}

func cellKey(lat, lon float64) string {
	return h3.LatLngToCell(h3.NewLatLng(lat, lon), h3Resolution).String()
}

// BuildH3IndexedVertices buckets every vertex by its resolution 9 h3 cell.
func (k *KVDB) BuildH3IndexedVertices(ctx context.Context, locs VertexLocations) error {
	k.logger.Info("creating & saving h3 indexed vertices to key-value db...")

	cells := make(map[string][]KVVertex)
	for v := uint32(0); v < locs.VertexCount(); v++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		coord := locs.GetCoordinate(v)
		key := cellKey(coord.Lat, coord.Lon)
		cells[key] = append(cells[key], KVVertex{ID: v, Lat: coord.Lat, Lon: coord.Lon})
	}

	batches := make([]batchData, 0, batchSize)
	for key, value := range cells {
		batches = append(batches, batchData{key: key, value: value})
		if len(batches) == batchSize {
			if err := k.saveBatch(ctx, batches); err != nil {
				return err
			}
			batches = make([]batchData, 0, batchSize)
		}
	}
	if len(batches) > 0 {
		if err := k.saveBatch(ctx, batches); err != nil {
			return err
		}
	}

	k.logger.Info("h3 index saved", zap.Int("cells", len(cells)))
	return nil
}

type batchData struct {
	key   string
	value []KVVertex
}

func (k *KVDB) saveBatch(ctx context.Context, data []batchData) error {
	batch := k.db.NewWriteBatch()
	defer batch.Cancel()

	for _, d := range data {
		if err := ctx.Err(); err != nil {
			return err
		}
		val, err := encodeVertices(d.value)
		if err != nil {
			return pkg.WrapErrorf(err, pkg.ErrInternal, "encoding cell %s", d.key)
		}
		if err := batch.Set([]byte(d.key), val); err != nil {
			return pkg.WrapErrorf(err, pkg.ErrStorage, "saving cell %s", d.key)
		}
	}
	if err := batch.Flush(); err != nil {
		return pkg.WrapErrorf(err, pkg.ErrStorage, "flushing h3 index batch")
	}
	return nil
}

// get returns nil for a missing cell.
func (k *KVDB) get(key string) ([]KVVertex, error) {
	var val []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkg.WrapErrorf(err, pkg.ErrStorage, "reading cell %s", key)
	}
	return loadVertices(val)
}

/*
GetNearestVertices returns the vertices of the cell containing (lat, lon), widening the search to the cells of a
1 km disk and then to grid rings up to level 10 while nothing is found.
*/
func (k *KVDB) GetNearestVertices(lat, lon float64) ([]KVVertex, error) {
	cell := h3.LatLngToCell(h3.NewLatLng(lat, lon), h3Resolution)

	vertices, err := k.get(cell.String())
	if err != nil {
		return nil, err
	}
	if len(vertices) > 0 {
		return vertices, nil
	}

	collect := func(cells []h3.Cell) error {
		for _, currCell := range cells {
			if currCell == cell {
				continue
			}
			found, err := k.get(currCell.String())
			if err != nil {
				return err
			}
			vertices = append(vertices, found...)
		}
		return nil
	}

	if err := collect(kRingIndexesArea(lat, lon, 1)); err != nil {
		return nil, err
	}
	for lev := 1; lev <= maxRingLevel && len(vertices) == 0; lev++ {
		if err := collect(h3.GridDisk(cell, lev)); err != nil {
			return nil, err
		}
	}

	if len(vertices) == 0 {
		return nil, ErrVerticesNotFound
	}
	return vertices, nil
}

func kRingIndexesArea(lat, lon, searchRadiusKm float64) []h3.Cell {
	origin := h3.LatLngToCell(h3.NewLatLng(lat, lon), h3Resolution)
	originArea := h3.CellAreaKm2(origin)
	searchArea := math.Pi * searchRadiusKm * searchRadiusKm

	radius := 0
	diskArea := originArea
	for diskArea < searchArea {
		radius++
		cellCount := float64(3*radius*(radius+1) + 1)
		diskArea = cellCount * originArea
	}
	return h3.GridDisk(origin, radius)
}

func (k *KVDB) Close() error {
	return k.db.Close()
}
