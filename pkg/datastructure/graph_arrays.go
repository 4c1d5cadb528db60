package datastructure

import (
	"io"

	"github.com/lintang-b-s/navigatorx-ch/pkg/storage"
	"github.com/lintang-b-s/navigatorx-ch/pkg/storage/buffer"
)

// GraphArrays. the backing arrays of a DynamicGraph. Backing, if set, is closed after the arrays.
type GraphArrays struct {
	Vertices    HugeArray[uint32]
	Neighbors   HugeArray[uint32]
	ArcData     HugeArray[ArcData]
	Coordinates HugeArray[Coordinate]
	Backing     io.Closer
}

func NewMemoryGraphArrays(estimatedVertices int) GraphArrays {
	n := int64(estimatedVertices)
	return GraphArrays{
		Vertices:    NewMemoryArray[uint32](n * vertexHeaderSize),
		Neighbors:   NewMemoryArray[uint32](n * estimatedDegree),
		ArcData:     NewMemoryArray[ArcData](n * estimatedDegree),
		Coordinates: NewMemoryArray[Coordinate](n),
	}
}

// NewPagedGraphArrays keeps every array in the paged files of pool. closing the arrays closes pool.
func NewPagedGraphArrays(pool *buffer.BufferPoolManager) (GraphArrays, error) {
	vertices, err := NewPagedArray[uint32](pool, storage.VERTICES_FILE, Uint32Codec{})
	if err != nil {
		return GraphArrays{}, err
	}
	neighbors, err := NewPagedArray[uint32](pool, storage.NEIGHBORS_FILE, Uint32Codec{})
	if err != nil {
		return GraphArrays{}, err
	}
	arcData, err := NewPagedArray[ArcData](pool, storage.ARC_DATA_FILE, ArcDataCodec{})
	if err != nil {
		return GraphArrays{}, err
	}
	coords, err := NewPagedArray[Coordinate](pool, storage.COORDINATES_FILE, CoordinateCodec{})
	if err != nil {
		return GraphArrays{}, err
	}
	return GraphArrays{
		Vertices:    vertices,
		Neighbors:   neighbors,
		ArcData:     arcData,
		Coordinates: coords,
		Backing:     pool,
	}, nil
}
