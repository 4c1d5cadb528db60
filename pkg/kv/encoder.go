package kv

import (
	"github.com/kelindar/binary"
)

// KVVertex. a hierarchy vertex stored under the h3 cell that contains it.
type KVVertex struct {
	ID  uint32
	Lat float64
	Lon float64
}

func encodeVertices(vertices []KVVertex) ([]byte, error) {
	encoded, err := binary.Marshal(vertices)
	if err != nil {
		return nil, err
	}
	return compress(encoded)
}

func loadVertices(bbCompressed []byte) ([]KVVertex, error) {
	if len(bbCompressed) == 0 {
		return []KVVertex{}, nil
	}
	bb, err := decompress(bbCompressed)
	if err != nil {
		return nil, err
	}
	var vertices []KVVertex
	if err := binary.Unmarshal(bb, &vertices); err != nil {
		return nil, err
	}
	return vertices, nil
}
