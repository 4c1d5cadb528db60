package routingalgorithm

import (
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/hierarchy"
)

type ContractedGraph interface {
	GetArcs(v uint32) []hierarchy.Arc
	Level(v uint32) int32
	VertexCount() uint32
	GetCoordinate(v uint32) datastructure.Coordinate
}

type ShapeReader interface {
	Get(tail, head uint32) ([]datastructure.Coordinate, bool, error)
}
