package contractor

import "github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"

// ArcReader. read side of the graph store used by the searches.
type ArcReader interface {
	GetArcs(v uint32) ([]datastructure.Arc, error)
	VertexCount() uint32
}

type WitnessCalculator interface {
	// Exists reports whether a path from -> to that does not pass through avoiding costs at most
	// maxWeight. a search cut off before finding one reports false.
	Exists(from, to, avoiding uint32, maxWeight float64) (bool, error)
}

type VertexWeightCalculator interface {
	Calculate(v uint32) (int, error)
	NotifyContracted(v uint32)
}
