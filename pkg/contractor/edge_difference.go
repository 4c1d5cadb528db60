package contractor

import (
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
)

// shortcutHandler is called for every (in, out) pair of v that has no witness.
type shortcutHandler func(in, out datastructure.Arc, weight float64) error

/*
findShortcuts. for every incoming arc (u,v) and outgoing arc (v,w) with u != w, run a witness
search u->w avoiding v bounded by c(u,v) + c(v,w). pairs without a witness need shortcut u->w.
returns v's arcs.
*/
func findShortcuts(graph ArcReader, witness WitnessCalculator, v uint32, handler shortcutHandler) ([]datastructure.Arc, error) {
	arcs, err := graph.GetArcs(v)
	if err != nil {
		return nil, err
	}

	for _, in := range arcs {
		if !in.Data.Backward {
			continue
		}
		for _, out := range arcs {
			if !out.Data.Forward || in.Neighbor == out.Neighbor {
				continue
			}

			weight := in.Data.Weight + out.Data.Weight
			found, err := witness.Exists(in.Neighbor, out.Neighbor, v, weight)
			if err != nil {
				return nil, err
			}
			if found {
				continue
			}
			if err := handler(in, out, weight); err != nil {
				return nil, err
			}
		}
	}
	return arcs, nil
}

// EdgeDifference. score of v = shortcuts contracting v would add - incoming arcs it removes.
type EdgeDifference struct {
	graph   ArcReader
	witness WitnessCalculator
}

func NewEdgeDifference(graph ArcReader, witness WitnessCalculator) *EdgeDifference {
	return &EdgeDifference{
		graph:   graph,
		witness: witness,
	}
}

func (ed *EdgeDifference) Calculate(v uint32) (int, error) {
	newEdges := 0
	arcs, err := findShortcuts(ed.graph, ed.witness, v, func(_, _ datastructure.Arc, _ float64) error {
		newEdges++
		return nil
	})
	if err != nil {
		return 0, err
	}

	removedEdges := 0
	for _, arc := range arcs {
		if arc.Data.Backward {
			removedEdges++
		}
	}
	return newEdges - removedEdges, nil
}

func (ed *EdgeDifference) NotifyContracted(v uint32) {}
