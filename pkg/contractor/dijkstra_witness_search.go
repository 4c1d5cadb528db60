package contractor

import (
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
)

/*
DijkstraWitnessSearch. when contracting v, a shortcut u->w is only needed if every path u->w that
avoids v is more expensive than c(u,v) + c(v,w). the search runs dijkstra over forward arcs from
u, never entering v, and stops as soon as w is reached within maxWeight or the frontier exceeds
maxWeight.

O(VlogV+E) with the fibonacci heap.
*/
type DijkstraWitnessSearch struct {
	graph           ArcReader
	maxSettledNodes int // 0 = unlimited
}

func NewDijkstraWitnessSearch(graph ArcReader, maxSettledNodes int) *DijkstraWitnessSearch {
	return &DijkstraWitnessSearch{
		graph:           graph,
		maxSettledNodes: maxSettledNodes,
	}
}

func (ws *DijkstraWitnessSearch) Exists(from, to, avoiding uint32, maxWeight float64) (bool, error) {
	if from == to {
		return true, nil
	}

	cost := map[uint32]float64{from: 0}
	entries := make(map[uint32]*datastructure.FibEntry[uint32])
	settled := make(map[uint32]struct{})

	pq := datastructure.NewFibonacciHeap[uint32]()
	entries[from] = pq.Insert(from, 0)

	for !pq.IsEmpty() {
		if pq.GetMinRank() > maxWeight {
			return false, nil
		}

		curr := pq.ExtractMin()
		u, dist := curr.GetElem(), curr.GetPriority()
		if u == to {
			return true, nil
		}

		settled[u] = struct{}{}
		if ws.maxSettledNodes > 0 && len(settled) > ws.maxSettledNodes {
			// gave up, the caller adds the shortcut.
			return false, nil
		}

		arcs, err := ws.graph.GetArcs(u)
		if err != nil {
			return false, err
		}
		for _, arc := range arcs {
			if !arc.Data.Forward || arc.Neighbor == avoiding {
				continue
			}
			if _, ok := settled[arc.Neighbor]; ok {
				continue
			}

			newCost := dist + arc.Data.Weight
			if newCost > maxWeight {
				continue
			}
			if arc.Neighbor == to {
				return true, nil
			}

			old, ok := cost[arc.Neighbor]
			if !ok {
				cost[arc.Neighbor] = newCost
				entries[arc.Neighbor] = pq.Insert(arc.Neighbor, newCost)
			} else if newCost < old {
				cost[arc.Neighbor] = newCost
				pq.DecreaseKey(entries[arc.Neighbor], newCost)
			}
		}
	}
	return false, nil
}
