package routingalgorithm

import (
	"math"

	"github.com/lintang-b-s/navigatorx-ch/pkg"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/hierarchy"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
)

// cameFromPair. the arc a search settled vertex was reached through, plus the vertex on the other end.
type cameFromPair struct {
	Arc    hierarchy.Arc
	NodeID uint32
}

type RouteAlgorithm struct {
	ch     ContractedGraph
	shapes ShapeReader
}

// NewRouteAlgorithm. shapes may be nil, geometry then falls back to vertex coordinates.
func NewRouteAlgorithm(ch ContractedGraph, shapes ShapeReader) *RouteAlgorithm {
	return &RouteAlgorithm{ch: ch, shapes: shapes}
}

type searchSpace struct {
	queue    *datastructure.MinHeap[uint32]
	dist     map[uint32]float64
	cameFrom map[uint32]cameFromPair
	settled  map[uint32]struct{}
	finished bool
}

func newSearchSpace(source uint32) *searchSpace {
	s := &searchSpace{
		queue:    datastructure.NewMinHeap[uint32](),
		dist:     map[uint32]float64{source: 0},
		cameFrom: make(map[uint32]cameFromPair),
		settled:  make(map[uint32]struct{}),
	}
	s.queue.Insert(datastructure.NewPriorityQueueNode(0, source))
	return s
}

/*
ShortestPath. bidirectional dijkstra on the upward graph.

the forward search follows Forward arcs from `from`, the backward search follows Backward arcs from `to`, both only
towards higher levels. a side stops once its smallest key is no better than the best meeting point found so far.
returns the distance and the unpacked vertex sequence from..to.
*/
func (rt *RouteAlgorithm) ShortestPath(from, to uint32) (float64, []uint32, error) {
	n := rt.ch.VertexCount()
	if from >= n || to >= n {
		return 0, nil, pkg.NewErrorf(pkg.ErrBadParamInput, "vertex out of range: from %d to %d, %d vertices", from, to, n)
	}
	if from == to {
		return 0, []uint32{from}, nil
	}

	forward := newSearchSpace(from)
	backward := newSearchSpace(to)
	best := &meeting{estimate: math.MaxFloat64}

	turnF := true
	for !(forward.finished && backward.finished) {
		frontier, other := forward, backward
		if !turnF {
			frontier, other = backward, forward
		}
		if !frontier.finished {
			smallest, err := frontier.queue.GetMin()
			if err != nil || smallest.Rank >= best.estimate {
				frontier.finished = true
			} else {
				node, _ := frontier.queue.ExtractMin()
				rt.relax(frontier, other, node.Item, turnF, best)
			}
		}
		turnF = !turnF
	}

	if !best.found {
		return 0, nil, pkg.NewErrorf(pkg.ErrNotFound, "no path from %d to %d", from, to)
	}

	path := rt.createPath(best.vertex, from, to, forward.cameFrom, backward.cameFrom)
	return best.estimate, path, nil
}

type meeting struct {
	estimate float64
	vertex   uint32
	found    bool
}

// relax settles u and scans its upward arcs with the flag matching the search direction.
func (rt *RouteAlgorithm) relax(s, other *searchSpace, u uint32, forward bool, best *meeting) {
	s.settled[u] = struct{}{}
	du := s.dist[u]
	for _, arc := range rt.ch.GetArcs(u) {
		if forward && !arc.Forward || !forward && !arc.Backward {
			continue
		}
		if _, ok := s.settled[arc.Head]; ok {
			continue
		}
		newCost := du + arc.Weight
		old, ok := s.dist[arc.Head]
		switch {
		case !ok:
			s.dist[arc.Head] = newCost
			s.cameFrom[arc.Head] = cameFromPair{arc, u}
			s.queue.Insert(datastructure.NewPriorityQueueNode(newCost, arc.Head))
		case newCost < old:
			s.dist[arc.Head] = newCost
			s.cameFrom[arc.Head] = cameFromPair{arc, u}
			s.queue.DecreaseKey(arc.Head, newCost)
		default:
			continue
		}

		if od, ok := other.dist[arc.Head]; ok && newCost+od < best.estimate {
			best.estimate = newCost + od
			best.vertex = arc.Head
			best.found = true
		}
	}
}

func (rt *RouteAlgorithm) createPath(commonVertex, from, to uint32, cameFromf, cameFromb map[uint32]cameFromPair) []uint32 {
	// forward half, walked back from the meeting vertex.
	var hops []cameFromPair
	for v := commonVertex; v != from; {
		p := cameFromf[v]
		hops = append(hops, cameFromPair{p.Arc, v})
		v = p.NodeID
	}
	hops = util.ReverseG(hops)

	path := []uint32{from}
	tail := from
	for _, hop := range hops {
		path = rt.unpack(tail, hop.NodeID, hop.Arc.Via, path)
		tail = hop.NodeID
	}

	// backward half: cameFromb[v] holds the arc v -> NodeID.
	for v := commonVertex; v != to; {
		p := cameFromb[v]
		path = rt.unpack(v, p.NodeID, p.Arc.Via, path)
		v = p.NodeID
	}
	return path
}

// UnpackPath expands a path of hierarchy arcs into original vertices.
func (rt *RouteAlgorithm) UnpackPath(tail, head uint32, via int32) []uint32 {
	return rt.unpack(tail, head, via, []uint32{tail})
}

// unpack appends the vertices of arc tail->head after tail.
func (rt *RouteAlgorithm) unpack(tail, head uint32, via int32, path []uint32) []uint32 {
	if via == pkg.INVALID_VERTEX_ID {
		return append(path, head)
	}
	x := uint32(via)

	// x was contracted before tail and head, so its upward list still holds both halves of the shortcut.
	var first, second *hierarchy.Arc
	for _, arc := range rt.ch.GetArcs(x) {
		arc := arc
		if arc.Head == tail && arc.Backward && (first == nil || arc.Weight < first.Weight) {
			first = &arc
		}
		if arc.Head == head && arc.Forward && (second == nil || arc.Weight < second.Weight) {
			second = &arc
		}
	}
	util.AssertPanic(first != nil && second != nil, "shortcut halves missing at via vertex")

	path = rt.unpack(tail, x, first.Via, path)
	return rt.unpack(x, head, second.Via, path)
}

// PathGeometry returns the polyline of an unpacked vertex path, using stored shapes where available.
func (rt *RouteAlgorithm) PathGeometry(path []uint32) ([]datastructure.Coordinate, error) {
	if len(path) == 0 {
		return []datastructure.Coordinate{}, nil
	}
	coords := []datastructure.Coordinate{rt.ch.GetCoordinate(path[0])}
	for i := 1; i < len(path); i++ {
		tail, head := path[i-1], path[i]
		if rt.shapes != nil {
			shape, ok, err := rt.shapes.Get(tail, head)
			if err != nil {
				return nil, err
			}
			if !ok {
				shape, ok, err = rt.shapes.Get(head, tail)
				if err != nil {
					return nil, err
				}
				if ok {
					shape = util.ReverseG(append([]datastructure.Coordinate(nil), shape...))
				}
			}
			coords = append(coords, shape...)
		}
		coords = append(coords, rt.ch.GetCoordinate(head))
	}
	return coords, nil
}
