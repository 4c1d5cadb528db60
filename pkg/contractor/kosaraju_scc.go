package contractor

import (
	"math"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
)

type SCCResult struct {
	Components      [][]uint32
	ComponentOf     []uint32
	CondensationAdj [][]uint32 // component -> components reachable by one arc
}

type dfsFrame struct {
	v    uint32
	arcs []datastructure.Arc
	next int
}

// KosarajuSCC finds the strongly connected components over forward arcs. the dfs is iterative,
// road networks are too deep for recursion.
func KosarajuSCC(g ArcReader) (SCCResult, error) {
	n := g.VertexCount()

	order := make([]uint32, 0, n)
	visited := make([]bool, n)
	for v := uint32(0); v < n; v++ {
		if visited[v] {
			continue
		}
		if err := iterativeDFS(g, v, visited, false, &order); err != nil {
			return SCCResult{}, err
		}
	}
	order = util.ReverseG(order)

	visited = make([]bool, n)
	components := make([][]uint32, 0)
	roots := make([]uint32, n)
	for _, v := range order {
		if visited[v] {
			continue
		}
		component := make([]uint32, 0)
		if err := iterativeDFS(g, v, visited, true, &component); err != nil {
			return SCCResult{}, err
		}
		components = append(components, component)

		root := uint32(math.MaxUint32)
		for _, u := range component {
			root = min(root, u)
		}
		for _, u := range component {
			roots[u] = root
		}
	}

	componentOf := make([]uint32, n)
	for i, component := range components {
		for _, v := range component {
			componentOf[v] = uint32(i)
		}
	}

	condAdj := make([][]uint32, len(components))
	seen := make(map[[2]uint32]struct{})
	for v := uint32(0); v < n; v++ {
		arcs, err := g.GetArcs(v)
		if err != nil {
			return SCCResult{}, err
		}
		for _, arc := range arcs {
			if !arc.Data.Forward || roots[v] == roots[arc.Neighbor] {
				continue
			}
			from, to := componentOf[v], componentOf[arc.Neighbor]
			if _, ok := seen[[2]uint32{from, to}]; ok {
				continue
			}
			seen[[2]uint32{from, to}] = struct{}{}
			condAdj[from] = append(condAdj[from], to)
		}
	}

	return SCCResult{
		Components:      components,
		ComponentOf:     componentOf,
		CondensationAdj: condAdj,
	}, nil
}

// iterativeDFS appends vertices reachable from start in post order. reversed follows backward arcs.
func iterativeDFS(g ArcReader, start uint32, visited []bool, reversed bool, output *[]uint32) error {
	arcs, err := g.GetArcs(start)
	if err != nil {
		return err
	}
	visited[start] = true
	stack := []dfsFrame{{v: start, arcs: arcs}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == len(top.arcs) {
			*output = append(*output, top.v)
			stack = stack[:len(stack)-1]
			continue
		}

		arc := top.arcs[top.next]
		top.next++

		traversable := arc.Data.Forward
		if reversed {
			traversable = arc.Data.Backward
		}
		if !traversable || visited[arc.Neighbor] {
			continue
		}

		next, err := g.GetArcs(arc.Neighbor)
		if err != nil {
			return err
		}
		visited[arc.Neighbor] = true
		stack = append(stack, dfsFrame{v: arc.Neighbor, arcs: next})
	}
	return nil
}
