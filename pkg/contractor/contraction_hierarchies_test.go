package contractor

import (
	"math"
	"testing"

	"github.com/lintang-b-s/navigatorx-ch/pkg"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/metrics"
	"github.com/lintang-b-s/navigatorx-ch/pkg/storage/buffer"
	"github.com/lintang-b-s/navigatorx-ch/pkg/storage/disk"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/exp/rand"
)

type testEdge struct {
	from, to      uint32
	weight        float64
	bidirectional bool
}

func populate(t *testing.T, g *datastructure.DynamicGraph, n uint32, edges []testEdge) {
	t.Helper()
	require.NoError(t, g.Resize(n))
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e.from, e.to, datastructure.NewArcData(e.weight, true, e.bidirectional)))
	}
}

func newTestGraph(t *testing.T, n uint32, edges []testEdge) *datastructure.DynamicGraph {
	t.Helper()
	g, err := datastructure.NewDynamicGraph(int(n), datastructure.NewMemoryGraphArrays(int(n)), datastructure.NewMemoryShapeStore())
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	populate(t, g, n, edges)
	return g
}

func newPagedTestGraph(t *testing.T, n uint32, edges []testEdge) *datastructure.DynamicGraph {
	t.Helper()
	return newPagedTestGraphWithPool(t, n, edges, 1024, 32)
}

func newPagedTestGraphWithPool(t *testing.T, n uint32, edges []testEdge, pageSize, frames int) *datastructure.DynamicGraph {
	t.Helper()
	dm, err := disk.OpenInMemoryPebbleDiskManager(pageSize, true)
	require.NoError(t, err)
	pool, err := buffer.NewBufferPoolManager(dm, frames)
	require.NoError(t, err)
	arrays, err := datastructure.NewPagedGraphArrays(pool)
	require.NoError(t, err)
	g, err := datastructure.NewDynamicGraph(int(n), arrays, datastructure.NewMemoryShapeStore())
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	populate(t, g, n, edges)
	return g
}

// fixedOrder contracts vertices in the order given by rank.
type fixedOrder struct {
	rank map[uint32]int
}

func (f fixedOrder) Calculate(v uint32) (int, error) {
	return f.rank[v], nil
}

func (fixedOrder) NotifyContracted(uint32) {}

func arcsOf(t *testing.T, g *datastructure.DynamicGraph, v uint32) []datastructure.Arc {
	t.Helper()
	arcs, err := g.GetArcs(v)
	require.NoError(t, err)
	return arcs
}

func TestWitnessSearch(t *testing.T) {
	// 0 -> 1 -> 2 costs 4, 0 -> 3 -> 2 costs 6
	g := newTestGraph(t, 4, []testEdge{
		{0, 1, 2, false},
		{1, 2, 2, false},
		{0, 3, 3, false},
		{3, 2, 3, false},
	})
	ws := NewDijkstraWitnessSearch(g, 0)

	found, err := ws.Exists(0, 2, 1, 6)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = ws.Exists(0, 2, 1, 5.9)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = ws.Exists(0, 2, 3, 4)
	require.NoError(t, err)
	assert.True(t, found)

	// backward arcs are not followed
	found, err = ws.Exists(2, 0, 1, 100)
	require.NoError(t, err)
	assert.False(t, found)

	capped := NewDijkstraWitnessSearch(g, 1)
	found, err = capped.Exists(0, 2, 3, 4)
	require.NoError(t, err)
	assert.False(t, found)
}

/*
4 vertices, every edge bidirectional with weight 1:

	0 --- 1 --- 2
	       \   /
	        \ /
	         3
*/
func TestEdgeDifference(t *testing.T) {
	g := newTestGraph(t, 4, []testEdge{
		{0, 1, 1, true},
		{1, 2, 1, true},
		{1, 3, 1, true},
		{2, 3, 1, true},
	})
	ed := NewEdgeDifference(g, NewDijkstraWitnessSearch(g, 0))

	cases := []struct {
		v    uint32
		want int
	}{
		{1, 4 - 3}, // 0->2, 0->3, 2->0, 3->0 need shortcuts. 2<->3 have a witness
		{0, -1},
		{2, -2},
		{3, -2},
	}
	for _, c := range cases {
		got, err := ed.Calculate(c.v)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "vertex %d", c.v)
	}
}

func TestContractionPathShortcut(t *testing.T) {
	const a, b, c = 0, 1, 2
	edges := []testEdge{
		{a, b, 2, false},
		{b, c, 3, false},
	}
	order := fixedOrder{rank: map[uint32]int{b: 0, a: 1, c: 2}}

	t.Run("contract b", func(t *testing.T) {
		g := newTestGraph(t, 3, edges)
		ch := NewContractedGraph(g, WithCalculator(order))
		require.NoError(t, ch.contractVertex(b))
		assert.Equal(t, int64(1), ch.ShortcutCount())

		assert.Equal(t, []datastructure.Arc{
			datastructure.NewArc(c, datastructure.ArcData{Weight: 5, Forward: true, Via: b}),
		}, arcsOf(t, g, a))
		assert.Equal(t, []datastructure.Arc{
			datastructure.NewArc(a, datastructure.ArcData{Weight: 5, Backward: true, Via: b}),
		}, arcsOf(t, g, c))
		assert.ElementsMatch(t, []datastructure.Arc{
			datastructure.NewArc(a, datastructure.NewArcData(2, false, true)),
			datastructure.NewArc(c, datastructure.NewArcData(3, true, false)),
		}, arcsOf(t, g, b))
	})

	t.Run("full contraction", func(t *testing.T) {
		g := newTestGraph(t, 3, edges)
		ch := NewContractedGraph(g, WithCalculator(order))
		require.NoError(t, ch.Contraction())

		assert.Equal(t, []int32{1, 0, 2}, ch.Levels())
		assert.Equal(t, int64(1), ch.ShortcutCount())
		// a keeps its upward shortcut, c is the top of the hierarchy.
		assert.Equal(t, []datastructure.Arc{
			datastructure.NewArc(c, datastructure.ArcData{Weight: 5, Forward: true, Via: b}),
		}, arcsOf(t, g, a))
		assert.Empty(t, arcsOf(t, g, c))
		assert.True(t, g.IsFrozen())
	})
}

/*
from https://jlazarsfeld.github.io/ch.150.project/sections/8-contraction/
p=0, v=1, q=2, w=3, r=4

	 p
	  \
	   10
	    \
	     v -----3----- r
	    /            /
	   6            5
	  /            /
	 q ---5----- w

every edge bidirectional. contracting v first adds p-q (16), p-r (13) and q-r (9, q-w-r costs 10).
*/
func TestContractVertexV(t *testing.T) {
	const p, v, q, w, r = 0, 1, 2, 3, 4
	g := newTestGraph(t, 5, []testEdge{
		{p, v, 10, true},
		{v, r, 3, true},
		{v, q, 6, true},
		{q, w, 5, true},
		{w, r, 5, true},
	})
	ch := NewContractedGraph(g, WithCalculator(fixedOrder{rank: map[uint32]int{v: 0, p: 1, q: 2, w: 3, r: 4}}))
	require.NoError(t, ch.contractVertex(v))

	assert.ElementsMatch(t, []datastructure.Arc{
		datastructure.NewArc(q, datastructure.ArcData{Weight: 16, Forward: true, Backward: true, Via: v}),
		datastructure.NewArc(r, datastructure.ArcData{Weight: 13, Forward: true, Backward: true, Via: v}),
	}, arcsOf(t, g, p))
	assert.ElementsMatch(t, []datastructure.Arc{
		datastructure.NewArc(w, datastructure.NewArcData(5, true, true)),
		datastructure.NewArc(p, datastructure.ArcData{Weight: 16, Forward: true, Backward: true, Via: v}),
		datastructure.NewArc(r, datastructure.ArcData{Weight: 9, Forward: true, Backward: true, Via: v}),
	}, arcsOf(t, g, q))
	assert.Equal(t, int64(6), ch.ShortcutCount()) // three pairs, both directions
	// 5 edges between the remaining vertices, both sides, plus v's own 3 records.
	assert.Equal(t, int64(5*2+3), g.ArcCount())
}

func randomEdges(rng *rand.Rand, n uint32) []testEdge {
	edges := make([]testEdge, 0, 3*n)
	for i := uint32(0); i < 3*n; i++ {
		from := uint32(rng.Intn(int(n)))
		to := uint32(rng.Intn(int(n)))
		if from == to {
			continue
		}
		edges = append(edges, testEdge{
			from:          from,
			to:            to,
			weight:        float64(1 + rng.Intn(20)),
			bidirectional: rng.Intn(2) == 0,
		})
	}
	return edges
}

// forwardAdjacency copies the forward arcs so distances can be checked after contraction.
func forwardAdjacency(t *testing.T, g *datastructure.DynamicGraph) [][]datastructure.Arc {
	t.Helper()
	adj := make([][]datastructure.Arc, g.VertexCount())
	for v := range adj {
		for _, arc := range arcsOf(t, g, uint32(v)) {
			if arc.Data.Forward {
				adj[v] = append(adj[v], arc)
			}
		}
	}
	return adj
}

func dijkstra(adj [][]datastructure.Arc, s uint32) []float64 {
	dist := make([]float64, len(adj))
	done := make([]bool, len(adj))
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[s] = 0
	for {
		u := -1
		for i := range dist {
			if !done[i] && !math.IsInf(dist[i], 1) && (u == -1 || dist[i] < dist[u]) {
				u = i
			}
		}
		if u == -1 {
			return dist
		}
		done[u] = true
		for _, arc := range adj[u] {
			dist[arc.Neighbor] = math.Min(dist[arc.Neighbor], dist[u]+arc.Data.Weight)
		}
	}
}

// upwardAdjacency. forward (or backward) arcs of every vertex after contraction, all of them
// point at higher levels.
func upwardAdjacency(t *testing.T, g *datastructure.DynamicGraph, levels []int32, backward bool) [][]datastructure.Arc {
	t.Helper()
	adj := make([][]datastructure.Arc, g.VertexCount())
	for v := range adj {
		for _, arc := range arcsOf(t, g, uint32(v)) {
			require.Greater(t, levels[arc.Neighbor], levels[v])
			if (!backward && arc.Data.Forward) || (backward && arc.Data.Backward) {
				adj[v] = append(adj[v], arc)
			}
		}
	}
	return adj
}

func chDistance(up, down [][]datastructure.Arc, s, target uint32) float64 {
	forward := dijkstra(up, s)
	backward := dijkstra(down, target)
	best := math.Inf(1)
	for v := range forward {
		best = math.Min(best, forward[v]+backward[v])
	}
	return best
}

func assertDistancesPreserved(t *testing.T, g *datastructure.DynamicGraph, opts ...Option) *ContractedGraph {
	t.Helper()
	original := forwardAdjacency(t, g)

	ch := NewContractedGraph(g, opts...)
	require.NoError(t, ch.Contraction())

	levels := ch.Levels()
	up := upwardAdjacency(t, g, levels, false)
	down := upwardAdjacency(t, g, levels, true)
	for s := uint32(0); s < g.VertexCount(); s++ {
		want := dijkstra(original, s)
		for target := uint32(0); target < g.VertexCount(); target++ {
			assert.Equal(t, want[target], chDistance(up, down, s, target), "distance %d -> %d", s, target)
		}
	}
	return ch
}

func TestContractionPreservesDistances(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		n := uint32(2 + rng.Intn(49))
		g := newTestGraph(t, n, randomEdges(rng, n))
		assertDistancesPreserved(t, g, WithWorkers(4), WithLogger(zaptest.NewLogger(t)))
	}
}

func TestContractionPreservesDistancesPaged(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n := uint32(40)
	g := newPagedTestGraph(t, n, randomEdges(rng, n))
	assertDistancesPreserved(t, g, WithWorkers(2))
}

// more scoring workers than buffer pool frames: workers wait for a frame instead of failing.
func TestContractionPagedMoreWorkersThanFrames(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	n := uint32(200)
	edges := randomEdges(rng, n)

	memory := newTestGraph(t, n, edges)
	want := NewContractedGraph(memory, WithWorkers(32))
	require.NoError(t, want.Contraction())

	paged := newPagedTestGraphWithPool(t, n, edges, 512, 8)
	got := NewContractedGraph(paged, WithWorkers(32))
	require.NoError(t, got.Contraction())

	assert.Equal(t, want.Levels(), got.Levels())
	assert.Equal(t, want.ShortcutCount(), got.ShortcutCount())
	for v := uint32(0); v < n; v++ {
		assert.Equal(t, arcsOf(t, memory, v), arcsOf(t, paged, v), "arcs of vertex %d", v)
	}
}

func TestContractionWithSettleCap(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := uint32(30)
	edges := randomEdges(rng, n)

	// giving up early only costs extra shortcuts.
	assertDistancesPreserved(t, newTestGraph(t, n, edges), WithMaxSettledNodes(1))
	assertDistancesPreserved(t, newTestGraph(t, n, edges), WithMaxSettledNodes(3))
}

func TestContractionLevelsArePermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	n := uint32(50)
	g := newTestGraph(t, n, randomEdges(rng, n))

	reg := prometheus.NewRegistry()
	m := metrics.NewContractionMetrics(reg)
	ch := NewContractedGraph(g, WithMetrics(m))
	require.NoError(t, ch.Contraction())

	seen := make([]bool, n)
	for v := uint32(0); v < n; v++ {
		level := ch.Level(v)
		require.NotEqual(t, pkg.UNCONTRACTED, level)
		require.Less(t, level, int32(n))
		assert.False(t, seen[level])
		seen[level] = true
	}

	assert.Equal(t, float64(n), testutil.ToFloat64(m.ContractedVertices))
	assert.Equal(t, float64(ch.ShortcutCount()), testutil.ToFloat64(m.Shortcuts))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RemainingVertices))
	assert.Equal(t, n, ch.Metadata().VertexCount)
}

func TestContractionDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	n := uint32(45)
	edges := randomEdges(rng, n)

	run := func(workers int) ([]int32, [][]datastructure.Arc) {
		g := newTestGraph(t, n, edges)
		ch := NewContractedGraph(g, WithWorkers(workers))
		require.NoError(t, ch.Contraction())
		arcs := make([][]datastructure.Arc, n)
		for v := uint32(0); v < n; v++ {
			arcs[v] = arcsOf(t, g, v)
		}
		return ch.Levels(), arcs
	}

	levelsOne, arcsOne := run(1)
	levelsTwo, arcsTwo := run(8)
	assert.Equal(t, levelsOne, levelsTwo)
	assert.Equal(t, arcsOne, arcsTwo)
}

// on a graph where every arc is a shortest path, every shortcut is one too.
func TestShortcutMinimality(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	n := uint32(40)
	raw := forwardAdjacency(t, newTestGraph(t, n, randomEdges(rng, n)))

	edges := make([]testEdge, 0)
	for v := uint32(0); v < n; v++ {
		dist := dijkstra(raw, v)
		for _, arc := range raw[v] {
			if arc.Data.Weight == dist[arc.Neighbor] {
				edges = append(edges, testEdge{v, arc.Neighbor, arc.Data.Weight, false})
			}
		}
	}
	g := newTestGraph(t, n, edges)
	original := forwardAdjacency(t, g)

	ch := NewContractedGraph(g)
	require.NoError(t, ch.Contraction())

	for v := uint32(0); v < n; v++ {
		fromV := dijkstra(original, v)
		for _, arc := range arcsOf(t, g, v) {
			if !arc.Data.IsShortcut() {
				continue
			}
			if arc.Data.Forward {
				assert.Equal(t, fromV[arc.Neighbor], arc.Data.Weight)
			}
			if arc.Data.Backward {
				assert.Equal(t, dijkstra(original, arc.Neighbor)[v], arc.Data.Weight)
			}
		}
	}
}

// in -> u -> out costs 5, the direct arc in -> out costs 4 and is the witness.
func TestContractVertexSkipsWitnessedShortcut(t *testing.T) {
	const in, u, out = 0, 1, 2
	g := newTestGraph(t, 3, []testEdge{
		{in, u, 2, false},
		{u, out, 3, false},
		{in, out, 4, false},
	})
	ch := NewContractedGraph(g)
	require.NoError(t, ch.contractVertex(u))

	assert.Equal(t, int64(0), ch.ShortcutCount())
	for v := uint32(0); v < 3; v++ {
		if v == u {
			continue
		}
		for _, arc := range arcsOf(t, g, v) {
			assert.NotEqual(t, int32(u), arc.Data.Via, "arc %d -> %d", v, arc.Neighbor)
			assert.NotEqual(t, uint32(u), arc.Neighbor)
		}
	}
	arc, ok, err := g.GetArc(in, out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4.0, arc.Data.Weight)
	assert.False(t, arc.Data.IsShortcut())
}

// 0 -> 1 -> 2 contracted in the order 1, 0, 2: degrees 2, 1 (the shortcut) and 0.
func TestContractionMeanDegree(t *testing.T) {
	g := newTestGraph(t, 3, []testEdge{
		{0, 1, 1, false},
		{1, 2, 1, false},
	})
	ch := NewContractedGraph(g, WithCalculator(fixedOrder{rank: map[uint32]int{1: 0, 0: 1, 2: 2}}))
	require.NoError(t, ch.Contraction())

	assert.Equal(t, []int32{1, 0, 2}, ch.Levels())
	assert.Equal(t, int64(1), ch.ShortcutCount())
	assert.Equal(t, 1.0, ch.Metadata().MeanDegree)
}

func TestContractionEmptyGraph(t *testing.T) {
	g := newTestGraph(t, 0, nil)
	ch := NewContractedGraph(g)
	require.NoError(t, ch.Contraction())
	assert.Empty(t, ch.Levels())
}
