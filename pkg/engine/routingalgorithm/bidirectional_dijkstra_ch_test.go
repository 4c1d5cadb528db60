package routingalgorithm

import (
	"math"
	"testing"

	"github.com/lintang-b-s/navigatorx-ch/pkg"
	"github.com/lintang-b-s/navigatorx-ch/pkg/contractor"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/hierarchy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

type testEdge struct {
	from, to      uint32
	weight        float64
	bidirectional bool
}

func buildHierarchy(t *testing.T, n uint32, edges []testEdge, shapes datastructure.ShapeStore) *hierarchy.Hierarchy {
	t.Helper()
	g, err := datastructure.NewDynamicGraph(int(n), datastructure.NewMemoryGraphArrays(int(n)), shapes)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })

	for i := uint32(0); i < n; i++ {
		_, err := g.AddVertex(datastructure.NewCoordinate(float64(i), float64(i)))
		require.NoError(t, err)
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e.from, e.to, datastructure.NewArcData(e.weight, true, e.bidirectional)))
	}

	ch := contractor.NewContractedGraph(g)
	require.NoError(t, ch.Contraction())
	h, err := hierarchy.Export(g, ch.Levels())
	require.NoError(t, err)
	return h
}

// originalWeights[a][b] is the cheapest original arc a->b.
func originalWeights(n uint32, edges []testEdge) []map[uint32]float64 {
	w := make([]map[uint32]float64, n)
	for i := range w {
		w[i] = make(map[uint32]float64)
	}
	add := func(a, b uint32, weight float64) {
		if old, ok := w[a][b]; !ok || weight < old {
			w[a][b] = weight
		}
	}
	for _, e := range edges {
		add(e.from, e.to, e.weight)
		if e.bidirectional {
			add(e.to, e.from, e.weight)
		}
	}
	return w
}

func dijkstra(w []map[uint32]float64, s uint32) []float64 {
	dist := make([]float64, len(w))
	done := make([]bool, len(w))
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
		for v, weight := range w[u] {
			dist[v] = math.Min(dist[v], dist[u]+weight)
		}
	}
}

/*
p=0, v=1, q=2, w=3, r=4, f=5

	 p
	  \
	   10
	     \
		  v -----3----- r
		 /            /
		6            5
	   /            /
	  q ---5----- w ----15---- f

all edges bidirectional
*/
func TestShortestPathSmallGraph(t *testing.T) {
	edges := []testEdge{
		{0, 1, 10, true},
		{1, 4, 3, true},
		{1, 2, 6, true},
		{2, 3, 5, true},
		{3, 4, 5, true},
		{3, 5, 15, true},
	}
	h := buildHierarchy(t, 6, edges, nil)
	rt := NewRouteAlgorithm(h, nil)

	dist, path, err := rt.ShortestPath(0, 5)
	require.NoError(t, err)
	assert.Equal(t, 33.0, dist)
	assert.Equal(t, []uint32{0, 1, 4, 3, 5}, path)

	dist, path, err = rt.ShortestPath(2, 4)
	require.NoError(t, err)
	assert.Equal(t, 9.0, dist)
	assert.Equal(t, []uint32{2, 1, 4}, path)

	dist, path, err = rt.ShortestPath(3, 3)
	require.NoError(t, err)
	assert.Equal(t, 0.0, dist)
	assert.Equal(t, []uint32{3}, path)
}

func TestShortestPathMatchesDijkstra(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	for round := 0; round < 5; round++ {
		n := uint32(10 + rng.Intn(40))
		edges := make([]testEdge, 0, 3*n)
		for i := uint32(0); i < 3*n; i++ {
			from, to := uint32(rng.Intn(int(n))), uint32(rng.Intn(int(n)))
			if from == to {
				continue
			}
			edges = append(edges, testEdge{from, to, float64(1 + rng.Intn(20)), rng.Intn(2) == 0})
		}

		h := buildHierarchy(t, n, edges, nil)
		rt := NewRouteAlgorithm(h, nil)
		weights := originalWeights(n, edges)

		for s := uint32(0); s < n; s++ {
			want := dijkstra(weights, s)
			for target := uint32(0); target < n; target++ {
				dist, path, err := rt.ShortestPath(s, target)
				if math.IsInf(want[target], 1) {
					assert.Equal(t, pkg.ErrNotFound, pkg.CodeOf(err), "s=%d t=%d", s, target)
					continue
				}
				require.NoError(t, err, "s=%d t=%d", s, target)
				assert.Equal(t, want[target], dist, "s=%d t=%d", s, target)

				require.NotEmpty(t, path)
				assert.Equal(t, s, path[0])
				assert.Equal(t, target, path[len(path)-1])
				sum := 0.0
				for i := 1; i < len(path); i++ {
					w, ok := weights[path[i-1]][path[i]]
					require.True(t, ok, "unpacked hop %d->%d is not an original arc", path[i-1], path[i])
					sum += w
				}
				assert.Equal(t, dist, sum)
			}
		}
	}
}

func TestShortestPathBadInput(t *testing.T) {
	h := buildHierarchy(t, 2, []testEdge{{0, 1, 1, false}}, nil)
	rt := NewRouteAlgorithm(h, nil)

	_, _, err := rt.ShortestPath(0, 2)
	assert.Equal(t, pkg.ErrBadParamInput, pkg.CodeOf(err))

	_, _, err = rt.ShortestPath(1, 0)
	assert.Equal(t, pkg.ErrNotFound, pkg.CodeOf(err))
}

func TestPathGeometry(t *testing.T) {
	shapes := datastructure.NewMemoryShapeStore()
	mid := []datastructure.Coordinate{datastructure.NewCoordinate(0.5, 0.5)}
	require.NoError(t, shapes.Put(0, 1, mid))

	h := buildHierarchy(t, 3, []testEdge{{0, 1, 1, true}, {1, 2, 1, true}}, shapes)
	rt := NewRouteAlgorithm(h, shapes)

	_, path, err := rt.ShortestPath(2, 0)
	require.NoError(t, err)
	require.Equal(t, []uint32{2, 1, 0}, path)

	coords, err := rt.PathGeometry(path)
	require.NoError(t, err)
	assert.Equal(t, []datastructure.Coordinate{
		datastructure.NewCoordinate(2, 2),
		datastructure.NewCoordinate(1, 1),
		datastructure.NewCoordinate(0.5, 0.5),
		datastructure.NewCoordinate(0, 0),
	}, coords)

	empty, err := rt.PathGeometry(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUnpackPathOriginalArc(t *testing.T) {
	h := buildHierarchy(t, 2, []testEdge{{0, 1, 4, false}}, nil)
	rt := NewRouteAlgorithm(h, nil)
	assert.Equal(t, []uint32{0, 1}, rt.UnpackPath(0, 1, pkg.INVALID_VERTEX_ID))
}
