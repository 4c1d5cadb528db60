package datastructure

import (
	"math"
	"sync"
	"testing"

	"github.com/lintang-b-s/navigatorx-ch/pkg"
	"github.com/lintang-b-s/navigatorx-ch/pkg/storage/buffer"
	"github.com/lintang-b-s/navigatorx-ch/pkg/storage/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPagedTestArrays(t *testing.T) GraphArrays {
	t.Helper()
	dm, err := disk.OpenInMemoryPebbleDiskManager(512, true)
	require.NoError(t, err)
	pool, err := buffer.NewBufferPoolManager(dm, 16)
	require.NoError(t, err)
	arrays, err := NewPagedGraphArrays(pool)
	require.NoError(t, err)
	return arrays
}

// graphBackings runs each test against the in-memory and the pebble paged backing.
func graphBackings() map[string]func(t *testing.T) GraphArrays {
	return map[string]func(t *testing.T) GraphArrays{
		"memory": func(t *testing.T) GraphArrays { return NewMemoryGraphArrays(4) },
		"paged":  newPagedTestArrays,
	}
}

func newTestGraph(t *testing.T, arrays GraphArrays, n int) *DynamicGraph {
	t.Helper()
	g, err := NewDynamicGraph(4, arrays, NewMemoryShapeStore())
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	for i := 0; i < n; i++ {
		_, err := g.AddVertex(NewCoordinate(float64(i), float64(i)))
		require.NoError(t, err)
	}
	return g
}

func arcsOf(t *testing.T, g *DynamicGraph, v uint32) []Arc {
	t.Helper()
	arcs, err := g.GetArcs(v)
	require.NoError(t, err)
	return arcs
}

func TestDynamicGraphAddEdge(t *testing.T) {
	for name, backing := range graphBackings() {
		t.Run(name, func(t *testing.T) {
			g := newTestGraph(t, backing(t), 3)

			require.NoError(t, g.AddEdge(0, 1, NewArcData(2, true, true)))
			require.NoError(t, g.AddEdge(1, 2, NewArcData(3, true, false)))

			assert.Equal(t, []Arc{NewArc(1, NewArcData(2, true, true))}, arcsOf(t, g, 0))
			assert.ElementsMatch(t, []Arc{
				NewArc(0, NewArcData(2, true, true)),
				NewArc(2, NewArcData(3, true, false)),
			}, arcsOf(t, g, 1))
			assert.Equal(t, []Arc{NewArc(1, NewArcData(3, false, true))}, arcsOf(t, g, 2))
			assert.Equal(t, int64(4), g.ArcCount())
			assert.Equal(t, uint32(3), g.VertexCount())

			coord, err := g.GetCoordinate(2)
			require.NoError(t, err)
			assert.Equal(t, NewCoordinate(2, 2), coord)

			ok, err := g.ContainsArc(2, 1)
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = g.ContainsArc(0, 2)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestDynamicGraphMergeRule(t *testing.T) {
	for name, backing := range graphBackings() {
		t.Run(name, func(t *testing.T) {
			g := newTestGraph(t, backing(t), 2)

			require.NoError(t, g.AddArc(0, 1, NewArcData(5, true, false)))
			require.NoError(t, g.AddArc(0, 1, NewArcData(3, true, false)))
			assert.Equal(t, []Arc{NewArc(1, NewArcData(3, true, false))}, arcsOf(t, g, 0))

			// more expensive record is dropped
			require.NoError(t, g.AddArc(0, 1, NewArcData(7, true, false)))
			assert.Equal(t, []Arc{NewArc(1, NewArcData(3, true, false))}, arcsOf(t, g, 0))

			// cheaper backward direction is kept next to the forward one
			require.NoError(t, g.AddArc(0, 1, NewArcData(4, false, true)))
			assert.ElementsMatch(t, []Arc{
				NewArc(1, NewArcData(3, true, false)),
				NewArc(1, NewArcData(4, false, true)),
			}, arcsOf(t, g, 0))

			// same weight in both directions collapses into one record
			require.NoError(t, g.AddArc(0, 1, NewArcData(3, false, true)))
			assert.Equal(t, []Arc{NewArc(1, NewArcData(3, true, true))}, arcsOf(t, g, 0))
			assert.Equal(t, int64(1), g.ArcCount())
		})
	}
}

func TestMergeArcDataShortcuts(t *testing.T) {
	fwd := NewShortcutData(5, 7)
	bwd := NewShortcutData(5, 7).Reverse()
	assert.Equal(t, []ArcData{{Weight: 5, Forward: true, Backward: true, Via: 7}}, mergeArcData([]ArcData{fwd}, bwd))

	// equal weight but different via keeps the directions apart
	other := NewShortcutData(5, 8).Reverse()
	assert.Equal(t, []ArcData{fwd, other}, mergeArcData([]ArcData{fwd}, other))

	// ties keep the existing record
	original := NewArcData(5, true, false)
	assert.Equal(t, []ArcData{original}, mergeArcData([]ArcData{original}, NewShortcutData(5, 2)))
	assert.Equal(t, pkg.INVALID_VERTEX_ID, original.Via)
}

func TestDynamicGraphRemove(t *testing.T) {
	for name, backing := range graphBackings() {
		t.Run(name, func(t *testing.T) {
			g := newTestGraph(t, backing(t), 3)
			require.NoError(t, g.AddEdge(0, 1, NewArcData(1, true, true)))
			require.NoError(t, g.AddEdge(0, 2, NewArcData(1, true, true)))

			require.NoError(t, g.RemoveArc(0, 1))
			assert.Equal(t, []Arc{NewArc(2, NewArcData(1, true, true))}, arcsOf(t, g, 0))
			assert.Len(t, arcsOf(t, g, 1), 1)

			// absent arc
			require.NoError(t, g.RemoveArc(0, 1))

			require.NoError(t, g.RemoveEdge(0, 2))
			assert.Empty(t, arcsOf(t, g, 0))
			assert.Empty(t, arcsOf(t, g, 2))
			assert.Equal(t, int64(1), g.ArcCount())
		})
	}
}

func TestDynamicGraphIsolateVertex(t *testing.T) {
	for name, backing := range graphBackings() {
		t.Run(name, func(t *testing.T) {
			g := newTestGraph(t, backing(t), 4)
			require.NoError(t, g.AddEdge(0, 1, NewArcData(1, true, false)))
			require.NoError(t, g.AddEdge(2, 0, NewArcData(2, true, false)))
			require.NoError(t, g.AddEdge(0, 3, NewArcData(3, true, true)))
			require.NoError(t, g.AddEdge(1, 3, NewArcData(4, true, true)))

			arcs, err := g.IsolateVertex(0)
			require.NoError(t, err)
			assert.Len(t, arcs, 3)

			// 0 keeps its own records, the neighbours forget 0.
			assert.ElementsMatch(t, arcs, arcsOf(t, g, 0))
			assert.Equal(t, []Arc{NewArc(3, NewArcData(4, true, true))}, arcsOf(t, g, 1))
			assert.Empty(t, arcsOf(t, g, 2))
			assert.Equal(t, []Arc{NewArc(1, NewArcData(4, true, true))}, arcsOf(t, g, 3))
		})
	}
}

func TestDynamicGraphRelocateAndCompress(t *testing.T) {
	for name, backing := range graphBackings() {
		t.Run(name, func(t *testing.T) {
			g := newTestGraph(t, backing(t), 40)
			for v := uint32(1); v < 40; v++ {
				require.NoError(t, g.AddEdge(0, v, NewArcData(float64(v), true, true)))
			}
			for v := uint32(1); v < 40; v += 2 {
				require.NoError(t, g.RemoveEdge(0, v))
			}
			before := arcsOf(t, g, 0)
			require.Len(t, before, 19)
			slotsBefore := g.ArcSlots()

			require.NoError(t, g.Compress())
			assert.Less(t, g.ArcSlots(), slotsBefore)
			assert.Equal(t, before, arcsOf(t, g, 0))
			for v := uint32(2); v < 40; v += 2 {
				assert.Equal(t, []Arc{NewArc(0, NewArcData(float64(v), true, true))}, arcsOf(t, g, v))
			}

			// still growable after compaction
			require.NoError(t, g.AddEdge(0, 1, NewArcData(1, true, true)))
			assert.Len(t, arcsOf(t, g, 0), 20)
		})
	}
}

func TestDynamicGraphResize(t *testing.T) {
	g := newTestGraph(t, NewMemoryGraphArrays(0), 1)
	require.NoError(t, g.Resize(10))
	assert.Equal(t, uint32(10), g.VertexCount())
	assert.Empty(t, arcsOf(t, g, 9))
}

func TestDynamicGraphArcSlotOverflowPanics(t *testing.T) {
	g := newTestGraph(t, NewMemoryGraphArrays(2), 2)
	require.NoError(t, g.AddEdge(0, 1, NewArcData(1, true, true)))

	// relocating a block past the uint32 range must fail instead of wrapping to slot 0.
	g.arcSlots = math.MaxUint32
	assert.Panics(t, func() { g.AddEdge(0, 1, NewArcData(0.5, true, false)) })
	assert.Panics(t, func() { g.AddEdge(1, 0, NewArcData(0.5, false, true)) })

	g.arcSlots = 2
	assert.Equal(t, []Arc{NewArc(1, NewArcData(1, true, true))}, arcsOf(t, g, 0))
}

func TestDynamicGraphPanics(t *testing.T) {
	g := newTestGraph(t, NewMemoryGraphArrays(2), 2)

	assert.Panics(t, func() { g.GetArcs(5) })
	assert.Panics(t, func() { g.AddEdge(0, 0, NewArcData(1, true, true)) })
	assert.Panics(t, func() { g.AddEdge(0, 1, NewArcData(1, false, false)) })

	g.Freeze()
	assert.True(t, g.IsFrozen())
	assert.Panics(t, func() { g.AddEdge(0, 1, NewArcData(1, true, true)) })
	assert.Panics(t, func() { g.IsolateVertex(0) })
	_, err := g.GetArcs(0)
	assert.NoError(t, err)
}

func TestDynamicGraphConcurrentCheaperInserts(t *testing.T) {
	g := newTestGraph(t, NewMemoryGraphArrays(2), 2)
	require.NoError(t, g.AddEdge(0, 1, NewArcData(1000, true, false)))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for w := 999; w > 0; w-- {
			assert.NoError(t, g.AddEdge(0, 1, NewArcData(float64(w), true, false)))
		}
	}()
	go func() {
		defer wg.Done()
		last := 1001.0
		for i := 0; i < 1000; i++ {
			arcs, err := g.GetArcs(0)
			if !assert.NoError(t, err) || !assert.Len(t, arcs, 1) {
				return
			}
			assert.LessOrEqual(t, arcs[0].Data.Weight, last)
			last = arcs[0].Data.Weight
		}
	}()
	wg.Wait()

	assert.Equal(t, []Arc{NewArc(0, NewArcData(1, false, true))}, arcsOf(t, g, 1))
}

func TestDynamicGraphClose(t *testing.T) {
	g, err := NewDynamicGraph(4, newPagedTestArrays(t), NewMemoryShapeStore())
	require.NoError(t, err)
	_, err = g.AddVertex(Coordinate{})
	require.NoError(t, err)
	require.NoError(t, g.Close())
	require.NoError(t, g.Close())
}
