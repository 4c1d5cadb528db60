package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lintang-b-s/navigatorx-ch/pkg"
	"github.com/lintang-b-s/navigatorx-ch/pkg/contractor"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/engine/routingalgorithm"
	"github.com/lintang-b-s/navigatorx-ch/pkg/hierarchy"
	"github.com/lintang-b-s/navigatorx-ch/pkg/snap"
)

// 0 -> 1 -> 2 along the equator, 3 is unreachable.
func newService(t *testing.T) *NavigationService {
	t.Helper()
	g, err := datastructure.NewDynamicGraph(4, datastructure.NewMemoryGraphArrays(4), datastructure.NewMemoryShapeStore())
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })

	coords := []datastructure.Coordinate{
		datastructure.NewCoordinate(0, 0),
		datastructure.NewCoordinate(0, 0.01),
		datastructure.NewCoordinate(0, 0.02),
		datastructure.NewCoordinate(1, 1),
	}
	for _, c := range coords {
		_, err := g.AddVertex(c)
		require.NoError(t, err)
	}
	require.NoError(t, g.AddEdge(0, 1, datastructure.NewArcData(1, true, false)))
	require.NoError(t, g.AddEdge(1, 2, datastructure.NewArcData(2, true, false)))

	ch := contractor.NewContractedGraph(g)
	require.NoError(t, ch.Contraction())
	h, err := hierarchy.Export(g, ch.Levels())
	require.NoError(t, err)

	return NewNavigationService(routingalgorithm.NewRouteAlgorithm(h, nil), snap.NewRoadSnapper(h), 2)
}

func TestShortestPathETA(t *testing.T) {
	svc := newService(t)

	res, err := svc.ShortestPathETA(context.Background(), 0.0001, 0.0001, 0, 0.0199)
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.ETA)
	assert.Equal(t, []uint32{0, 1, 2}, res.Path)
	assert.Len(t, res.Route, 3)
	assert.InDelta(t, 2224, res.Dist, 5)
	assert.Equal(t, datastructure.CreatePolyline(res.Route), res.Polyline)

	_, err = svc.ShortestPathETA(context.Background(), 0, 0.02, 0, 0)
	assert.Equal(t, pkg.ErrNotFound, pkg.CodeOf(err))
}

func TestManyToManyQuery(t *testing.T) {
	svc := newService(t)

	sources := []datastructure.Coordinate{datastructure.NewCoordinate(0, 0), datastructure.NewCoordinate(0, 0.01)}
	targets := []datastructure.Coordinate{datastructure.NewCoordinate(0, 0.02), datastructure.NewCoordinate(1, 1)}

	res, err := svc.ManyToManyQuery(context.Background(), sources, targets)
	require.NoError(t, err)
	require.Len(t, res, 2)

	first := res[sources[0]]
	require.Len(t, first, 2)
	assert.Equal(t, targets[0], first[0].TargetCoord)
	assert.True(t, first[0].Found)
	assert.Equal(t, 3.0, first[0].ETA)
	assert.False(t, first[1].Found)

	second := res[sources[1]]
	require.Len(t, second, 2)
	assert.Equal(t, 2.0, second[0].ETA)
}
