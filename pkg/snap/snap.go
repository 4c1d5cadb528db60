package snap

import (
	"errors"
	"math"

	"github.com/dhconnelly/rtreego"

	"github.com/lintang-b-s/navigatorx-ch/pkg"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/geo"
	"github.com/lintang-b-s/navigatorx-ch/pkg/kv"
)

const (
	rtreeMinChildren = 25
	rtreeMaxChildren = 50
	// nearest candidates by planar lat/lon distance, re-ranked on the sphere.
	candidates = 4
)

var ErrNoVertex = errors.New("no vertex to snap to")

type VertexLocations interface {
	VertexCount() uint32
	GetCoordinate(v uint32) datastructure.Coordinate
}

type SnapResult struct {
	Vertex   uint32
	Distance float64 // meters
}

type Snapper interface {
	Snap(c datastructure.Coordinate) (SnapResult, error)
}

type vertexLeaf struct {
	id    uint32
	coord datastructure.Coordinate
}

func (l *vertexLeaf) Bounds() rtreego.Rect {
	return rtreego.Point{l.coord.Lat, l.coord.Lon}.ToRect(1e-9)
}

// RoadSnapper keeps every vertex in an in-memory r-tree.
type RoadSnapper struct {
	rtree *rtreego.Rtree
}

func NewRoadSnapper(locs VertexLocations) *RoadSnapper {
	leaves := make([]rtreego.Spatial, 0, locs.VertexCount())
	for v := uint32(0); v < locs.VertexCount(); v++ {
		leaves = append(leaves, &vertexLeaf{id: v, coord: locs.GetCoordinate(v)})
	}
	return &RoadSnapper{rtree: rtreego.NewTree(2, rtreeMinChildren, rtreeMaxChildren, leaves...)}
}

func (rs *RoadSnapper) Snap(c datastructure.Coordinate) (SnapResult, error) {
	nearest := rs.rtree.NearestNeighbors(candidates, rtreego.Point{c.Lat, c.Lon})
	best := SnapResult{Distance: math.MaxFloat64}
	found := false
	for _, obj := range nearest {
		leaf, ok := obj.(*vertexLeaf)
		if !ok {
			continue
		}
		if d := geo.DistanceMeters(c, leaf.coord); d < best.Distance || d == best.Distance && leaf.id < best.Vertex {
			best = SnapResult{Vertex: leaf.id, Distance: d}
			found = true
		}
	}
	if !found {
		return SnapResult{}, pkg.WrapErrorf(ErrNoVertex, pkg.ErrNotFound, "snapping %v", c)
	}
	return best, nil
}

// SnapWithinRadius returns every vertex inside the lat/lon box of the given half size in degrees.
func (rs *RoadSnapper) SnapWithinRadius(c datastructure.Coordinate, radius float64) ([]SnapResult, error) {
	bound, err := rtreego.NewRect(rtreego.Point{c.Lat - radius, c.Lon - radius}, []float64{2 * radius, 2 * radius})
	if err != nil {
		return nil, pkg.WrapErrorf(err, pkg.ErrBadParamInput, "radius %f", radius)
	}
	objs := rs.rtree.SearchIntersect(bound)
	results := make([]SnapResult, 0, len(objs))
	for _, obj := range objs {
		leaf := obj.(*vertexLeaf)
		results = append(results, SnapResult{Vertex: leaf.id, Distance: geo.DistanceMeters(c, leaf.coord)})
	}
	return results, nil
}

type h3Index interface {
	GetNearestVertices(lat, lon float64) ([]kv.KVVertex, error)
}

// H3Snapper looks up the vertices of the nearby h3 cells in the persisted index.
type H3Snapper struct {
	index h3Index
}

func NewH3Snapper(index h3Index) *H3Snapper {
	return &H3Snapper{index: index}
}

func (hs *H3Snapper) Snap(c datastructure.Coordinate) (SnapResult, error) {
	vertices, err := hs.index.GetNearestVertices(c.Lat, c.Lon)
	if errors.Is(err, kv.ErrVerticesNotFound) {
		return SnapResult{}, pkg.WrapErrorf(ErrNoVertex, pkg.ErrNotFound, "snapping %v", c)
	}
	if err != nil {
		return SnapResult{}, err
	}

	best := SnapResult{Distance: math.MaxFloat64}
	for _, v := range vertices {
		d := geo.DistanceMeters(c, datastructure.NewCoordinate(v.Lat, v.Lon))
		if d < best.Distance || d == best.Distance && v.ID < best.Vertex {
			best = SnapResult{Vertex: v.ID, Distance: d}
		}
	}
	return best, nil
}
