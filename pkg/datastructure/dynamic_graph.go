package datastructure

import (
	"errors"
	"math"
	"sync"

	"github.com/lintang-b-s/navigatorx-ch/pkg"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"golang.org/x/exp/slices"
)

const (
	vertexHeaderSize = 3 // first arc slot, arc count, block capacity
	estimatedDegree  = 4
)

type vertexHeader struct {
	first    uint32
	count    uint32
	capacity uint32
}

/*
DynamicGraph. mutable adjacency store used during contraction.

every vertex owns a block of consecutive slots in the neighbor/arcData arrays. block capacity is a
power of two. when a block is full it is relocated to the end of the arrays with twice the
capacity; the old slots stay unused until Compress.

all methods are safe for concurrent use. readers share the lock, every mutation (including
IsolateVertex, which touches many adjacency lists) is one critical section.
*/
type DynamicGraph struct {
	mu          sync.RWMutex
	arrays      GraphArrays
	shapes      ShapeStore
	vertexCount uint32
	arcSlots    int64 // first unused slot at the end of the arc arrays
	arcCount    int64
	frozen      bool
	closed      bool
}

func NewDynamicGraph(estimatedVertices int, arrays GraphArrays, shapes ShapeStore) (*DynamicGraph, error) {
	g := &DynamicGraph{
		arrays: arrays,
		shapes: shapes,
	}
	if err := g.reserveVertices(int64(estimatedVertices)); err != nil {
		return nil, pkg.WrapErrorf(err, pkg.ErrStorage, "allocating vertex arrays")
	}
	if err := g.reserveArcSlots(int64(estimatedVertices) * estimatedDegree); err != nil {
		return nil, pkg.WrapErrorf(err, pkg.ErrStorage, "allocating arc arrays")
	}
	return g, nil
}

func (g *DynamicGraph) reserveVertices(n int64) error {
	current := g.arrays.Coordinates.Len()
	if current >= n {
		return nil
	}
	newLen := max(n, 2*current)
	if err := g.arrays.Vertices.Resize(newLen * vertexHeaderSize); err != nil {
		return err
	}
	return g.arrays.Coordinates.Resize(newLen)
}

func (g *DynamicGraph) reserveArcSlots(n int64) error {
	current := g.arrays.Neighbors.Len()
	if current >= n {
		return nil
	}
	newLen := max(n, 2*current)
	if err := g.arrays.Neighbors.Resize(newLen); err != nil {
		return err
	}
	return g.arrays.ArcData.Resize(newLen)
}

func (g *DynamicGraph) assertVertex(v uint32) {
	util.AssertPanic(v < g.vertexCount, "vertex id out of range")
}

func (g *DynamicGraph) assertMutable() {
	util.AssertPanic(!g.frozen, "graph is frozen, contraction already finished")
}

func (g *DynamicGraph) readHeader(v uint32) (vertexHeader, error) {
	base := int64(v) * vertexHeaderSize
	first, err := g.arrays.Vertices.Get(base)
	if err != nil {
		return vertexHeader{}, err
	}
	count, err := g.arrays.Vertices.Get(base + 1)
	if err != nil {
		return vertexHeader{}, err
	}
	capacity, err := g.arrays.Vertices.Get(base + 2)
	if err != nil {
		return vertexHeader{}, err
	}
	return vertexHeader{first: first, count: count, capacity: capacity}, nil
}

func (g *DynamicGraph) writeHeader(v uint32, h vertexHeader) error {
	base := int64(v) * vertexHeaderSize
	if err := g.arrays.Vertices.Set(base, h.first); err != nil {
		return err
	}
	if err := g.arrays.Vertices.Set(base+1, h.count); err != nil {
		return err
	}
	return g.arrays.Vertices.Set(base+2, h.capacity)
}

// AddVertex appends a vertex and returns its id.
func (g *DynamicGraph) AddVertex(coord Coordinate) (uint32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assertMutable()
	return g.addVertexLocked(coord)
}

func (g *DynamicGraph) addVertexLocked(coord Coordinate) (uint32, error) {
	id := g.vertexCount
	if err := g.reserveVertices(int64(id) + 1); err != nil {
		return 0, pkg.WrapErrorf(err, pkg.ErrStorage, "growing vertex arrays")
	}
	if err := g.writeHeader(id, vertexHeader{}); err != nil {
		return 0, pkg.WrapErrorf(err, pkg.ErrStorage, "writing vertex %d", id)
	}
	if err := g.arrays.Coordinates.Set(int64(id), coord); err != nil {
		return 0, pkg.WrapErrorf(err, pkg.ErrStorage, "writing coordinate of vertex %d", id)
	}
	g.vertexCount++
	return id, nil
}

// Resize grows the graph to n vertices. new vertices have no arcs and a zero coordinate.
func (g *DynamicGraph) Resize(n uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assertMutable()
	if err := g.reserveVertices(int64(n)); err != nil {
		return pkg.WrapErrorf(err, pkg.ErrStorage, "growing vertex arrays")
	}
	for g.vertexCount < n {
		if _, err := g.addVertexLocked(Coordinate{}); err != nil {
			return err
		}
	}
	return nil
}

func (g *DynamicGraph) VertexCount() uint32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.vertexCount
}

// ArcCount. number of adjacency records, counting both sides of an edge.
func (g *DynamicGraph) ArcCount() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.arcCount
}

func (g *DynamicGraph) GetCoordinate(v uint32) (Coordinate, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	g.assertVertex(v)
	coord, err := g.arrays.Coordinates.Get(int64(v))
	if err != nil {
		return Coordinate{}, pkg.WrapErrorf(err, pkg.ErrStorage, "reading coordinate of vertex %d", v)
	}
	return coord, nil
}

func (g *DynamicGraph) Shapes() ShapeStore {
	return g.shapes
}

// GetArcs returns a copy of every record in v's adjacency.
func (g *DynamicGraph) GetArcs(v uint32) ([]Arc, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	g.assertVertex(v)
	return g.getArcsLocked(v)
}

func (g *DynamicGraph) getArcsLocked(v uint32) ([]Arc, error) {
	h, err := g.readHeader(v)
	if err != nil {
		return nil, pkg.WrapErrorf(err, pkg.ErrStorage, "reading vertex %d", v)
	}
	arcs := make([]Arc, h.count)
	for i := uint32(0); i < h.count; i++ {
		slot := int64(h.first) + int64(i)
		neighbor, err := g.arrays.Neighbors.Get(slot)
		if err != nil {
			return nil, pkg.WrapErrorf(err, pkg.ErrStorage, "reading arcs of vertex %d", v)
		}
		data, err := g.arrays.ArcData.Get(slot)
		if err != nil {
			return nil, pkg.WrapErrorf(err, pkg.ErrStorage, "reading arcs of vertex %d", v)
		}
		arcs[i] = NewArc(neighbor, data)
	}
	return arcs, nil
}

// GetArc returns the first record of tail's adjacency pointing at head.
func (g *DynamicGraph) GetArc(tail, head uint32) (Arc, bool, error) {
	arcs, err := g.GetArcs(tail)
	if err != nil {
		return Arc{}, false, err
	}
	for _, arc := range arcs {
		if arc.Neighbor == head {
			return arc, true, nil
		}
	}
	return Arc{}, false, nil
}

func (g *DynamicGraph) ContainsArc(tail, head uint32) (bool, error) {
	_, ok, err := g.GetArc(tail, head)
	return ok, err
}

// writeArcsLocked replaces v's adjacency with arcs, relocating the block when it is too small.
func (g *DynamicGraph) writeArcsLocked(v uint32, arcs []Arc) error {
	h, err := g.readHeader(v)
	if err != nil {
		return pkg.WrapErrorf(err, pkg.ErrStorage, "reading vertex %d", v)
	}
	oldCount := int64(h.count)

	if uint32(len(arcs)) > h.capacity {
		newCap := util.NextPowerOfTwo(uint32(len(arcs)))
		// block offsets are stored as uint32 in the vertex header.
		util.AssertPanic(g.arcSlots+int64(newCap) <= math.MaxUint32,
			"arc arrays exceed the uint32 slot range, Compress the graph or split it")
		if err := g.reserveArcSlots(g.arcSlots + int64(newCap)); err != nil {
			return pkg.WrapErrorf(err, pkg.ErrStorage, "growing arc arrays")
		}
		h.first = uint32(g.arcSlots)
		h.capacity = newCap
		g.arcSlots += int64(newCap)
	}

	for i, arc := range arcs {
		slot := int64(h.first) + int64(i)
		if err := g.arrays.Neighbors.Set(slot, arc.Neighbor); err != nil {
			return pkg.WrapErrorf(err, pkg.ErrStorage, "writing arcs of vertex %d", v)
		}
		if err := g.arrays.ArcData.Set(slot, arc.Data); err != nil {
			return pkg.WrapErrorf(err, pkg.ErrStorage, "writing arcs of vertex %d", v)
		}
	}
	h.count = uint32(len(arcs))
	if err := g.writeHeader(v, h); err != nil {
		return pkg.WrapErrorf(err, pkg.ErrStorage, "writing vertex %d", v)
	}
	g.arcCount += int64(len(arcs)) - oldCount
	return nil
}

/*
AddArc inserts a record into tail's adjacency only. records for the same (tail, head) pair are
merged: for each direction the cheaper record wins. if both directions end up with the same
weight and via they are stored as one bidirectional record, otherwise the pair keeps at most one
forward-only and one backward-only record.
*/
func (g *DynamicGraph) AddArc(tail, head uint32, data ArcData) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addArcLocked(tail, head, data)
}

// AddEdge inserts tail->head in tail's adjacency and its mirror in head's adjacency.
func (g *DynamicGraph) AddEdge(tail, head uint32, data ArcData) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.addArcLocked(tail, head, data); err != nil {
		return err
	}
	return g.addArcLocked(head, tail, data.Reverse())
}

func (g *DynamicGraph) addArcLocked(tail, head uint32, data ArcData) error {
	g.assertMutable()
	g.assertVertex(tail)
	g.assertVertex(head)
	util.AssertPanic(tail != head, "self loop arcs are not supported")
	util.AssertPanic(data.Forward || data.Backward, "arc must be traversable in at least one direction")

	arcs, err := g.getArcsLocked(tail)
	if err != nil {
		return err
	}

	rest := make([]Arc, 0, len(arcs)+1)
	existing := make([]ArcData, 0, 2)
	for _, arc := range arcs {
		if arc.Neighbor == head {
			existing = append(existing, arc.Data)
		} else {
			rest = append(rest, arc)
		}
	}

	merged := mergeArcData(existing, data)
	if slices.Equal(existing, merged) {
		return nil
	}
	for _, d := range merged {
		rest = append(rest, NewArc(head, d))
	}
	return g.writeArcsLocked(tail, rest)
}

// RemoveArc deletes every record tail->head from tail's adjacency. no-op if there is none.
func (g *DynamicGraph) RemoveArc(tail, head uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assertMutable()
	g.assertVertex(tail)
	g.assertVertex(head)
	return g.removeArcLocked(tail, head)
}

// RemoveEdge deletes the records between a and b on both sides.
func (g *DynamicGraph) RemoveEdge(a, b uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assertMutable()
	g.assertVertex(a)
	g.assertVertex(b)
	if err := g.removeArcLocked(a, b); err != nil {
		return err
	}
	return g.removeArcLocked(b, a)
}

func (g *DynamicGraph) removeArcLocked(tail, head uint32) error {
	arcs, err := g.getArcsLocked(tail)
	if err != nil {
		return err
	}
	kept := arcs[:0]
	for _, arc := range arcs {
		if arc.Neighbor != head {
			kept = append(kept, arc)
		}
	}
	if len(kept) == len(arcs) {
		return nil
	}
	return g.writeArcsLocked(tail, kept)
}

/*
IsolateVertex detaches v from the active graph: every neighbour loses its records pointing at v.
v keeps its own adjacency, which after contraction only points at higher-level vertices and is
read back by the hierarchy export. returns v's arcs.
*/
func (g *DynamicGraph) IsolateVertex(v uint32) ([]Arc, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assertMutable()
	g.assertVertex(v)

	arcs, err := g.getArcsLocked(v)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint32]struct{}, len(arcs))
	for _, arc := range arcs {
		if _, ok := seen[arc.Neighbor]; ok {
			continue
		}
		seen[arc.Neighbor] = struct{}{}
		if err := g.removeArcLocked(arc.Neighbor, v); err != nil {
			return nil, err
		}
	}
	return arcs, nil
}

// Compress moves every arc block to the front of the arc arrays, dropping slots left behind by
// relocated blocks.
func (g *DynamicGraph) Compress() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	type block struct {
		v uint32
		h vertexHeader
	}
	blocks := make([]block, 0, g.vertexCount)
	for v := uint32(0); v < g.vertexCount; v++ {
		h, err := g.readHeader(v)
		if err != nil {
			return pkg.WrapErrorf(err, pkg.ErrStorage, "reading vertex %d", v)
		}
		if h.capacity == 0 {
			continue
		}
		blocks = append(blocks, block{v: v, h: h})
	}
	slices.SortFunc(blocks, func(a, b block) int {
		return int(int64(a.h.first) - int64(b.h.first))
	})

	// blocks only move towards the front and never grow, so copying in slot order is safe.
	cursor := int64(0)
	for _, b := range blocks {
		h := b.h
		newCap := uint32(0)
		if h.count > 0 {
			newCap = util.NextPowerOfTwo(h.count)
		}
		if int64(h.first) != cursor {
			for i := int64(0); i < int64(h.count); i++ {
				neighbor, err := g.arrays.Neighbors.Get(int64(h.first) + i)
				if err != nil {
					return pkg.WrapErrorf(err, pkg.ErrStorage, "compressing arcs of vertex %d", b.v)
				}
				data, err := g.arrays.ArcData.Get(int64(h.first) + i)
				if err != nil {
					return pkg.WrapErrorf(err, pkg.ErrStorage, "compressing arcs of vertex %d", b.v)
				}
				if err := g.arrays.Neighbors.Set(cursor+i, neighbor); err != nil {
					return pkg.WrapErrorf(err, pkg.ErrStorage, "compressing arcs of vertex %d", b.v)
				}
				if err := g.arrays.ArcData.Set(cursor+i, data); err != nil {
					return pkg.WrapErrorf(err, pkg.ErrStorage, "compressing arcs of vertex %d", b.v)
				}
			}
		}
		h.first = uint32(cursor)
		h.capacity = newCap
		if err := g.writeHeader(b.v, h); err != nil {
			return pkg.WrapErrorf(err, pkg.ErrStorage, "writing vertex %d", b.v)
		}
		cursor += int64(newCap)
	}

	if err := g.arrays.Neighbors.Resize(cursor); err != nil {
		return pkg.WrapErrorf(err, pkg.ErrStorage, "shrinking arc arrays")
	}
	if err := g.arrays.ArcData.Resize(cursor); err != nil {
		return pkg.WrapErrorf(err, pkg.ErrStorage, "shrinking arc arrays")
	}
	g.arcSlots = cursor
	return nil
}

// ArcSlots. slots in use by arc blocks, including unused capacity and stale relocated blocks.
func (g *DynamicGraph) ArcSlots() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.arcSlots
}

// Freeze marks preprocessing as finished. any later mutation panics.
func (g *DynamicGraph) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frozen = true
}

func (g *DynamicGraph) IsFrozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frozen
}

// Close releases the backing arrays, their backing store and the shape store.
func (g *DynamicGraph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true

	errs := []error{
		g.arrays.Vertices.Close(),
		g.arrays.Neighbors.Close(),
		g.arrays.ArcData.Close(),
		g.arrays.Coordinates.Close(),
	}
	if g.arrays.Backing != nil {
		errs = append(errs, g.arrays.Backing.Close())
	}
	if g.shapes != nil {
		errs = append(errs, g.shapes.Close())
	}
	return errors.Join(errs...)
}
