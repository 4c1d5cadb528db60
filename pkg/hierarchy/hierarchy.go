package hierarchy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DataDog/zstd"
	"github.com/kelindar/binary"
	"github.com/lintang-b-s/navigatorx-ch/pkg"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
)

const formatVersion uint32 = 1

var ErrVersionMismatch = errors.New("hierarchy file version mismatch")

// Arc. an upward arc of the hierarchy, flags relative to the vertex that owns it.
type Arc struct {
	Head     uint32
	Weight   float64
	Forward  bool
	Backward bool
	Via      int32
}

func (a Arc) IsShortcut() bool {
	return a.Via != pkg.INVALID_VERTEX_ID
}

/*
Hierarchy. the result of contraction in a compact, read only form.

the arcs of vertex v are Arcs[FirstArc[v]:FirstArc[v+1]], all pointing at vertices with a higher
level than v.
*/
type Hierarchy struct {
	Version     uint32
	Levels      []int32
	FirstArc    []uint32
	Arcs        []Arc
	Coordinates []datastructure.Coordinate
}

// Export copies the upward arcs of every vertex out of the contracted graph.
func Export(g *datastructure.DynamicGraph, levels []int32) (*Hierarchy, error) {
	n := g.VertexCount()
	util.AssertPanic(len(levels) == int(n), "one level per vertex required")

	h := &Hierarchy{
		Version:     formatVersion,
		Levels:      make([]int32, n),
		FirstArc:    make([]uint32, n+1),
		Arcs:        make([]Arc, 0, g.ArcCount()),
		Coordinates: make([]datastructure.Coordinate, n),
	}
	copy(h.Levels, levels)

	for v := uint32(0); v < n; v++ {
		util.AssertPanic(levels[v] != pkg.UNCONTRACTED, "vertex not contracted")

		h.FirstArc[v] = uint32(len(h.Arcs))
		arcs, err := g.GetArcs(v)
		if err != nil {
			return nil, err
		}
		for _, arc := range arcs {
			util.AssertPanic(levels[arc.Neighbor] > levels[v], "hierarchy arc must point upward")
			h.Arcs = append(h.Arcs, Arc{
				Head:     arc.Neighbor,
				Weight:   arc.Data.Weight,
				Forward:  arc.Data.Forward,
				Backward: arc.Data.Backward,
				Via:      arc.Data.Via,
			})
		}

		coord, err := g.GetCoordinate(v)
		if err != nil {
			return nil, err
		}
		h.Coordinates[v] = coord
	}
	h.FirstArc[n] = uint32(len(h.Arcs))
	return h, nil
}

func (h *Hierarchy) VertexCount() uint32 {
	return uint32(len(h.Levels))
}

func (h *Hierarchy) Level(v uint32) int32 {
	return h.Levels[v]
}

func (h *Hierarchy) GetArcs(v uint32) []Arc {
	return h.Arcs[h.FirstArc[v]:h.FirstArc[v+1]]
}

func (h *Hierarchy) GetCoordinate(v uint32) datastructure.Coordinate {
	return h.Coordinates[v]
}

func (h *Hierarchy) ShortcutCount() int {
	count := 0
	for _, arc := range h.Arcs {
		if arc.IsShortcut() {
			count++
		}
	}
	return count
}

// Save writes the hierarchy to path, atomically replacing any previous file.
func (h *Hierarchy) Save(path string) error {
	encoded, err := binary.Marshal(h)
	if err != nil {
		return pkg.WrapErrorf(err, pkg.ErrInternal, "encoding hierarchy")
	}
	compressed, err := zstd.Compress(nil, encoded)
	if err != nil {
		return pkg.WrapErrorf(err, pkg.ErrInternal, "compressing hierarchy")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return pkg.WrapErrorf(err, pkg.ErrStorage, "creating %s", dir)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return pkg.WrapErrorf(err, pkg.ErrStorage, "writing %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return pkg.WrapErrorf(err, pkg.ErrStorage, "renaming %s", tmp)
	}
	return nil
}

func Load(path string) (*Hierarchy, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, pkg.WrapErrorf(err, pkg.ErrStorage, "reading %s", path)
	}
	encoded, err := zstd.Decompress(nil, compressed)
	if err != nil {
		return nil, pkg.WrapErrorf(err, pkg.ErrStorage, "decompressing %s", path)
	}

	var h Hierarchy
	if err := binary.Unmarshal(encoded, &h); err != nil {
		return nil, pkg.WrapErrorf(err, pkg.ErrStorage, "decoding %s", path)
	}
	if h.Version != formatVersion {
		return nil, pkg.WrapErrorf(fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, h.Version, formatVersion),
			pkg.ErrStorage, "loading %s", path)
	}
	if len(h.FirstArc) != len(h.Levels)+1 {
		return nil, pkg.NewErrorf(pkg.ErrStorage, "corrupt hierarchy %s: %d offsets for %d vertices",
			path, len(h.FirstArc), len(h.Levels))
	}
	return &h, nil
}
