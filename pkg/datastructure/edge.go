package datastructure

import "github.com/lintang-b-s/navigatorx-ch/pkg"

// ArcData. payload of one adjacency record. Forward/Backward are relative to the vertex whose
// adjacency holds the record: Forward means v->neighbor is traversable, Backward neighbor->v.
type ArcData struct {
	Weight   float64
	Forward  bool
	Backward bool
	Via      int32 // contracted vertex a shortcut bypasses, pkg.INVALID_VERTEX_ID for original arcs
}

func NewArcData(weight float64, forward, backward bool) ArcData {
	return ArcData{
		Weight:   weight,
		Forward:  forward,
		Backward: backward,
		Via:      pkg.INVALID_VERTEX_ID,
	}
}

func NewShortcutData(weight float64, via uint32) ArcData {
	return ArcData{
		Weight:  weight,
		Forward: true,
		Via:     int32(via),
	}
}

// Reverse. the same record seen from the other endpoint.
func (d ArcData) Reverse() ArcData {
	d.Forward, d.Backward = d.Backward, d.Forward
	return d
}

func (d ArcData) IsShortcut() bool {
	return d.Via != pkg.INVALID_VERTEX_ID
}

type Arc struct {
	Neighbor uint32
	Data     ArcData
}

func NewArc(neighbor uint32, data ArcData) Arc {
	return Arc{Neighbor: neighbor, Data: data}
}

// mergeArcData. merge a new record for some (tail, head) pair into the records already stored
// for that pair. for each direction the cheaper record wins (existing records win ties).
// equal weight and via in both directions collapse into one bidirectional record.
func mergeArcData(existing []ArcData, incoming ArcData) []ArcData {
	var (
		fwd, bwd       ArcData
		hasFwd, hasBwd bool
	)

	consider := func(d ArcData) {
		if d.Forward && (!hasFwd || d.Weight < fwd.Weight) {
			fwd, hasFwd = d, true
		}
		if d.Backward && (!hasBwd || d.Weight < bwd.Weight) {
			bwd, hasBwd = d, true
		}
	}
	for _, d := range existing {
		consider(d)
	}
	consider(incoming)

	switch {
	case hasFwd && hasBwd && fwd.Weight == bwd.Weight && fwd.Via == bwd.Via:
		return []ArcData{{Weight: fwd.Weight, Forward: true, Backward: true, Via: fwd.Via}}
	case hasFwd && hasBwd:
		return []ArcData{
			{Weight: fwd.Weight, Forward: true, Via: fwd.Via},
			{Weight: bwd.Weight, Backward: true, Via: bwd.Via},
		}
	case hasFwd:
		return []ArcData{{Weight: fwd.Weight, Forward: true, Via: fwd.Via}}
	default:
		return []ArcData{{Weight: bwd.Weight, Backward: true, Via: bwd.Via}}
	}
}
