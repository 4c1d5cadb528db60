package pkg

import "math"

const (
	INF_WEIGHT = math.MaxFloat64

	// INVALID_VERTEX_ID marks an arc that is not a shortcut (no via vertex).
	INVALID_VERTEX_ID int32 = -1

	// UNCONTRACTED is the level of a vertex that has not been contracted yet.
	UNCONTRACTED int32 = -1
)
