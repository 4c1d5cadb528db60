package osmparser

type NodeType uint8

const (
	END_NODE NodeType = iota + 1
	BETWEEN_NODE
	JUNCTION_NODE
)

const (
	DEFAULT_SPEED = 35.0 // km/h, when neither maxspeed nor the road class gives one
	MIN_WEIGHT    = 1e-3 // minutes, keeps coincident nodes from producing zero weight arcs

	progressEvery = 50000
)
