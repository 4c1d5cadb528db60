package osmparser

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"go.uber.org/zap"

	"github.com/lintang-b-s/navigatorx-ch/pkg"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/geo"
)

type Pass int

const (
	WayPass Pass = iota
	NodePass
)

// ScannerFactory opens a fresh scanner over the input for the given pass.
type ScannerFactory func(ctx context.Context, p Pass) (osm.Scanner, error)

type node struct {
	id    int64
	coord datastructure.Coordinate
}

type wayInfo struct {
	nodeIDs  []int64
	forward  bool
	backward bool
	speed    float64 // km/h
}

type ParseStats struct {
	Ways          int
	Vertices      int
	Arcs          int
	SkippedNodes  int
	SkippedLoops  int
	ShapesWritten int
}

type OsmParser struct {
	logger          *zap.Logger
	wayNodeMap      map[int64]NodeType
	acceptedNodeMap map[int64]datastructure.Coordinate
	barrierNodes    map[int64]struct{}
	nodeIDMap       map[int64]uint32
	ways            []wayInfo
	stats           ParseStats
}

func NewOSMParser(logger *zap.Logger) *OsmParser {
	return &OsmParser{
		logger:          logger,
		wayNodeMap:      make(map[int64]NodeType),
		acceptedNodeMap: make(map[int64]datastructure.Coordinate),
		barrierNodes:    make(map[int64]struct{}),
		nodeIDMap:       make(map[int64]uint32),
	}
}

// PbfScanner reads rs twice, seeking back to the start for every pass.
func PbfScanner(rs io.ReadSeeker) ScannerFactory {
	return func(ctx context.Context, p Pass) (osm.Scanner, error) {
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		scanner := osmpbf.New(ctx, rs, 1)
		scanner.SkipRelations = true
		switch p {
		case WayPass:
			scanner.SkipNodes = true
		case NodePass:
			scanner.SkipWays = true
		}
		return scanner, nil
	}
}

// ParseFile loads a .osm.pbf file into g.
func (p *OsmParser) ParseFile(ctx context.Context, path string, g *datastructure.DynamicGraph) (ParseStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ParseStats{}, pkg.WrapErrorf(err, pkg.ErrBadParamInput, "opening %s", path)
	}
	defer f.Close()
	return p.Parse(ctx, PbfScanner(f), g)
}

/*
Parse builds the road graph in two passes over the input.

the first pass keeps the drivable ways and classifies their nodes (end, between, junction), the second one collects
the coordinates of the nodes the kept ways reference plus barrier nodes. every way is then split at junction and
barrier nodes into arcs weighted by travel time in minutes; the simplified intermediate way nodes of each arc go to
the graph's shape store.
*/
func (p *OsmParser) Parse(ctx context.Context, newScanner ScannerFactory, g *datastructure.DynamicGraph) (ParseStats, error) {
	if err := p.scan(ctx, newScanner, WayPass, p.processWayObject); err != nil {
		return p.stats, err
	}
	p.logger.Info("pass 1 complete", zap.Int("ways", len(p.ways)), zap.Int("referencedNodes", len(p.wayNodeMap)))

	if err := p.scan(ctx, newScanner, NodePass, p.processNodeObject); err != nil {
		return p.stats, err
	}
	p.logger.Info("pass 2 complete", zap.Int("nodes", len(p.acceptedNodeMap)))

	for i, way := range p.ways {
		if err := ctx.Err(); err != nil {
			return p.stats, err
		}
		if (i+1)%progressEvery == 0 {
			p.logger.Sugar().Infof("processing openstreetmap ways: %d...", i+1)
		}
		if err := p.processWay(g, way); err != nil {
			return p.stats, err
		}
	}

	p.stats.Ways = len(p.ways)
	p.stats.Vertices = len(p.nodeIDMap)
	p.logger.Info("road graph loaded",
		zap.Int("vertices", p.stats.Vertices),
		zap.Int("arcs", p.stats.Arcs),
		zap.Int("skippedNodes", p.stats.SkippedNodes),
		zap.Int("skippedLoops", p.stats.SkippedLoops))
	return p.stats, nil
}

func (p *OsmParser) scan(ctx context.Context, newScanner ScannerFactory, ps Pass, handle func(osm.Object)) error {
	scanner, err := newScanner(ctx, ps)
	if err != nil {
		return pkg.WrapErrorf(err, pkg.ErrBadParamInput, "opening osm scanner for pass %d", ps+1)
	}
	defer scanner.Close()

	for scanner.Scan() {
		handle(scanner.Object())
	}
	if err := scanner.Err(); err != nil {
		return pkg.WrapErrorf(err, pkg.ErrBadParamInput, "osm pass %d", ps+1)
	}
	return nil
}

func (p *OsmParser) processWayObject(o osm.Object) {
	way, ok := o.(*osm.Way)
	if !ok || len(way.Nodes) < 2 || !acceptOsmWay(way) {
		return
	}
	forward, backward := directionFlags(way.Tags)
	if !forward && !backward {
		return
	}

	info := wayInfo{
		nodeIDs:  make([]int64, len(way.Nodes)),
		forward:  forward,
		backward: backward,
		speed:    waySpeed(way.Tags),
	}
	for i, wayNode := range way.Nodes {
		id := int64(wayNode.ID)
		info.nodeIDs[i] = id
		if _, ok := p.wayNodeMap[id]; !ok {
			if i == 0 || i == len(way.Nodes)-1 {
				p.wayNodeMap[id] = END_NODE
			} else {
				p.wayNodeMap[id] = BETWEEN_NODE
			}
		} else {
			p.wayNodeMap[id] = JUNCTION_NODE
		}
	}

	if (len(p.ways)+1)%progressEvery == 0 {
		p.logger.Sugar().Infof("reading openstreetmap ways: %d...", len(p.ways)+1)
	}
	p.ways = append(p.ways, info)
}

func (p *OsmParser) processNodeObject(o osm.Object) {
	n, ok := o.(*osm.Node)
	if !ok {
		return
	}
	id := int64(n.ID)
	if _, ok := p.wayNodeMap[id]; !ok {
		return
	}
	p.acceptedNodeMap[id] = datastructure.NewCoordinate(n.Lat, n.Lon)
	if n.Tags.Find("barrier") != "" || n.Tags.Find("ford") != "" {
		p.barrierNodes[id] = struct{}{}
	}
}

func (p *OsmParser) isSplitNode(id int64) bool {
	if p.wayNodeMap[id] == JUNCTION_NODE {
		return true
	}
	_, barrier := p.barrierNodes[id]
	return barrier
}

// processWay splits the way at junction and barrier nodes and adds one arc per segment.
func (p *OsmParser) processWay(g *datastructure.DynamicGraph, way wayInfo) error {
	nodes := make([]node, 0, len(way.nodeIDs))
	for _, id := range way.nodeIDs {
		coord, ok := p.acceptedNodeMap[id]
		if !ok {
			p.stats.SkippedNodes++
			continue
		}
		nodes = append(nodes, node{id: id, coord: coord})
	}
	if len(nodes) < 2 {
		return nil
	}

	segment := []node{nodes[0]}
	for i := 1; i < len(nodes); i++ {
		segment = append(segment, nodes[i])
		if i == len(nodes)-1 || p.isSplitNode(nodes[i].id) {
			if err := p.processSegment(g, segment, way); err != nil {
				return err
			}
			segment = []node{nodes[i]}
		}
	}
	return nil
}

func (p *OsmParser) processSegment(g *datastructure.DynamicGraph, segment []node, way wayInfo) error {
	first, last := segment[0], segment[len(segment)-1]
	if first.id != last.id {
		return p.addEdge(g, segment, way)
	}
	if len(segment) < 3 {
		p.stats.SkippedLoops++
		return nil
	}
	// closed way without junctions: split before the last node so neither arc is a self loop.
	if err := p.addEdge(g, segment[:len(segment)-1], way); err != nil {
		return err
	}
	return p.addEdge(g, segment[len(segment)-2:], way)
}

func (p *OsmParser) vertexID(g *datastructure.DynamicGraph, n node) (uint32, error) {
	if id, ok := p.nodeIDMap[n.id]; ok {
		return id, nil
	}
	id, err := g.AddVertex(n.coord)
	if err != nil {
		return 0, err
	}
	p.nodeIDMap[n.id] = id
	return id, nil
}

func (p *OsmParser) addEdge(g *datastructure.DynamicGraph, segment []node, way wayInfo) error {
	from, to := segment[0], segment[len(segment)-1]
	if from.id == to.id {
		p.stats.SkippedLoops++
		return nil
	}
	tail, err := p.vertexID(g, from)
	if err != nil {
		return err
	}
	head, err := p.vertexID(g, to)
	if err != nil {
		return err
	}

	points := make([]datastructure.Coordinate, len(segment))
	for i, n := range segment {
		points[i] = n.coord
	}
	distanceInMeter := geo.PolylineLength(points)
	etaWeight := distanceInMeter / (way.speed * 1000 / 60) // minutes
	if etaWeight < MIN_WEIGHT {
		etaWeight = MIN_WEIGHT
	}

	// arcs are stored tail->head in way order; a backward only way is the same arc with flipped flags.
	if err := g.AddEdge(tail, head, datastructure.NewArcData(etaWeight, way.forward, way.backward)); err != nil {
		return err
	}
	p.stats.Arcs++

	if shapes := g.Shapes(); shapes != nil && len(points) > 2 {
		simplified := geo.RamesDouglasPeucker(points)
		if inner := simplified[1 : len(simplified)-1]; len(inner) > 0 {
			if err := shapes.Put(tail, head, inner); err != nil {
				return err
			}
			p.stats.ShapesWritten++
		}
	}
	return nil
}

func (p *OsmParser) NodeIDMap() map[int64]uint32 {
	return p.nodeIDMap
}

var skipHighway = map[string]struct{}{
	"footway":      {},
	"construction": {},
	"cycleway":     {},
	"path":         {},
	"pedestrian":   {},
	"busway":       {},
	"steps":        {},
	"bridleway":    {},
	"corridor":     {},
	"platform":     {},
	"proposed":     {},
	"abandoned":    {},
	"bus_guideway": {},
	"raceway":      {},
	"elevator":     {},
	"track":        {},
}

func acceptOsmWay(way *osm.Way) bool {
	tags := way.Tags
	highway := tags.Find("highway")
	if highway == "" {
		return false
	}
	if _, skip := skipHighway[highway]; skip {
		return false
	}
	if tags.Find("area") == "yes" {
		return false
	}
	if isRestricted(tags.Find("access")) || isRestricted(tags.Find("motor_vehicle")) {
		return false
	}
	return true
}

func isRestricted(value string) bool {
	switch value {
	case "no", "restricted", "military", "emergency", "private", "permit":
		return true
	}
	return false
}

// directionFlags returns which way along the node order vehicles may travel.
func directionFlags(tags osm.Tags) (forward, backward bool) {
	forward, backward = true, true

	highway := tags.Find("highway")
	junction := tags.Find("junction")
	if highway == "motorway" || highway == "motorway_link" || junction == "roundabout" || junction == "circular" {
		backward = false
	}

	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward, backward = true, false
	case "-1", "reverse":
		forward, backward = false, true
	case "no":
		forward, backward = true, true
	case "reversible", "alternating":
		return false, false
	}

	if isRestricted(tags.Find("vehicle:forward")) || isRestricted(tags.Find("motor_vehicle:forward")) {
		forward = false
	}
	if isRestricted(tags.Find("vehicle:backward")) || isRestricted(tags.Find("motor_vehicle:backward")) {
		backward = false
	}
	return forward, backward
}

// waySpeed in km/h from maxspeed, falling back to the road class.
func waySpeed(tags osm.Tags) float64 {
	if speed, ok := parseMaxSpeed(tags.Find("maxspeed")); ok {
		return speed
	}
	if speed := RoadTypeMaxSpeed(tags.Find("highway")); speed > 0 {
		return speed
	}
	return DEFAULT_SPEED
}

func parseMaxSpeed(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	factor := 1.0
	switch {
	case strings.HasSuffix(value, "mph"):
		factor = 1.60934
		value = strings.TrimSuffix(value, "mph")
	case strings.HasSuffix(value, "km/h"):
		value = strings.TrimSuffix(value, "km/h")
	case strings.HasSuffix(value, "knots"):
		factor = 1.852
		value = strings.TrimSuffix(value, "knots")
	}
	speed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || speed <= 0 {
		return 0, false
	}
	return speed * factor, true
}

func RoadTypeMaxSpeed(roadType string) float64 {
	switch roadType {
	case "motorway":
		return 100
	case "trunk":
		return 70
	case "primary":
		return 65
	case "secondary":
		return 60
	case "tertiary":
		return 50
	case "unclassified":
		return 30
	case "residential":
		return 30
	case "service":
		return 20
	case "motorway_link":
		return 70
	case "trunk_link":
		return 65
	case "primary_link":
		return 60
	case "secondary_link":
		return 50
	case "tertiary_link":
		return 40
	case "living_street":
		return 10
	case "road":
		return 20
	default:
		return 40
	}
}

func (s ParseStats) String() string {
	return fmt.Sprintf("ways=%d vertices=%d arcs=%d skippedNodes=%d skippedLoops=%d shapes=%d",
		s.Ways, s.Vertices, s.Arcs, s.SkippedNodes, s.SkippedLoops, s.ShapesWritten)
}
