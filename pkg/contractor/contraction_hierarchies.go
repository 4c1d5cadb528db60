package contractor

import (
	"fmt"
	"runtime"
	"time"

	"github.com/lintang-b-s/navigatorx-ch/pkg"
	"github.com/lintang-b-s/navigatorx-ch/pkg/concurrent"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/metrics"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"go.uber.org/zap"
)

const progressInterval = 10000

type Metadata struct {
	VertexCount      uint32
	OriginalArcCount int64
	ShortcutsCount   int64
	LazyReinserts    int64
	MeanDegree       float64 // arcs a vertex had when it was contracted, averaged
	Duration         time.Duration
}

type ContractedGraph struct {
	graph           *datastructure.DynamicGraph
	witness         WitnessCalculator
	calculator      VertexWeightCalculator
	levels          []int32
	metadata        Metadata
	logger          *zap.Logger
	metrics         *metrics.ContractionMetrics
	workers         int
	maxSettledNodes int
	contracted      int64
	degreeSum       int64
}

type Option func(*ContractedGraph)

func WithLogger(logger *zap.Logger) Option {
	return func(ch *ContractedGraph) { ch.logger = logger }
}

func WithMetrics(m *metrics.ContractionMetrics) Option {
	return func(ch *ContractedGraph) { ch.metrics = m }
}

// WithWorkers. goroutines used for the initial scoring.
func WithWorkers(workers int) Option {
	return func(ch *ContractedGraph) { ch.workers = workers }
}

// WithMaxSettledNodes caps each witness search, 0 = unlimited. ignored if WithWitness is given.
func WithMaxSettledNodes(n int) Option {
	return func(ch *ContractedGraph) { ch.maxSettledNodes = n }
}

func WithWitness(witness WitnessCalculator) Option {
	return func(ch *ContractedGraph) { ch.witness = witness }
}

func WithCalculator(calculator VertexWeightCalculator) Option {
	return func(ch *ContractedGraph) { ch.calculator = calculator }
}

func NewContractedGraph(graph *datastructure.DynamicGraph, opts ...Option) *ContractedGraph {
	ch := &ContractedGraph{
		graph:   graph,
		logger:  zap.NewNop(),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(ch)
	}
	if ch.witness == nil {
		ch.witness = NewDijkstraWitnessSearch(graph, ch.maxSettledNodes)
	}
	if ch.calculator == nil {
		ch.calculator = NewEdgeDifference(graph, ch.witness)
	}
	return ch
}

/*
Contraction. contracts every vertex of the graph, least important first.

importance is the calculator score, ties broken by vertex id. scores go stale when neighbours are
contracted, so they are updated lazily: the popped vertex is re-scored and pushed back if it is no
longer smaller than the next queue entry.

on success the graph is frozen: it holds the original arcs plus shortcuts, and every vertex keeps
its arcs to the vertices contracted after it. levels[v] is the step at which v was contracted.
*/
func (ch *ContractedGraph) Contraction() error {
	st := time.Now()
	n := ch.graph.VertexCount()

	ch.metadata = Metadata{
		VertexCount:      n,
		OriginalArcCount: ch.graph.ArcCount(),
	}
	ch.contracted, ch.degreeSum = 0, 0
	ch.levels = make([]int32, n)
	for i := range ch.levels {
		ch.levels[i] = pkg.UNCONTRACTED
	}

	ch.logger.Info("starting contraction",
		zap.Uint32("vertices", n), zap.Int64("arcs", ch.metadata.OriginalArcCount))

	pq, err := ch.initialPriorities(n)
	if err != nil {
		return err
	}
	if ch.metrics != nil {
		ch.metrics.RemainingVertices.Set(float64(pq.Size()))
	}

	step := int32(0)
	for pq.Size() > 0 {
		polled, err := pq.ExtractMin()
		if err != nil {
			return pkg.WrapErrorf(err, pkg.ErrInternal, "extracting next vertex")
		}
		v := polled.Item

		score, err := ch.calculator.Calculate(v)
		if err != nil {
			return fmt.Errorf("scoring vertex %d: %w", v, err)
		}
		current := datastructure.NewPriorityQueueNode(float64(score), v)

		if pq.Size() > 0 {
			next, err := pq.GetMin()
			if err != nil {
				return pkg.WrapErrorf(err, pkg.ErrInternal, "peeking next vertex")
			}
			if next.Less(current) {
				pq.Insert(current)
				ch.metadata.LazyReinserts++
				if ch.metrics != nil {
					ch.metrics.LazyReinserts.Inc()
				}
				continue
			}
		}

		if err := ch.contractVertex(v); err != nil {
			return fmt.Errorf("contracting vertex %d: %w", v, err)
		}
		ch.levels[v] = step
		ch.calculator.NotifyContracted(v)
		step++

		if ch.metrics != nil {
			ch.metrics.ContractedVertices.Inc()
			ch.metrics.RemainingVertices.Set(float64(pq.Size()))
		}
		if step%progressInterval == 0 {
			ch.logger.Sugar().Infof("contracting vertex: %d/%d, shortcuts: %d", step, n, ch.metadata.ShortcutsCount)
		}
	}

	ch.graph.Freeze()
	ch.metadata.Duration = time.Since(st)
	if ch.metrics != nil {
		ch.metrics.PreprocessingSeconds.Set(ch.metadata.Duration.Seconds())
	}

	ch.logger.Info("contraction finished",
		zap.Uint32("vertices", n),
		zap.Int64("shortcuts", ch.metadata.ShortcutsCount),
		zap.Int64("lazyReinserts", ch.metadata.LazyReinserts),
		zap.Float64("meanDegree", ch.metadata.MeanDegree),
		zap.Duration("took", ch.metadata.Duration))
	return nil
}

type vertexScore struct {
	v     uint32
	score int
	err   error
}

// initialPriorities scores every vertex concurrently. the graph is read only during this phase.
func (ch *ContractedGraph) initialPriorities(n uint32) (*datastructure.MinHeap[uint32], error) {
	pq := datastructure.NewMinHeapWithCapacity[uint32](int(n))
	if n == 0 {
		return pq, nil
	}

	chunkSize := max(int(n)/(max(ch.workers, 1)*4), 1)
	numJobs := (int(n) + chunkSize - 1) / chunkSize

	workers := concurrent.NewWorkerPool[[]uint32, []vertexScore](ch.workers, numJobs)
	for start := 0; start < int(n); start += chunkSize {
		end := min(start+chunkSize, int(n))
		chunk := make([]uint32, 0, end-start)
		for v := start; v < end; v++ {
			chunk = append(chunk, uint32(v))
		}
		workers.AddJob(chunk)
	}
	workers.Close()
	workers.Start(func(chunk []uint32) []vertexScore {
		scores := make([]vertexScore, 0, len(chunk))
		for _, v := range chunk {
			score, err := ch.calculator.Calculate(v)
			scores = append(scores, vertexScore{v: v, score: score, err: err})
			if err != nil {
				break
			}
		}
		return scores
	})
	workers.Wait()

	var firstErr error
	scored := 0
	for scores := range workers.CollectResults() {
		for _, s := range scores {
			if s.err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("scoring vertex %d: %w", s.v, s.err)
				}
				continue
			}
			pq.Insert(datastructure.NewPriorityQueueNode(float64(s.score), s.v))
			scored++
			if scored%progressInterval == 0 {
				ch.logger.Sugar().Infof("updating priority of vertex: %d...", scored)
			}
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	util.AssertPanic(pq.Size() == int(n), "every vertex must be scored")
	return pq, nil
}

type shortcut struct {
	from, to uint32
	weight   float64
}

/*
contractVertex. adds a shortcut in.Neighbor -> out.Neighbor for every pair without a witness, then
detaches v from the remaining graph. the reverse pair gives the shortcut for the other direction;
when both have the same weight they merge into one bidirectional record.
*/
func (ch *ContractedGraph) contractVertex(v uint32) error {
	shortcuts := make([]shortcut, 0)
	_, err := findShortcuts(ch.graph, ch.witness, v, func(in, out datastructure.Arc, weight float64) error {
		shortcuts = append(shortcuts, shortcut{from: in.Neighbor, to: out.Neighbor, weight: weight})
		return nil
	})
	if err != nil {
		return err
	}

	for _, s := range shortcuts {
		if err := ch.graph.AddEdge(s.from, s.to, datastructure.NewShortcutData(s.weight, v)); err != nil {
			return err
		}
	}

	arcs, err := ch.graph.IsolateVertex(v)
	if err != nil {
		return err
	}

	ch.metadata.ShortcutsCount += int64(len(shortcuts))
	ch.contracted++
	ch.degreeSum += int64(len(arcs))
	ch.metadata.MeanDegree = float64(ch.degreeSum) / float64(ch.contracted)
	if ch.metrics != nil {
		ch.metrics.Shortcuts.Add(float64(len(shortcuts)))
	}
	return nil
}

// Level. contraction step of v, pkg.UNCONTRACTED before Contraction.
func (ch *ContractedGraph) Level(v uint32) int32 {
	util.AssertPanic(int(v) < len(ch.levels), "vertex id out of range")
	return ch.levels[v]
}

func (ch *ContractedGraph) Levels() []int32 {
	levels := make([]int32, len(ch.levels))
	copy(levels, ch.levels)
	return levels
}

func (ch *ContractedGraph) ShortcutCount() int64 {
	return ch.metadata.ShortcutsCount
}

func (ch *ContractedGraph) Metadata() Metadata {
	return ch.metadata
}

func (ch *ContractedGraph) GetGraph() *datastructure.DynamicGraph {
	return ch.graph
}
