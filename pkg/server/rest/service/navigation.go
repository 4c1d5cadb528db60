package service

import (
	"context"
	"sort"

	"github.com/lintang-b-s/navigatorx-ch/pkg"
	"github.com/lintang-b-s/navigatorx-ch/pkg/concurrent"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/geo"
	"github.com/lintang-b-s/navigatorx-ch/pkg/snap"
)

type RoutingAlgorithm interface {
	ShortestPath(from, to uint32) (float64, []uint32, error)
	PathGeometry(path []uint32) ([]datastructure.Coordinate, error)
}

type Snapper interface {
	Snap(c datastructure.Coordinate) (snap.SnapResult, error)
}

type NavigationService struct {
	routing RoutingAlgorithm
	snapper Snapper
	workers int
}

func NewNavigationService(routing RoutingAlgorithm, snapper Snapper, workers int) *NavigationService {
	return &NavigationService{routing: routing, snapper: snapper, workers: max(workers, 1)}
}

type ShortestPathResult struct {
	Polyline string
	Route    []datastructure.Coordinate
	Path     []uint32
	ETA      float64 // minutes
	Dist     float64 // meters
}

func (uc *NavigationService) SnapLocToStreetNode(lat, lon float64) (uint32, error) {
	res, err := uc.snapper.Snap(datastructure.NewCoordinate(lat, lon))
	if err != nil {
		return 0, pkg.WrapErrorf(err, pkg.ErrNotFound, "the location you entered is not covered by the map")
	}
	return res.Vertex, nil
}

func (uc *NavigationService) ShortestPathETA(ctx context.Context, srcLat, srcLon, dstLat, dstLon float64) (ShortestPathResult, error) {
	from, err := uc.SnapLocToStreetNode(srcLat, srcLon)
	if err != nil {
		return ShortestPathResult{}, err
	}
	to, err := uc.SnapLocToStreetNode(dstLat, dstLon)
	if err != nil {
		return ShortestPathResult{}, err
	}
	return uc.shortestPath(ctx, from, to)
}

func (uc *NavigationService) shortestPath(ctx context.Context, from, to uint32) (ShortestPathResult, error) {
	if err := ctx.Err(); err != nil {
		return ShortestPathResult{}, err
	}
	eta, path, err := uc.routing.ShortestPath(from, to)
	if err != nil {
		return ShortestPathResult{}, err
	}
	route, err := uc.routing.PathGeometry(path)
	if err != nil {
		return ShortestPathResult{}, pkg.WrapErrorf(err, pkg.ErrInternal, "building route geometry")
	}
	return ShortestPathResult{
		Polyline: datastructure.CreatePolyline(route),
		Route:    route,
		Path:     path,
		ETA:      eta,
		Dist:     geo.PolylineLength(route),
	}, nil
}

type TargetResult struct {
	TargetCoord datastructure.Coordinate
	Found       bool
	ShortestPathResult
}

type manyToManyJob struct {
	source, target int
	result         ShortestPathResult
	err            error
}

/*
ManyToManyQuery answers every source x target pair on a worker pool. pairs without a path are reported with
Found=false, any other failure aborts the whole query.
*/
func (uc *NavigationService) ManyToManyQuery(ctx context.Context, sources, targets []datastructure.Coordinate) (map[datastructure.Coordinate][]TargetResult, error) {
	sourceIDs := make([]uint32, len(sources))
	for i, c := range sources {
		id, err := uc.SnapLocToStreetNode(c.Lat, c.Lon)
		if err != nil {
			return nil, err
		}
		sourceIDs[i] = id
	}
	targetIDs := make([]uint32, len(targets))
	for i, c := range targets {
		id, err := uc.SnapLocToStreetNode(c.Lat, c.Lon)
		if err != nil {
			return nil, err
		}
		targetIDs[i] = id
	}

	numJobs := len(sources) * len(targets)
	workers := concurrent.NewWorkerPool[[]uint32, manyToManyJob](uc.workers, numJobs)
	for i := range sources {
		for j := range targets {
			workers.AddJob([]uint32{uint32(i), uint32(j)})
		}
	}
	workers.Close()
	workers.Start(func(pair []uint32) manyToManyJob {
		i, j := int(pair[0]), int(pair[1])
		res, err := uc.shortestPath(ctx, sourceIDs[i], targetIDs[j])
		return manyToManyJob{source: i, target: j, result: res, err: err}
	})
	workers.Wait()

	jobs := make([]manyToManyJob, 0, numJobs)
	for job := range workers.CollectResults() {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].source != jobs[b].source {
			return jobs[a].source < jobs[b].source
		}
		return jobs[a].target < jobs[b].target
	})

	manyToManyRes := make(map[datastructure.Coordinate][]TargetResult, len(sources))
	for _, job := range jobs {
		found := true
		if job.err != nil {
			if pkg.CodeOf(job.err) != pkg.ErrNotFound {
				return nil, job.err
			}
			found = false
		}
		src := sources[job.source]
		manyToManyRes[src] = append(manyToManyRes[src], TargetResult{
			TargetCoord:        targets[job.target],
			Found:              found,
			ShortestPathResult: job.result,
		})
	}
	return manyToManyRes, nil
}
