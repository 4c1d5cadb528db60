package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/lintang-b-s/navigatorx-ch/pkg"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/engine/routingalgorithm"
	"github.com/lintang-b-s/navigatorx-ch/pkg/hierarchy"
	"github.com/lintang-b-s/navigatorx-ch/pkg/kv"
	"github.com/lintang-b-s/navigatorx-ch/pkg/logger"
	"github.com/lintang-b-s/navigatorx-ch/pkg/snap"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type routeResponse struct {
	From     uint32                     `json:"from"`
	To       uint32                     `json:"to"`
	Distance float64                    `json:"distance"` // minutes
	Path     []uint32                   `json:"path"`
	Geometry []datastructure.Coordinate `json:"geometry,omitempty"`
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "navigatorx-engine",
		Short:         "Answer shortest path queries on a saved contraction hierarchy",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			graphFile, _ := cmd.Flags().GetString("graph")
			shapesDir, _ := cmd.Flags().GetString("shapes")
			// replaced by the snapped vertices when coordinates are given.
			from, _ := cmd.Flags().GetUint32("from")
			to, _ := cmd.Flags().GetUint32("to")
			withGeometry, _ := cmd.Flags().GetBool("geometry")
			level, _ := cmd.Flags().GetString("log-level")

			log, err := logger.New(level)
			if err != nil {
				return err
			}
			defer log.Sync()

			h, shapes, closeShapes, err := loadHierarchy(graphFile, shapesDir, log)
			if err != nil {
				return err
			}
			defer closeShapes()

			if cmd.Flags().Changed("from-lat") || cmd.Flags().Changed("to-lat") {
				from, to, err = snapEndpoints(cmd, h, log)
				if err != nil {
					return err
				}
			}

			rt := routingalgorithm.NewRouteAlgorithm(h, shapes)
			dist, path, err := rt.ShortestPath(from, to)
			if err != nil {
				return err
			}

			resp := routeResponse{From: from, To: to, Distance: dist, Path: path}
			if withGeometry {
				resp.Geometry, err = rt.PathGeometry(path)
				if err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.PersistentFlags().StringP("graph", "g", "navigatorx.ch", "hierarchy file written by navigatorx-preprocessing")
	cmd.PersistentFlags().String("shapes", "", "badger shape store directory, enables stored way geometry")
	cmd.PersistentFlags().String("snap", "rtree", "snapping index: rtree (built in memory) or h3 (needs --h3-index)")
	cmd.PersistentFlags().String("h3-index", "", "h3 vertex index directory written by navigatorx-preprocessing")
	cmd.PersistentFlags().String("log-level", "warn", "debug, info, warn or error")
	cmd.Flags().Uint32("from", 0, "source vertex id")
	cmd.Flags().Uint32("to", 0, "target vertex id")
	cmd.Flags().Float64("from-lat", 0, "source latitude, snapped to the nearest vertex")
	cmd.Flags().Float64("from-lon", 0, "source longitude")
	cmd.Flags().Float64("to-lat", 0, "target latitude, snapped to the nearest vertex")
	cmd.Flags().Float64("to-lon", 0, "target longitude")
	cmd.Flags().Bool("geometry", false, "include the route polyline")

	cmd.AddCommand(newServeCommand())
	return cmd
}

func loadHierarchy(graphFile, shapesDir string, log *zap.Logger) (*hierarchy.Hierarchy, routingalgorithm.ShapeReader, func(), error) {
	h, err := hierarchy.Load(graphFile)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info("hierarchy loaded",
		zap.String("file", graphFile),
		zap.Uint32("vertices", h.VertexCount()),
		zap.Int("shortcuts", h.ShortcutCount()))

	if shapesDir == "" {
		return h, nil, func() {}, nil
	}
	store, err := datastructure.OpenBadgerShapeStore(shapesDir, false)
	if err != nil {
		return nil, nil, nil, err
	}
	return h, store, func() { store.Close() }, nil
}

func newSnapper(flags *pflag.FlagSet, h *hierarchy.Hierarchy, log *zap.Logger) (snap.Snapper, func(), error) {
	index, _ := flags.GetString("snap")
	switch index {
	case "rtree":
		return snap.NewRoadSnapper(h), func() {}, nil
	case "h3":
		dir, _ := flags.GetString("h3-index")
		if dir == "" {
			return nil, nil, pkg.NewErrorf(pkg.ErrBadParamInput, "--snap h3 needs --h3-index")
		}
		db, err := kv.OpenKVDB(dir, false, log)
		if err != nil {
			return nil, nil, err
		}
		return snap.NewH3Snapper(db), func() { db.Close() }, nil
	default:
		return nil, nil, pkg.NewErrorf(pkg.ErrBadParamInput, "unknown snapping index %q", index)
	}
}

func snapEndpoints(cmd *cobra.Command, h *hierarchy.Hierarchy, log *zap.Logger) (uint32, uint32, error) {
	flags := cmd.Flags()
	fromLat, _ := flags.GetFloat64("from-lat")
	fromLon, _ := flags.GetFloat64("from-lon")
	toLat, _ := flags.GetFloat64("to-lat")
	toLon, _ := flags.GetFloat64("to-lon")

	snapper, closeIndex, err := newSnapper(flags, h, log)
	if err != nil {
		return 0, 0, err
	}
	defer closeIndex()

	source, err := snapper.Snap(datastructure.NewCoordinate(fromLat, fromLon))
	if err != nil {
		return 0, 0, err
	}
	target, err := snapper.Snap(datastructure.NewCoordinate(toLat, toLon))
	if err != nil {
		return 0, 0, err
	}
	log.Info("snapped endpoints",
		zap.Uint32("from", source.Vertex), zap.Float64("fromDistance", source.Distance),
		zap.Uint32("to", target.Vertex), zap.Float64("toDistance", target.Distance))
	return source.Vertex, target.Vertex, nil
}
