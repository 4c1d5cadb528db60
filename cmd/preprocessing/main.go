package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lintang-b-s/navigatorx-ch/pkg"
	"github.com/lintang-b-s/navigatorx-ch/pkg/config"
	"github.com/lintang-b-s/navigatorx-ch/pkg/contractor"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/hierarchy"
	"github.com/lintang-b-s/navigatorx-ch/pkg/kv"
	"github.com/lintang-b-s/navigatorx-ch/pkg/logger"
	"github.com/lintang-b-s/navigatorx-ch/pkg/metrics"
	"github.com/lintang-b-s/navigatorx-ch/pkg/osmparser"
	"github.com/lintang-b-s/navigatorx-ch/pkg/storage"
	"github.com/lintang-b-s/navigatorx-ch/pkg/storage/buffer"
	"github.com/lintang-b-s/navigatorx-ch/pkg/storage/disk"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "navigatorx-preprocessing",
		Short:         "Build a contraction hierarchy from an OpenStreetMap extract",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, &cfg); err != nil {
				return err
			}

			mapFile, _ := cmd.Flags().GetString("map")
			out, _ := cmd.Flags().GetString("out")
			cpuprofile, _ := cmd.Flags().GetString("cpuprofile")
			h3Index, _ := cmd.Flags().GetString("h3-index")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, mapFile, out, cpuprofile, h3Index)
		},
	}

	cmd.Flags().StringP("config", "c", "", "TOML config file")
	cmd.Flags().StringP("map", "f", "solo_jogja.osm.pbf", "openstreetmap .osm.pbf file to build the road network from")
	cmd.Flags().StringP("out", "o", "navigatorx.ch", "output hierarchy file")
	cmd.Flags().String("backend", "", "graph store backing: memory, pebble or badger")
	cmd.Flags().String("dir", "", "directory of the paged graph store")
	cmd.Flags().Int("workers", 0, "workers computing the initial priorities")
	cmd.Flags().Int("max-settled", 0, "witness search settle cap, 0 is unlimited")
	cmd.Flags().String("log-level", "", "debug, info, warn or error")
	cmd.Flags().String("metrics-addr", "", "serve /metrics on this address while preprocessing")
	cmd.Flags().String("h3-index", "", "also write an h3 vertex index for coordinate snapping to this directory")
	cmd.Flags().String("cpuprofile", "", "write cpu profile to file")
	return cmd
}

// applyFlags overrides config values with the flags the user actually set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Storage.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("dir") {
		cfg.Storage.Dir, _ = flags.GetString("dir")
	}
	if flags.Changed("workers") {
		cfg.Contraction.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("max-settled") {
		cfg.Contraction.MaxSettledNodes, _ = flags.GetInt("max-settled")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.ListenAddr, _ = flags.GetString("metrics-addr")
	}
	return cfg.Validate()
}

func run(ctx context.Context, cfg config.Config, mapFile, out, cpuprofile, h3Index string) (err error) {
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cpuprofile != "" {
		// https://go.dev/blog/pprof
		f, err := os.Create(cpuprofile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.NewContractionMetrics(reg)
	if cfg.Metrics.ListenAddr != "" {
		srv := serveMetrics(cfg.Metrics.ListenAddr, reg, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	g, pool, err := openGraph(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := g.Close(); cerr != nil && err == nil {
			err = pkg.WrapErrorf(cerr, pkg.ErrStorage, "closing graph store")
		}
	}()

	log.Info("reading osm file", zap.String("file", mapFile), zap.String("backend", cfg.Storage.Backend))
	stats, err := osmparser.NewOSMParser(log).ParseFile(ctx, mapFile, g)
	if err != nil {
		return err
	}
	log.Info("osm file loaded", zap.Stringer("stats", stats))

	if err := reportComponents(g, log); err != nil {
		return err
	}

	ch := contractor.NewContractedGraph(g,
		contractor.WithLogger(log),
		contractor.WithMetrics(m),
		contractor.WithWorkers(cfg.Contraction.Workers),
		contractor.WithMaxSettledNodes(cfg.Contraction.MaxSettledNodes),
	)
	if err := ch.Contraction(); err != nil {
		return err
	}
	if pool != nil {
		m.BufferPoolHitRatio.Set(pool.HitRatio())
	}

	h, err := hierarchy.Export(g, ch.Levels())
	if err != nil {
		return err
	}
	if err := h.Save(out); err != nil {
		return err
	}

	if h3Index != "" {
		if err := buildH3Index(ctx, h3Index, h, log); err != nil {
			return err
		}
	}

	meta := ch.Metadata()
	log.Info("contraction hierarchy saved",
		zap.String("file", out),
		zap.Uint32("vertices", meta.VertexCount),
		zap.Int64("shortcuts", meta.ShortcutsCount),
		zap.Float64("meanDegree", meta.MeanDegree),
		zap.Duration("duration", meta.Duration))
	return nil
}

// openGraph builds the graph store the config asks for. pool is nil for the memory backing.
func openGraph(cfg config.Config) (*datastructure.DynamicGraph, *buffer.BufferPoolManager, error) {
	est := cfg.Contraction.EstimatedVertices
	if cfg.Storage.Backend == config.BACKEND_MEMORY {
		g, err := datastructure.NewDynamicGraph(est, datastructure.NewMemoryGraphArrays(est), datastructure.NewMemoryShapeStore())
		return g, nil, err
	}

	dm, err := disk.Open(cfg.Storage.Backend, cfg.Storage.Dir, cfg.Storage.PageSize, cfg.Storage.Compress)
	if err != nil {
		return nil, nil, pkg.WrapErrorf(err, pkg.ErrStorage, "opening %s page store", cfg.Storage.Backend)
	}
	pool, err := buffer.NewBufferPoolManager(dm, cfg.Storage.BufferPoolPages)
	if err != nil {
		dm.Close()
		return nil, nil, pkg.WrapErrorf(err, pkg.ErrStorage, "creating buffer pool")
	}
	arrays, err := datastructure.NewPagedGraphArrays(pool)
	if err != nil {
		pool.Close()
		return nil, nil, pkg.WrapErrorf(err, pkg.ErrStorage, "creating paged arrays")
	}
	shapes, err := datastructure.OpenBadgerShapeStore(filepath.Join(cfg.Storage.Dir, storage.SHAPES_DIR), false)
	if err != nil {
		pool.Close()
		return nil, nil, pkg.WrapErrorf(err, pkg.ErrStorage, "opening shape store")
	}
	g, err := datastructure.NewDynamicGraph(est, arrays, shapes)
	if err != nil {
		return nil, nil, errors.Join(err, pool.Close(), shapes.Close())
	}
	return g, pool, nil
}

func reportComponents(g *datastructure.DynamicGraph, log *zap.Logger) error {
	scc, err := contractor.KosarajuSCC(g)
	if err != nil {
		return err
	}
	sizes := make([]int, len(scc.Components))
	for i, c := range scc.Components {
		sizes[i] = len(c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))
	largest := 0
	if len(sizes) > 0 {
		largest = sizes[0]
	}
	log.Info("strongly connected components",
		zap.Int("components", len(scc.Components)),
		zap.Int("largest", largest),
		zap.Uint32("vertices", g.VertexCount()))
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func buildH3Index(ctx context.Context, dir string, h *hierarchy.Hierarchy, log *zap.Logger) error {
	db, err := kv.OpenKVDB(dir, false, log)
	if err != nil {
		return err
	}
	if err := db.BuildH3IndexedVertices(ctx, h); err != nil {
		db.Close()
		return err
	}
	return db.Close()
}
