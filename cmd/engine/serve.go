package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lintang-b-s/navigatorx-ch/pkg/engine/routingalgorithm"
	"github.com/lintang-b-s/navigatorx-ch/pkg/logger"
	"github.com/lintang-b-s/navigatorx-ch/pkg/server/rest"
	"github.com/lintang-b-s/navigatorx-ch/pkg/server/rest/service"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve shortest path queries over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			graphFile, _ := flags.GetString("graph")
			shapesDir, _ := flags.GetString("shapes")
			level, _ := flags.GetString("log-level")
			listenAddr, _ := flags.GetString("listenaddr")
			workers, _ := flags.GetInt("workers")

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

			snapper, closeIndex, err := newSnapper(flags, h, log)
			if err != nil {
				return err
			}
			defer closeIndex()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			m := rest.NewMetrics(reg)

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(middleware.Recoverer)
			r.Use(rest.PromeHttpMiddleware(m))
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   []string{"https://*", "http://*"},
				AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
				ExposedHeaders:   []string{"Link"},
				AllowCredentials: false,
				MaxAge:           300,
			}))
			r.Mount("/debug", middleware.Profiler())
			r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

			routing := routingalgorithm.NewRouteAlgorithm(h, shapes)
			navigatorSvc := service.NewNavigationService(routing, snapper, workers)
			rest.NavigatorRouter(r, navigatorSvc, log)

			srv := &http.Server{Addr: listenAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info("server started", zap.String("addr", listenAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("listenaddr", ":5000", "server listen address")
	cmd.Flags().Int("workers", 4, "workers answering many-to-many queries")
	return cmd
}
