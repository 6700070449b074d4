package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/limaJavier/timetabler/internal/cache"
	"github.com/limaJavier/timetabler/internal/config"
	"github.com/limaJavier/timetabler/internal/metrics"
	"github.com/limaJavier/timetabler/internal/server"
	"github.com/limaJavier/timetabler/internal/service"
	"github.com/limaJavier/timetabler/internal/store"
	"github.com/limaJavier/timetabler/pkg/model"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				a.cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default from config)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	if a.cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	var (
		recorder  *metrics.Metrics
		observer  model.SearchObserver
		runs      service.RunRepository
		readiness []server.ReadinessCheck
	)
	if a.cfg.Metrics.Enabled {
		recorder = metrics.New()
		observer = recorder
	}

	if a.cfg.Store.Enabled {
		db, err := store.Open(ctx, a.cfg.Store)
		if err != nil {
			return fmt.Errorf("open run store: %w", err)
		}
		defer db.Close()
		runs = store.NewRunRepository(db)
		readiness = append(readiness, db.PingContext)
		a.logger.Info("run store ready", zap.String("driver", db.DriverName()))
	}

	var timetableCache *cache.TimetableCache
	if a.cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, a.cfg.Cache)
		if err != nil {
			a.logger.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			repo := cache.NewRedisRepository(client, a.logger)
			defer repo.Close()
			timetableCache = cache.NewTimetableCache(repo, recorder, a.cfg.Cache.TTL, a.logger)
			readiness = append(readiness, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		}
	}

	svc, err := service.NewTimetableService(a.cfg.Engine, timetableCache, runs, observer, a.logger)
	if err != nil {
		return err
	}

	router := server.NewRouter(server.RouterDeps{
		Config:    a.cfg,
		Logger:    a.logger,
		Metrics:   recorder,
		Handler:   server.NewTimetableHandler(svc, validator.New()),
		Readiness: readiness,
	})
	return server.Serve(ctx, fmt.Sprintf(":%d", a.cfg.Port), router, a.logger)
}
