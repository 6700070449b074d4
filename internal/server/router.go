package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/limaJavier/timetabler/internal/config"
	"github.com/limaJavier/timetabler/internal/logger"
	"github.com/limaJavier/timetabler/internal/metrics"
	"github.com/limaJavier/timetabler/internal/middleware/requestid"
)

const shutdownTimeout = 10 * time.Second

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

type RouterDeps struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Handler   *TimetableHandler
	Readiness []ReadinessCheck
}

// NewRouter builds the gin engine with every middleware and route
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		for _, check := range deps.Readiness {
			if err := check(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Legacy single-endpoint path
	r.POST("/generate-timetable", deps.Handler.Generate)

	api := r.Group(deps.Config.APIPrefix)
	timetables := api.Group("/timetables")
	timetables.POST("", deps.Handler.Generate)
	timetables.GET("", deps.Handler.List)
	timetables.GET("/:id", deps.Handler.Get)
	timetables.GET("/:id/export", deps.Handler.Export)

	return r
}

// Serve listens on addr until ctx is cancelled, then drains in-flight requests
func Serve(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("server stopping", zap.String("addr", addr))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
