package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/sentinelmesh/console/internal/api/middleware"
	"github.com/sentinelmesh/console/internal/api/routes"
	"github.com/sentinelmesh/console/internal/config"
	"github.com/sentinelmesh/console/internal/logger"
)

// auditRetentionDays bounds how long config audit snapshots are kept.
const auditRetentionDays = 90

// Server wraps the HTTP engine and shared dependencies for easier testing.
type Server struct {
	Engine *gin.Engine
	cfg    config.Config
	deps   *routes.Deps
	cron   *cron.Cron
}

// New wires up the HTTP router and registers versioned routes.
func New(db *gorm.DB, cfg config.Config) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.RequestLogger(), middleware.Recovery(!cfg.IsProduction()))

	deps, err := routes.Register(router, db, cfg)
	if err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	s := &Server{Engine: router, cfg: cfg, deps: deps, cron: cron.New()}
	s.registerMaintenance()
	return s, nil
}

// registerMaintenance schedules nightly housekeeping. The engine still
// re-checks rule expiry at use time, so these jobs only bound store size.
func (s *Server) registerMaintenance() {
	_, err := s.cron.AddFunc("@midnight", func() {
		if n, err := s.deps.Rules.SweepExpired(); err != nil {
			logger.WithFields(map[string]interface{}{"error": err.Error()}).
				Warn("nightly rule sweep failed")
		} else if n > 0 {
			logger.WithFields(map[string]interface{}{"removed": n}).
				Info("nightly rule sweep removed expired rules")
		}

		if n, err := s.deps.Configs.PruneAudits(auditRetentionDays); err != nil {
			logger.WithFields(map[string]interface{}{"error": err.Error()}).
				Warn("audit retention prune failed")
		} else if n > 0 {
			logger.WithFields(map[string]interface{}{"removed": n}).
				Info("pruned old audit records")
		}
	})
	if err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).
			Warn("failed to schedule maintenance job")
	}
}

// Run starts the HTTP server with proper shutdown semantics.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.cfg.HTTPPort),
		Handler: s.Engine,
	}

	s.cron.Start()
	defer s.cron.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
