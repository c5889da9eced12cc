package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/sentinelmesh/console/internal/api/handlers"
	"github.com/sentinelmesh/console/internal/api/middleware"
	"github.com/sentinelmesh/console/internal/config"
	"github.com/sentinelmesh/console/internal/geo"
	"github.com/sentinelmesh/console/internal/logger"
	"github.com/sentinelmesh/console/internal/metrics"
	"github.com/sentinelmesh/console/internal/models"
	"github.com/sentinelmesh/console/internal/services"
	"github.com/sentinelmesh/console/internal/warden"
)

// Deps bundles what Register wires up, so the server and the maintenance jobs
// can share the same service instances.
type Deps struct {
	Engine  *warden.Warden
	Rules   *services.AccessRuleService
	Configs *services.AccessConfigService
}

// Register wires up API routes and performs automatic migrations.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config) (*Deps, error) {
	if err := db.AutoMigrate(
		&models.AccessConfig{},
		&models.AccessRule{},
		&models.AccessLogEntry{},
		&models.AccessAudit{},
		&models.User{},
		&models.NotificationProvider{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	resolver := loadGeoResolver(cfg)

	configService := services.NewAccessConfigService(db)
	ruleService := services.NewAccessRuleService(db)
	logService := services.NewAccessLogService(db)
	notificationService := services.NewNotificationService(db)
	authService := services.NewAuthService(db, cfg)

	engine := warden.New(configService, ruleService, logService, notificationService, resolver)

	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.GET("/api/v1/health", handlers.HealthHandler)

	api := router.Group("/api/v1")

	// Every API request runs the access engine's decision pipeline.
	api.Use(engine.Middleware())

	authHandler := handlers.NewAuthHandler(authService, engine, cfg.IsProduction())
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/register", authHandler.Register)

	protected := api.Group("/")
	protected.Use(middleware.Auth(authService))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)

		configHandler := handlers.NewAccessConfigHandler(configService, notificationService)
		protected.GET("/access/config", configHandler.Get)
		protected.PUT("/access/config", configHandler.Update)
		protected.GET("/access/audits", configHandler.ListAudits)

		ruleHandler := handlers.NewAccessRuleHandler(ruleService, engine)
		protected.GET("/access/rules", ruleHandler.List)
		protected.POST("/access/rules", ruleHandler.Create)
		protected.DELETE("/access/rules/:id", ruleHandler.Delete)
		protected.GET("/access/jail", ruleHandler.ListJailed)
		protected.POST("/access/jail/:id/release", ruleHandler.Release)
		protected.POST("/access/test", ruleHandler.Test)

		logHandler := handlers.NewAccessLogHandler(logService)
		protected.GET("/access/logs", logHandler.List)

		systemHandler := handlers.NewSystemHandler(engine)
		protected.GET("/system/my-ip", systemHandler.MyIP)
		protected.GET("/system/geo/:ip", systemHandler.ResolveCountry)

		providerHandler := handlers.NewNotificationProviderHandler(notificationService)
		protected.GET("/notification-providers", providerHandler.List)
		protected.POST("/notification-providers", providerHandler.Save)
		protected.DELETE("/notification-providers/:id", providerHandler.Delete)
	}

	return &Deps{Engine: engine, Rules: ruleService, Configs: configService}, nil
}

func loadGeoResolver(cfg config.Config) geo.Resolver {
	if cfg.GeoTablePath == "" {
		return geo.Disabled{}
	}
	resolver, err := geo.LoadTable(cfg.GeoTablePath)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"path":  cfg.GeoTablePath,
			"error": err.Error(),
		}).Warn("failed to load geo table, geo enforcement disabled")
		return geo.Disabled{}
	}
	return resolver
}
