// Package api wires the license authority's HTTP surface.
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/glaciersoft/snowgate/internal/api/handlers"
	"github.com/glaciersoft/snowgate/internal/api/middleware"
	"github.com/glaciersoft/snowgate/internal/config"
	"github.com/glaciersoft/snowgate/internal/db"
	"github.com/glaciersoft/snowgate/internal/ledger"
	"github.com/glaciersoft/snowgate/internal/license"
	"github.com/glaciersoft/snowgate/internal/metrics"
)

// Deps carries everything the router needs.
type Deps struct {
	Config  *config.ServerConfig
	DB      *db.DB
	Ledger  *ledger.Ledger
	Codec   *license.Codec
	Signer  *license.Signer
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
	Version string
}

// NewRouter builds the Gin engine with all routes and middleware.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Config.Environment == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))

	licenseHandler := handlers.NewLicenseHandler(deps.Codec, deps.Signer, deps.DB, deps.Ledger, deps.Metrics, deps.Config.ClockSkew, deps.Logger)
	sessionHandler := handlers.NewSessionHandler(deps.DB, deps.Ledger, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Version)

	router.GET("/healthz", healthHandler.Health)
	if deps.Config.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	rateLimiter, err := middleware.NewRateLimiter(deps.Config.RateLimit, deps.Config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("create rate limiter: %w", err)
	}
	v1.Use(rateLimiter)

	v1.POST("/license/validate", licenseHandler.Validate)

	sessions := v1.Group("/sessions")
	sessions.POST("", sessionHandler.Open)
	sessions.POST("/:id/heartbeat", sessionHandler.Heartbeat)
	sessions.DELETE("/:id", sessionHandler.Close)
	sessions.GET("/ws", sessionHandler.Session)

	return router, nil
}
