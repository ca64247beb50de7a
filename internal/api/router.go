package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/backbill/chronicle/internal/dbpool"
	"github.com/backbill/chronicle/internal/middleware"
	"github.com/backbill/chronicle/internal/ws"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log         *logrus.Logger
	Pool        *dbpool.Pool
	Hub         *ws.Hub
	Entities    EntityRepository
	Audit       AuditRepository
	Queue       QueueRepository
	Snapshots   SnapshotRepository
	APIKey      string
	CORSOrigins []string
	Version     string
}

// Router-level limits.
const (
	maxBodySize = 1 << 20 // 1 MB; entity payloads cap at 64 KB
	rateLimit   = 100     // requests per second per IP
	rateBurst   = 200     // token bucket burst size
)

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", middleware.ActorIDHeader, middleware.ActorNameHeader},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, rateLimit, rateBurst).Handler())
	r.Use(middleware.PrometheusMiddleware())

	// Metrics endpoint (unauthenticated, like health).
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Pool, deps.Hub, log, deps.Version)
	entities := NewEntityHandler(deps.Entities, log)
	audit := NewAuditHandler(deps.Audit, log)
	queue := NewQueueHandler(deps.Queue, log)
	snapshots := NewSnapshotHandler(deps.Snapshots, log)

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	// All other API routes require authentication.
	api.Use(middleware.AuthMiddleware(deps.APIKey, log))

	// Entities.
	api.GET("/entities", entities.List)
	api.POST("/entities", entities.Create)
	api.GET("/entities/:id", entities.Get)
	api.PATCH("/entities/:id", entities.Update)
	api.DELETE("/entities/:id", entities.Delete)
	api.POST("/entities/:id/restore", entities.Restore)
	api.GET("/entities/:id/trail", audit.Trail)

	// Audit log.
	api.GET("/audit", audit.Query)

	// Audit queue operations.
	api.GET("/queue/stats", queue.Stats)
	api.GET("/queue/dead", queue.ListDead)
	api.POST("/queue/dead/:id/retry", queue.RetryDead)

	// Configuration snapshots.
	api.GET("/snapshots", snapshots.List)
	api.POST("/snapshots", snapshots.Take)
	api.GET("/snapshots/:id", snapshots.Get)
	api.GET("/snapshots/:id/ancestry", snapshots.Ancestry)
	api.POST("/snapshots/:id/rollback", snapshots.Rollback)

	// WebSocket event feed.
	api.GET("/ws", wsHandler(ctx, log, deps.Hub, deps.CORSOrigins))
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
