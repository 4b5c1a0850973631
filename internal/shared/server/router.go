package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"casedocs-backend/internal/documents"
	"casedocs-backend/internal/reconciler"
	"casedocs-backend/internal/shared/config"
	"casedocs-backend/internal/shared/metrics"
	"casedocs-backend/internal/shared/server/middleware"
	"casedocs-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers and services the HTTP surface exposes.
type RouterDeps struct {
	Config     config.Config
	Documents  *documents.Handler
	Reconciler *reconciler.Reconciler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: "DEFAULT",
			GroupFor: func(c *gin.Context) string {
				if c.Request.Method == http.MethodGet {
					return "READ"
				}
				return "DEFAULT"
			},
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: 5, Burst: 20},
				"READ":    {Rate: 50, Burst: 100},
			},
		}),
	)

	r.GET("/healthz", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	if deps.Documents != nil {
		deps.Documents.RegisterRoutes(api)
	}

	if deps.Reconciler != nil {
		admin := api.Group("/admin")
		admin.POST("/sweeps/archive", func(c *gin.Context) {
			report, err := deps.Reconciler.ArchiveOldDocuments(c.Request.Context(), time.Now().UTC())
			if err != nil {
				respond.Error(c, http.StatusInternalServerError, "internal_error", "archive sweep failed", nil)
				return
			}
			respond.OK(c, gin.H{
				"casesScanned": report.CasesScanned,
				"copied":       report.Copied,
				"skipped":      report.Skipped,
			})
		})
		admin.POST("/sweeps/stuck", func(c *gin.Context) {
			reset, err := deps.Reconciler.ResetStuckDocuments(c.Request.Context(), time.Now().UTC())
			if err != nil {
				respond.Error(c, http.StatusInternalServerError, "internal_error", "stuck sweep failed", nil)
				return
			}
			respond.OK(c, gin.H{"reset": reset})
		})
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
