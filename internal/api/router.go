package api

import (
	"github.com/gin-gonic/gin"

	"github.com/refind-app/refind/internal/api/handler"
	"github.com/refind-app/refind/internal/api/middleware"
	"github.com/refind-app/refind/internal/logger"
	"github.com/refind-app/refind/internal/service"
)

// RouterConfig collects transport-level settings for the HTTP surface.
type RouterConfig struct {
	Mode            string
	AllowedOrigins  []string
	AllowAllOrigins bool
	// StaticDir, when set, serves stored images from /uploads. Used with
	// local storage only; object storage serves its own URLs.
	StaticDir string
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	submissionService *service.SubmissionService,
	matcherService *service.MatcherService,
	log *logger.Logger,
	cfg RouterConfig,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.AllowedOrigins,
		AllowAllOrigins: cfg.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	uploadHandler := handler.NewUploadHandler(submissionService)
	searchHandler := handler.NewSearchHandler(matcherService)
	trackingHandler := handler.NewTrackingHandler(submissionService)

	// Health check
	r.GET("/health", healthHandler.Health)

	// Stored images (local storage only)
	if cfg.StaticDir != "" {
		r.Static("/uploads", cfg.StaticDir)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Reports
		v1.POST("/upload/lost", uploadHandler.ReportLost)
		v1.POST("/upload/found", uploadHandler.ReportFound)
		v1.GET("/track/:token", trackingHandler.Track)

		// Matching
		v1.GET("/search/:token", searchHandler.SearchMatches)
		v1.GET("/matches/recent", searchHandler.RecentMatches)

		// Diagnostics
		v1.GET("/stats", searchHandler.Stats)
		v1.GET("/model", searchHandler.ModelInfo)
	}

	return r
}
