// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/safety-stock/internal/api/handlers"
	"github.com/andresuchdata/safety-stock/internal/api/middleware"
	"github.com/andresuchdata/safety-stock/internal/service"
)

type Services struct {
	Calculation *service.CalculationService
}

// RouterConfig controls the HTTP surface.
type RouterConfig struct {
	AllowedOrigins []string
	MaxUploadMB    int64
}

func NewRouter(services *Services, cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	// MaxMultipartMemory only decides what spills to temp files; the size
	// limit itself is enforced by the upload handler.
	var maxUploadBytes int64
	if cfg.MaxUploadMB > 0 {
		maxUploadBytes = cfg.MaxUploadMB << 20
		router.MaxMultipartMemory = maxUploadBytes
	}

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(cfg.AllowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil && services.Calculation != nil {
		jobHandler := handlers.NewJobHandler(services.Calculation, maxUploadBytes)
		jobGroup := apiGroup.Group("/jobs")
		{
			jobGroup.POST("", jobHandler.CreateJob)
			jobGroup.GET("/:id", jobHandler.GetJob)
			jobGroup.DELETE("/:id", jobHandler.DeleteJob)
			jobGroup.POST("/:id/calculate", jobHandler.StartJob)
			jobGroup.GET("/:id/download", jobHandler.Download)

			resultsGroup := jobGroup.Group("/:id/results")
			{
				resultsGroup.GET("/history", jobHandler.GetHistoryResults)
				resultsGroup.GET("/forecast", jobHandler.GetForecastResults)
			}
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
