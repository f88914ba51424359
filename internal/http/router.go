package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.ngs.io/geothermophone/internal/usecase"
)

// SetupRouter creates and configures the Gin router. An empty allowedOrigins
// allows all origins.
func SetupRouter(octantUC *usecase.OctantUseCase, allowedOrigins []string, clock clockwork.Clock) *gin.Engine {
	router := gin.Default()

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	// Create handler.
	handler := NewHandler(octantUC, clock)

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.GET("/variables", handler.GetVariables)
	v1.GET("/octants/:variable", handler.GetOctants)

	// Health check and metrics.
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
