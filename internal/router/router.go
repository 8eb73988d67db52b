package router

import (
	"github.com/gin-gonic/gin"

	"schemaforge/internal/handler"
	"schemaforge/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(convertH *handler.ConvertHandler, healthH *handler.HealthHandler) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")
	v1.POST("/convert", convertH.Convert)
	v1.GET("/runs/:id", convertH.GetRun)
	v1.POST("/runs/:id/refine", convertH.Refine)

	return r
}
