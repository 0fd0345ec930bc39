package router

import (
	"github.com/gin-gonic/gin"

	"scanflow/internal/handler"
	"scanflow/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(batchH *handler.BatchHandler, healthH *handler.HealthHandler, allowedOrigins []string) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	batches := v1.Group("/batches")
	batches.POST("", batchH.Upload)
	batches.GET("", batchH.List)
	batches.GET("/:id", batchH.GetByID)
	batches.GET("/:id/audit", batchH.AuditTrail)
	batches.GET("/:id/report.csv", batchH.ReportCSV)
	batches.GET("/:id/report.xlsx", batchH.ReportXLSX)

	documents := v1.Group("/documents")
	documents.GET("/:id/artifact", batchH.ArtifactURL)

	return r
}
