package handlers

import (
	"net/http"

	"offerguard-backend/service"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the API on r
func RegisterRoutes(r *gin.Engine, complianceService *service.ComplianceService, adminToken string) {
	complianceHandler := NewComplianceHandler(complianceService)
	statuteHandler := NewStatuteHandler(complianceService)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"corpus_records": complianceService.CorpusStats().Records,
		})
	})

	api := r.Group("/api")
	{
		// Analysis endpoints
		api.POST("/compliance/analyze", complianceHandler.Analyze)
		api.GET("/compliance/runs", complianceHandler.ListRuns)
		api.GET("/compliance/runs/:id", complianceHandler.GetRun)

		// Corpus endpoints
		api.GET("/jurisdictions", statuteHandler.ListJurisdictions)
		api.GET("/statutes/:jurisdiction", statuteHandler.ListStatutes)
		api.POST("/statutes/search", statuteHandler.SearchStatutes)

		admin := api.Group("/admin", RequireAdminToken(adminToken))
		admin.POST("/corpus/reload", statuteHandler.ReloadCorpus)
	}
}
