package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"offerguard-backend/models"
	"offerguard-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxRequestBytes caps analysis request bodies
const maxRequestBytes = 4 << 20

// ComplianceHandler handles HTTP requests for document analysis
type ComplianceHandler struct {
	complianceService *service.ComplianceService
}

// NewComplianceHandler creates a new compliance handler
func NewComplianceHandler(complianceService *service.ComplianceService) *ComplianceHandler {
	return &ComplianceHandler{complianceService: complianceService}
}

// Analyze handles POST /api/compliance/analyze
func (h *ComplianceHandler) Analyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes)

	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if strings.TrimSpace(req.Jurisdiction) == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "jurisdiction is required")
		return
	}

	result, err := h.complianceService.Analyze(c.Request.Context(), service.AnalyzeRequest{
		DocumentText:  req.DocumentText,
		Jurisdiction:  req.Jurisdiction,
		MinConfidence: req.Options.MinConfidence,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDocumentInput):
			respondError(c, http.StatusBadRequest, "INVALID_DOCUMENT", err.Error())
		case errors.Is(err, service.ErrUnknownJurisdiction):
			respondError(c, http.StatusUnprocessableEntity, "UNKNOWN_JURISDICTION", err.Error())
		default:
			log.Printf("Analysis failed: %v", err)
			respondError(c, http.StatusInternalServerError, "ANALYSIS_FAILED", "analysis failed")
		}
		return
	}

	c.JSON(http.StatusOK, models.NewAnalysisResponse(result))
}

// GetRun handles GET /api/compliance/runs/:id
func (h *ComplianceHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid analysis ID format")
		return
	}

	run, err := h.complianceService.GetRun(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRunNotFound), errors.Is(err, service.ErrRunsDisabled):
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Analysis run not found")
		default:
			log.Printf("Failed to load analysis run %s: %v", id, err)
			respondError(c, http.StatusInternalServerError, "FETCH_FAILED", "failed to load analysis run")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    run,
	})
}

// ListRuns handles GET /api/compliance/runs?jurisdiction=CA&limit=20
func (h *ComplianceHandler) ListRuns(c *gin.Context) {
	jurisdiction := c.Query("jurisdiction")
	if strings.TrimSpace(jurisdiction) == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "jurisdiction query parameter is required")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be an integer")
		return
	}

	runs, err := h.complianceService.ListRuns(c.Request.Context(), jurisdiction, limit)
	if err != nil {
		if errors.Is(err, service.ErrRunsDisabled) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Analysis run storage is not enabled")
			return
		}
		log.Printf("Failed to list analysis runs: %v", err)
		respondError(c, http.StatusInternalServerError, "FETCH_FAILED", "failed to list analysis runs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"total": len(runs),
			"runs":  runs,
		},
	})
}
