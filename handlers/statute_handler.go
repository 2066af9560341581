package handlers

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strings"

	"offerguard-backend/service"

	"github.com/gin-gonic/gin"
)

// StatuteHandler handles HTTP requests for the statute corpus
type StatuteHandler struct {
	complianceService *service.ComplianceService
}

// NewStatuteHandler creates a new statute handler
func NewStatuteHandler(complianceService *service.ComplianceService) *StatuteHandler {
	return &StatuteHandler{complianceService: complianceService}
}

// ListJurisdictions handles GET /api/jurisdictions
func (h *StatuteHandler) ListJurisdictions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"jurisdictions": h.complianceService.Jurisdictions(),
			"corpus":        h.complianceService.CorpusStats(),
		},
	})
}

// ListStatutes handles GET /api/statutes/:jurisdiction
func (h *StatuteHandler) ListStatutes(c *gin.Context) {
	statutes, err := h.complianceService.ListStatutes(c.Param("jurisdiction"))
	if err != nil {
		if errors.Is(err, service.ErrUnknownJurisdiction) {
			respondError(c, http.StatusUnprocessableEntity, "UNKNOWN_JURISDICTION", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "FETCH_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"jurisdiction": strings.ToUpper(c.Param("jurisdiction")),
			"statutes":     statutes,
		},
	})
}

// SearchStatutesRequest represents the request body for a statute search
type SearchStatutesRequest struct {
	Jurisdiction string `json:"jurisdiction" binding:"required"`
	Query        string `json:"query" binding:"required"`
}

// SearchStatutes handles POST /api/statutes/search
func (h *StatuteHandler) SearchStatutes(c *gin.Context) {
	var req SearchStatutesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	results, err := h.complianceService.SearchStatutes(c.Request.Context(), req.Jurisdiction, req.Query)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDocumentInput):
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		case errors.Is(err, service.ErrUnknownJurisdiction):
			respondError(c, http.StatusUnprocessableEntity, "UNKNOWN_JURISDICTION", err.Error())
		default:
			log.Printf("Statute search failed: %v", err)
			respondError(c, http.StatusInternalServerError, "SEARCH_FAILED", "statute search failed")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"total":   len(results),
			"results": results,
		},
	})
}

// ReloadCorpus handles POST /api/admin/corpus/reload
func (h *StatuteHandler) ReloadCorpus(c *gin.Context) {
	stats, err := h.complianceService.ReloadCorpus(c.Request.Context())
	if err != nil {
		log.Printf("Warning: corpus reload failed, previous corpus stays active: %v", err)
		respondError(c, http.StatusInternalServerError, "RELOAD_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

// RequireAdminToken rejects requests without the bearer admin token. An
// empty token disables the protected routes.
func RequireAdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin access is not configured")
			return
		}
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin token")
			return
		}
		c.Next()
	}
}
