package handlers

import (
	"github.com/gin-gonic/gin"
)

// respondError writes the standard error envelope and aborts the request
func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
