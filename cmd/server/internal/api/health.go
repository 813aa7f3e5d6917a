package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleHealth GET /api/v1/health
func HandleHealth(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": version,
		})
	}
}
