// Package api implements the HTTP handlers for queues, items and auth.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/houzhh15/mergeq/cmd/server/internal/users"
)

const claimsKey = "claims"

// currentClaims returns the authenticated user's claims, or nil when the
// request carries no identity.
func currentClaims(c *gin.Context) *users.Claims {
	v, exists := c.Get(claimsKey)
	if !exists {
		return nil
	}
	claims, ok := v.(*users.Claims)
	if !ok {
		return nil
	}
	return claims
}

// currentUserRef returns the document path ("users/<uid>") recorded in audit
// fields, or "" for unauthenticated requests.
func currentUserRef(c *gin.Context) string {
	claims := currentClaims(c)
	if claims == nil {
		return ""
	}
	return "users/" + claims.UID
}

func errorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"error": message,
	})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(200, data)
}

func notFoundResponse(c *gin.Context, resource string) {
	c.JSON(404, gin.H{
		"error": resource + " not found",
	})
}

func badRequestResponse(c *gin.Context, message string) {
	c.JSON(400, gin.H{
		"error": message,
	})
}

func internalErrorResponse(c *gin.Context, err error) {
	c.JSON(500, gin.H{
		"error":  "internal server error",
		"detail": err.Error(),
	})
}
