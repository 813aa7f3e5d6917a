package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/houzhh15/mergeq/cmd/server/internal/users"
)

// HandleLogin POST /api/v1/login
// Exchanges username/password credentials for a JWT.
func HandleLogin(userManager *users.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequestResponse(c, "invalid request body")
			return
		}
		if req.Username == "" || req.Password == "" {
			badRequestResponse(c, "username and password are required")
			return
		}

		user, err := userManager.Authenticate(req.Username, req.Password)
		if err != nil {
			if errors.Is(err, users.ErrInvalidCredentials) {
				errorResponse(c, http.StatusUnauthorized, "invalid credentials")
				return
			}
			internalErrorResponse(c, err)
			return
		}

		token, err := userManager.GenerateToken(user.Username)
		if err != nil {
			internalErrorResponse(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  user.Proxy(),
		})
	}
}

// RequireAuth validates the bearer token and stores the claims in the
// request context. Requests without a valid token are rejected.
func RequireAuth(userManager *users.Manager, authLogger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || len(auth) < 8 {
			authLogger.Warn("missing bearer token",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := userManager.ParseToken(auth[7:])
		if err != nil {
			authLogger.Warn("invalid token",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}
