package handlers

import (
	"net/http"
	"strings"

	"sensor_gateway/internal/models"

	"github.com/gin-gonic/gin"
)

// Gin context keys set by authMiddleware.
const (
	ctxUserID = "userId"
	ctxRole   = "role"
)

func (h *Handler) authMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing Authorization header",
		})
		return
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid Authorization header format",
		})
		return
	}

	p, err := h.services.ParseToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	c.Set(ctxUserID, p.UserID)
	c.Set(ctxRole, p.Role)
	c.Next()
}

// requireRole aborts with 403 unless the caller's token grants want.
// It must run after authMiddleware.
func requireRole(want models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if role := principalRole(c); !role.Allows(want) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": string(want) + " role required",
			})
			return
		}
		c.Next()
	}
}

func principalRole(c *gin.Context) models.Role {
	v, _ := c.Get(ctxRole)
	role, _ := v.(models.Role)
	return role
}
