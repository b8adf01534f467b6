package middlewares

import (
	"net/http"

	"github.com/geocoder89/teamflow/internal/domain/account"
	"github.com/gin-gonic/gin"
)

// RequireAdmin must run after RequireSession. The role checked is the one
// captured when the session was established.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, ok := AccountFromContext(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}

		switch acc.Role {
		case account.RoleAdmin:
			c.Next()
		case account.RoleMember:
			abortJSON(c, http.StatusForbidden, "forbidden", "Admin role required")
		default:
			abortJSON(c, http.StatusForbidden, "forbidden", "Unknown role")
		}
	}
}
