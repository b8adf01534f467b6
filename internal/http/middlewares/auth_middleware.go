package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/teamflow/internal/actorctx"
	"github.com/geocoder89/teamflow/internal/auth"
	"github.com/geocoder89/teamflow/internal/domain/account"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// SessionChecker reports the signed-in account. Implemented by session.Manager.
type SessionChecker interface {
	Active(accountID string) (account.Account, bool)
}

type AuthMiddleware struct {
	jwt      TokenVerifier
	sessions SessionChecker
}

func NewAuthMiddleware(jwt TokenVerifier, sessions SessionChecker) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, sessions: sessions}
}

// RequireSession admits a request only when its bearer token names the
// account that currently holds the session. Signing out therefore revokes
// every token issued before.
func (m *AuthMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Missing or invalid access token")
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired access token")
			return
		}

		acc, ok := m.sessions.Active(claims.AccountID)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "No active session, please sign in")
			return
		}

		c.Set(CtxAccountID, acc.ID)
		c.Set(CtxAccount, acc)
		c.Request = c.Request.WithContext(actorctx.WithAccountID(c.Request.Context(), acc.ID))

		c.Next()
	}
}

func AccountIDFromContext(c *gin.Context) (string, bool) {
	id := c.GetString(CtxAccountID)
	return id, id != ""
}

func AccountFromContext(c *gin.Context) (account.Account, bool) {
	v, ok := c.Get(CtxAccount)
	if !ok {
		return account.Account{}, false
	}
	acc, ok := v.(account.Account)
	return acc, ok
}
