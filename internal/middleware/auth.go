package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"orderdesk/internal/auth"
)

const (
	userIDContextKey = "userID"
	claimsContextKey = "claims"
)

// Revocations reports token ids invalidated by sign-out.
type Revocations interface {
	IsRevoked(tokenID string) bool
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	userID, ok := c.Get(userIDContextKey)
	if !ok {
		return "", false
	}
	value, ok := userID.(string)
	return value, ok && value != ""
}

func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}

// BearerToken extracts the token from the Authorization header, falling back
// to the token query parameter used by websocket clients.
func BearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return c.Query("token")
}

// Authenticate verifies a token and rejects ids revoked by sign-out.
func Authenticate(tokenString string, cfg auth.TokenConfig, revoked Revocations) (*auth.Claims, error) {
	claims, err := auth.VerifyToken(tokenString, cfg)
	if err != nil {
		return nil, err
	}
	if revoked != nil && revoked.IsRevoked(claims.ID) {
		return nil, errRevoked
	}
	return claims, nil
}

type revokedError struct{}

func (revokedError) Error() string { return "token revoked" }

var errRevoked error = revokedError{}

func RequireAuth(cfg auth.TokenConfig, revoked Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := BearerToken(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			c.Abort()
			return
		}

		claims, err := Authenticate(tokenString, cfg, revoked)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			c.Abort()
			return
		}

		c.Set(userIDContextKey, claims.UserID)
		c.Set(claimsContextKey, claims)
		c.Next()
	}
}
