package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/medvault/portal/internal/pkg/jwt"
	"github.com/medvault/portal/internal/pkg/response"
)

const ContextKeyUserID = "user_id"

// Auth returns a middleware that requires a valid bearer token.
func Auth(issuer *jwt.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := ValidateToken(issuer, extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

// ValidateToken parses a raw Authorization value and returns the user id.
func ValidateToken(issuer *jwt.Issuer, rawToken string) (string, error) {
	token := NormalizeToken(rawToken)
	if token == "" {
		return "", errors.New("token is required")
	}
	claims, err := issuer.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
