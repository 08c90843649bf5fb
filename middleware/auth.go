package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront-svc/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

// AuthMiddleware resolves the bearer token into a models.Identity. Tokens
// carry the caller's id and role claims and are signed with HS256.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}

		id, err := ParseToken(secret, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole rejects callers whose identity does not have role.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok || id.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}

type claims struct {
	UserID string      `json:"id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

func ParseToken(secret []byte, raw string) (models.Identity, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Identity{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if cl.UserID == "" {
		return models.Identity{}, errors.New("token has no id claim")
	}

	role := cl.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return models.Identity{}, fmt.Errorf("unknown role %q", role)
	}
	return models.Identity{UserID: cl.UserID, Role: role}, nil
}

// SignToken issues a token for id. Used by tests and local tooling.
func SignToken(secret []byte, id models.Identity) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{UserID: id.UserID, Role: id.Role})
	return token.SignedString(secret)
}
