package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"quizhub-service/internal/domain"
)

const identityKey = "identity"

// Identity is the authenticated caller as asserted by the auth service
// that issued the token. Users are provisioned lazily from these claims.
type Identity struct {
	UserID      string
	DisplayName string
	Role        domain.Role
}

// AuthRequired validates the HS256 bearer token and puts the caller's
// identity into the request context.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims := jwt.MapClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !parsed.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token missing subject"})
			return
		}
		name, _ := claims["name"].(string)
		role, _ := claims["role"].(string)
		if role == "" {
			role = string(domain.RoleUser)
		}

		c.Set(identityKey, Identity{UserID: sub, DisplayName: name, Role: domain.Role(role)})
		c.Next()
	}
}

func identityFrom(c *gin.Context) Identity {
	v, _ := c.Get(identityKey)
	ident, _ := v.(Identity)
	return ident
}
