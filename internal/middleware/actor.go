package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/elim-assembly/attendance-api/internal/models"
)

// ContextActorKey is the gin context key storing the operator claims.
const ContextActorKey = "currentActor"

// Actor attaches the operator identity from a bearer token when one is
// present. Requests without a token proceed as the system actor, which is
// how scanner and kiosk terminals submit; token issuance happens in the
// external identity service.
func Actor(secret string) gin.HandlerFunc {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.Next()
			return
		}

		claims := &models.ActorClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, keyFunc)
		if err != nil || !token.Valid {
			c.Next()
			return
		}

		c.Set(ContextActorKey, claims)
		c.Next()
	}
}
