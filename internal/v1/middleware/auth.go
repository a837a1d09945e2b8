package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/traP-jp/ShoutWars-server/internal/v1/metrics"
)

// BearerAuth replaces the teacher's JWT/JWKS validation with the spec's
// shared-secret scheme (spec.md §6): when secret is empty, auth is
// disabled entirely; otherwise a missing or mismatched
// "Authorization: Bearer <secret>" header returns 404, not 401, so an
// unauthenticated caller cannot distinguish "wrong secret" from
// "endpoint doesn't exist".
func BearerAuth(secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			metrics.AuthRejections.Inc()
			c.AbortWithStatus(404)
			return
		}
		c.Next()
	}
}
