package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// StaffAuth enforces bearer JWT tokens signed with HS256 and stashes the
// claims on the request context.
func StaffAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// FromContext returns the authenticated claims, if any.
func FromContext(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

// RequireAdmin is the guard invoked at the top of admin-gated handlers.
// A non-admin caller gets a soft denial (notice plus a redirect hint) and the
// operation is skipped; the guard never panics or aborts with a bare error.
// Returns true when the caller may proceed.
func RequireAdmin(c *gin.Context) bool {
	claims, ok := FromContext(c)
	if !ok || !claims.Admin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success":  false,
			"message":  "You need admin privileges to perform this action.",
			"redirect": "/dashboard",
		})
		return false
	}
	return true
}
