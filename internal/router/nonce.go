package router

import (
	"fmt"

	"github.com/cph-cachet/carp-portal/internal/utils"

	"github.com/gin-gonic/gin"
)

const CspNonceContextKey = "csp_nonce"

// NonceMiddleware creates a new cryptographic nonce for each request
// and adds it to the Gin context for use in headers and templates.
func NonceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		nonce, err := utils.GenerateSecureToken(16)
		if err != nil {
			panic("failed to generate CSP nonce")
		}
		c.Set(CspNonceContextKey, nonce)
		c.Next()
	}
}

// ContentSecurityPolicy allows scripts from the CDNs the layout loads and
// inline scripts carrying the request nonce. HTMX partials reuse the page's policy.
func ContentSecurityPolicy() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("HX-Request") != "true" {
			nonce := c.GetString(CspNonceContextKey)
			csp := fmt.Sprintf(
				"script-src 'self' https://unpkg.com https://cdn.jsdelivr.net 'nonce-%s'; style-src 'self' https://fonts.googleapis.com 'unsafe-inline'; font-src 'self' https://fonts.gstatic.com",
				nonce,
			)
			c.Header("Content-Security-Policy", csp)
		}
		c.Next()
	}
}
