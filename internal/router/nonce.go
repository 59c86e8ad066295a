package router

import (
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/gin-gonic/gin"
)

const CspNonceContextKey = "csp_nonce"

// generateNonce creates a cryptographically secure random token.
func generateNonce(length int) (string, error) {
	b := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// NonceMiddleware creates a new nonce for each request and adds it to the
// Gin context for use in headers and templates.
func NonceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		nonce, err := generateNonce(32)
		if err != nil {
			panic("failed to generate CSP nonce")
		}
		c.Set(CspNonceContextKey, nonce)
		c.Next()
	}
}
