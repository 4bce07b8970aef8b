package api

import (
	"bytes"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/gin-gonic/gin"

	"github.com/rawblock/racer-engine/internal/chain"
)

// ──────────────────────────────────────────────────────────────────
// Caller Identity Middleware
//
// Racer's core has no ambient caller() the way a contract VM does, so the
// HTTP transport recovers it here: a request attaches its compressed
// secp256k1 public key and a DER signature over the double-SHA256 digest
// of the raw request body, in the X-Racer-Pubkey / X-Racer-Signature
// headers. On success the resolved chain.Identity is stashed in the gin
// context for handlers to read. Adapted from internal/api/auth.go's
// bearer-token AuthMiddleware shape (env-driven, fails closed with a JSON
// body) but authenticates a caller identity rather than a static token.
// ──────────────────────────────────────────────────────────────────

const identityContextKey = "racer.identity"

// CallerMiddleware requires a valid signature on every request it guards
// and sets the resulting chain.Identity in the gin context.
func CallerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		pubHex := c.GetHeader("X-Racer-Pubkey")
		sigHex := c.GetHeader("X-Racer-Signature")
		if pubHex == "" || sigHex == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing X-Racer-Pubkey/X-Racer-Signature headers",
			})
			c.Abort()
			return
		}

		pubBytes, err := hex.DecodeString(pubHex)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid X-Racer-Pubkey encoding"})
			c.Abort()
			return
		}
		sigBytes, err := hex.DecodeString(sigHex)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid X-Racer-Signature encoding"})
			c.Abort()
			return
		}

		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			c.Abort()
			return
		}
		// GetRawData drains c.Request.Body to EOF; restore it so the
		// handler's own ShouldBindJSON can still read it.
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		digest := chainhash.DoubleHashH(body)

		identity, err := chain.RecoverIdentity(pubBytes, [32]byte(digest), sigBytes)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "signature verification failed"})
			c.Abort()
			return
		}

		c.Set(identityContextKey, identity)
		c.Next()
	}
}

// CallerFromContext retrieves the Identity CallerMiddleware set.
func CallerFromContext(c *gin.Context) (chain.Identity, bool) {
	v, ok := c.Get(identityContextKey)
	if !ok {
		return chain.Identity{}, false
	}
	id, ok := v.(chain.Identity)
	return id, ok
}
