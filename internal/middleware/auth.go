package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/laisky/relay-gateway/internal/ctxkey"
	"github.com/laisky/relay-gateway/internal/gwconfig"
	"github.com/laisky/relay-gateway/internal/gwerrors"
)

// trustedChannel is the X-CCR-Channel value that exempts a request from the
// forward-token check, per §4.1: "requests labeled as coming from the
// dashboard are trusted and skip auth." Grounded on the teacher's
// channel-type special-casing in middleware/distributor.go, adapted from
// "backend channel type" to "caller-declared channel label".
const trustedChannel = "dashboard"

// extractForwardToken reads the caller's gateway-level token from either
// Authorization: Bearer, x-api-key, or x-ccr-forward-token, per §6's ingress
// auth table.
func extractForwardToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if key := c.GetHeader("x-api-key"); key != "" {
		return key
	}
	return c.GetHeader("x-ccr-forward-token")
}

// Auth checks the caller-supplied forward token against the configured
// value, unless the request is labeled as coming from a trusted channel or
// gwconfig.ForwardToken is empty, in which case auth is disabled entirely.
// Per §4.1 step 1.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-CCR-Channel") == trustedChannel {
			c.Set(ctxkey.ForwardToken, "")
			c.Set(ctxkey.AuthMode, "trusted-channel")
			c.Next()
			return
		}

		if gwconfig.ForwardToken == "" {
			c.Set(ctxkey.ForwardToken, "")
			c.Set(ctxkey.AuthMode, "disabled")
			c.Next()
			return
		}

		token := extractForwardToken(c)
		if token == "" || token != gwconfig.ForwardToken {
			gwerrors.New(gwerrors.KindUnauthorized, "missing or invalid forward token").WriteJSON(c)
			return
		}

		c.Set(ctxkey.ForwardToken, token)
		c.Set(ctxkey.AuthMode, "token")
		c.Next()
	}
}
