// Package middleware implements the Ingress Middleware (C4) and Panic
// Guard (C9): request-id stamping, auth/auto-route/model-lookup/route-
// selection wiring per §4.1, and panic recovery per §4.8. Grounded on
// middleware/{recover.go,request-id.go,distributor.go,utils.go} in the
// teacher.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/laisky/relay-gateway/internal/logger"
)

// PanicGuard recovers a panicking handler, logs the stack trace, and
// renders the gateway's JSON error envelope instead of letting the
// connection die silently, per §4.8.
func PanicGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Logger.Error("panic recovered in request handler",
					zap.Any("panic", r),
					zap.String("stacktrace", string(debug.Stack())),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path))
				if !c.Writer.Written() {
					c.JSON(http.StatusInternalServerError, gin.H{
						"error": gin.H{
							"message": "internal error while forwarding request",
							"type":    "InternalError",
						},
					})
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
