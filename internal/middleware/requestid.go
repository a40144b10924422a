package middleware

import (
	gutils "github.com/Laisky/go-utils/v5"
	"github.com/gin-gonic/gin"

	"github.com/laisky/relay-gateway/internal/ctxkey"
)

// RequestID stamps every request with a UUIDv7 identifier, echoed back on
// the response header for log correlation, matching middleware/request-id.go
// in the teacher.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := gutils.UUID7()
		c.Set(ctxkey.RequestID, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}
