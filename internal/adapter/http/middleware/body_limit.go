package middleware

import (
	"net/http"

	"merchant-wallet/pkg/apperror"
	"merchant-wallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodySize caps request bodies, including gateway callbacks, at
// maxBytes. A declared Content-Length over the cap is refused before the
// handler runs; chunked bodies fail on read instead.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, apperror.ErrPayloadTooLarge())
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
