package httpmiddleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"qrattend/internal/metrics"
)

// RequestID tags every response with an X-Request-ID, honoring one supplied
// by the client.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// CountRequests feeds the http_requests_total counter.
func CountRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		metrics.Requests.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
