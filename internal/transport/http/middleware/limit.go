package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"vecbridge/internal/transport/http/response"
)

// InFlightLimit caps concurrent requests on the routes it wraps. A request
// waits up to acquireWait for a slot; past that the server sheds it with a
// 503 instead of queueing unboundedly.
func InFlightLimit(maxInFlight int64, acquireWait time.Duration) gin.HandlerFunc {
	sem := semaphore.NewWeighted(maxInFlight)
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), acquireWait)
		defer cancel()

		if err := sem.Acquire(ctx, 1); err != nil {
			response.Error(c, http.StatusServiceUnavailable, response.CodeOverloaded,
				"server is at capacity, retry shortly")
			c.Abort()
			return
		}
		defer sem.Release(1)

		c.Next()
	}
}
