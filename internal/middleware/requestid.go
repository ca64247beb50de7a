package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// RequestIDKey is the gin context key for the request ID.
	RequestIDKey = "request_id"

	// RequestIDHeader carries the request ID on responses.
	RequestIDHeader = "X-Request-ID"

	// clientRequestIDKey holds a caller-supplied request ID, kept for
	// correlation only.
	clientRequestIDKey = "client_request_id"
)

// RequestID mints a server-side UUID for every request and echoes it in the
// response header. A client-supplied X-Request-ID is never trusted as the
// canonical ID (it would let callers forge audit correlation); it is stored
// and logged alongside the real one instead.
func RequestID(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		if supplied := c.GetHeader(RequestIDHeader); supplied != "" {
			c.Set(clientRequestIDKey, supplied)
			log.WithFields(logrus.Fields{
				RequestIDKey:       id,
				clientRequestIDKey: supplied,
			}).Debug("mapped client request ID")
		}

		c.Next()
	}
}
