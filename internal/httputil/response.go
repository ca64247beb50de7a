// Package httputil holds the error response shape shared by handlers and
// middleware.
package httputil

import "github.com/gin-gonic/gin"

// RespondError aborts the request with the standard error body:
// a machine-readable code, a human-readable message, and the request ID when
// one has been assigned. Every non-2xx response in the API goes through this
// shape so clients can match on code alone.
func RespondError(c *gin.Context, status int, code, message string) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if id := c.GetString("request_id"); id != "" {
		body["request_id"] = id
	}

	c.AbortWithStatusJSON(status, body)
}
