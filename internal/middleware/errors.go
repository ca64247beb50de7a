package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/backbill/chronicle/internal/httputil"
)

// respondError writes the standard error body and aborts. Middleware rejects
// requests before any handler runs, so it shares the handlers' error shape
// via httputil.
func respondError(c *gin.Context, status int, code, message string) {
	httputil.RespondError(c, status, code, message)
}
