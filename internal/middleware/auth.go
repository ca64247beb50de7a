package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/backbill/chronicle/internal/models"
)

// authTimingFloor is the minimum response time for auth failures to prevent
// timing oracle attacks that could distinguish valid from invalid API keys.
const authTimingFloor = 50 * time.Millisecond

// Context keys set by AuthMiddleware.
const (
	ActorIDKey   = "actor_id"
	ActorNameKey = "actor_name"
)

// Actor headers identifying who is performing the request on behalf of the
// back office. The API key authenticates the calling system; these attribute
// the mutation to a person for the audit trail.
const (
	ActorIDHeader   = "X-Actor-Id"
	ActorNameHeader = "X-Actor-Name"
)

// truncateKey returns at most the first 4 characters of key followed by "...".
func truncateKey(key string) string {
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return key
}

// enforceTimingFloor sleeps if needed so the response takes at least authTimingFloor.
func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

// AuthMiddleware returns Gin middleware that authenticates requests via
// Bearer token against the configured API key. Comparison is over SHA-256
// digests in constant time. Authenticated requests carry the actor identity
// from the X-Actor-Id / X-Actor-Name headers into the gin context.
func AuthMiddleware(apiKey string, log *logrus.Logger) gin.HandlerFunc {
	want := sha256.Sum256([]byte(apiKey))

	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		token := ExtractBearerToken(c)
		if token == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid authorization header")
			return
		}

		got := sha256.Sum256([]byte(token))
		if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
			logAuthFailure(log, c, token)
			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid api key")
			return
		}

		actorID := c.GetHeader(ActorIDHeader)
		if actorID == "" {
			respondError(c, http.StatusBadRequest, "missing_actor", "X-Actor-Id header is required")
			return
		}

		c.Set(ActorIDKey, actorID)
		c.Set(ActorNameKey, c.GetHeader(ActorNameHeader))
		c.Next()
	}
}

// GetActor extracts the actor identity placed in the context by AuthMiddleware.
func GetActor(c *gin.Context) models.Actor {
	return models.Actor{
		ID:   c.GetString(ActorIDKey),
		Name: c.GetString(ActorNameKey),
	}
}

// ExtractBearerToken extracts the API key from the Authorization header.
func ExtractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// logAuthFailure logs a failed authentication attempt.
func logAuthFailure(log *logrus.Logger, c *gin.Context, apiKey string) {
	log.WithFields(logrus.Fields{
		"client_ip":  c.ClientIP(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"request_id": c.GetString("request_id"),
		"key_prefix": truncateKey(apiKey),
	}).Warn("authentication failed: invalid api key")
}
