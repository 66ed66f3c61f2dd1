package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderRequestID = "X-Request-ID"

	contextUserIDKey = "user_id"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// UserRequired resolves the caller identity from the gateway-injected header.
// Authentication happened upstream; an absent or malformed header here is a
// routing mistake, not a credential failure.
func UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, id)
		c.Next()
	}
}

func userIDFrom(c *gin.Context) snowflake.ID {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0
	}
	id, ok := value.(snowflake.ID)
	if !ok {
		return 0
	}
	return id
}

// RateLimitQuota buckets consume traffic per user before it reaches storage.
func (s *Server) RateLimitQuota() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.guard.Enabled() {
			c.Next()
			return
		}

		result, err := s.guard.AllowQuota(c.Request.Context(), userIDFrom(c).String())
		if err != nil {
			s.log.Warn("quota rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			tooManyRequests(c, result.RetryAfter.Seconds())
			return
		}
		c.Next()
	}
}

// RateLimitCallback buckets provider callbacks per source address.
func (s *Server) RateLimitCallback() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.guard.Enabled() {
			c.Next()
			return
		}

		result, err := s.guard.AllowCallback(c.Request.Context(), c.ClientIP())
		if err != nil {
			s.log.Warn("callback rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			tooManyRequests(c, result.RetryAfter.Seconds())
			return
		}
		c.Next()
	}
}

func tooManyRequests(c *gin.Context, retryAfterSeconds float64) {
	seconds := int(retryAfterSeconds)
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
		Error: errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		},
	})
}
