package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CreateSubscription grants the complimentary paid entitlement directly,
// without a payment order. Intended for support and internal tooling.
func (s *Server) CreateSubscription(c *gin.Context) {
	userID := userIDFrom(c)

	if err := s.quotaSvc.CreateSubscription(c.Request.Context(), userID); err != nil {
		AbortWithError(c, err)
		return
	}

	subscription, err := s.subSvc.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subscription})
}

func (s *Server) GetSubscription(c *gin.Context) {
	subscription, err := s.subSvc.GetByUserID(c.Request.Context(), userIDFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subscription})
}

// CancelSubscription turns off renewal; paid access runs to the period end.
func (s *Server) CancelSubscription(c *gin.Context) {
	periodEnd, err := s.subSvc.CancelSubscription(c.Request.Context(), userIDFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"status":         "cancelled",
		"active_until":   periodEnd.Format(time.RFC3339),
		"quota_retained": true,
	}})
}
