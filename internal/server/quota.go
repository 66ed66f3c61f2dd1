package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	usagedomain "github.com/inspira-labs/inspira-billing/internal/usage/domain"
)

type consumeQuotaRequest struct {
	QuotaType string `json:"quota_type" binding:"required"`
}

// ConsumeQuota decides and debits in one call. Exhaustion is a 200 with
// allowed=false and a reason, not an error; callers branch on the body.
func (s *Server) ConsumeQuota(c *gin.Context) {
	var req consumeQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	quotaType := usagedomain.QuotaType(strings.TrimSpace(req.QuotaType))
	result, err := s.quotaSvc.CheckAndConsume(c.Request.Context(), userIDFrom(c), quotaType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) QuotaStatus(c *gin.Context) {
	status, err := s.quotaSvc.GetQuotaStatus(c.Request.Context(), userIDFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}
