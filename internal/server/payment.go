package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/inspira-labs/inspira-billing/internal/payment/domain"
	plandomain "github.com/inspira-labs/inspira-billing/internal/plan/domain"
	subscriptiondomain "github.com/inspira-labs/inspira-billing/internal/subscription/domain"
)

type createOrderRequest struct {
	Tier string `json:"tier" binding:"required"`
	Type string `json:"type"`
}

func (s *Server) CreatePaymentOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tier, err := plandomain.ParseTier(strings.TrimSpace(req.Tier))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	orderType := subscriptiondomain.OrderType(strings.TrimSpace(req.Type))
	if orderType == "" {
		orderType = subscriptiondomain.OrderTypeInitial
	}

	order, err := s.paymentSvc.CreateOrder(c.Request.Context(), userIDFrom(c), tier, orderType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

// PaymentCallback acknowledges with 200 only once the settlement is durable;
// anything else makes the provider redeliver.
func (s *Server) PaymentCallback(c *gin.Context) {
	var req paymentdomain.CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidCallback)
		return
	}

	if err := s.paymentSvc.HandleCallback(c.Request.Context(), &req); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) QueryPaymentOrder(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))

	order, err := s.paymentSvc.QueryPaymentStatus(c.Request.Context(), userIDFrom(c), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}
