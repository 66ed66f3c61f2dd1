package provider

import (
	"context"
	"fmt"

	"github.com/inspira-labs/inspira-billing/internal/payment/domain"
	"go.uber.org/zap"
)

// SandboxClient accepts every order locally. It exists for development and
// tests, where settlement is driven by posting the callback endpoint by hand.
type SandboxClient struct {
	log *zap.Logger
}

func NewSandboxClient(log *zap.Logger) *SandboxClient {
	return &SandboxClient{log: log.Named("payment.provider.sandbox")}
}

func (c *SandboxClient) Name() string { return "sandbox" }

func (c *SandboxClient) CreateOrder(ctx context.Context, order *domain.PaymentOrder) (*domain.ProviderOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if order == nil || order.OrderID == "" {
		return nil, domain.ErrInvalidOrder
	}

	c.log.Debug("sandbox order accepted",
		zap.String("order_id", order.OrderID),
		zap.Int64("amount_fen", order.AmountFen),
	)

	return &domain.ProviderOrder{
		ProviderReference: "SANDBOX-" + order.OrderID,
		QRCodeURL:         fmt.Sprintf("https://sandbox.pay.invalid/qr/%s", order.OrderID),
	}, nil
}
