// Package provider implements the payment channel clients. The active client
// is selected by configuration at startup; handlers never branch on provider.
package provider

import (
	"fmt"
	"net/http"
	"time"

	"github.com/inspira-labs/inspira-billing/internal/config"
	"github.com/inspira-labs/inspira-billing/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Config config.Config
}

// NewProviderClient builds the configured provider client.
func NewProviderClient(p Params) (domain.ProviderClient, error) {
	timeout := time.Duration(p.Config.Payment.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	switch p.Config.Payment.Provider {
	case "sandbox", "":
		return NewSandboxClient(p.Log), nil
	case "wechat":
		return NewWechatClient(p.Log, p.Config.Payment, &http.Client{Timeout: timeout}), nil
	default:
		return nil, fmt.Errorf("payment provider %q: %w", p.Config.Payment.Provider, domain.ErrUnknownProvider)
	}
}
