package provider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/inspira-labs/inspira-billing/internal/config"
	"github.com/inspira-labs/inspira-billing/internal/payment/domain"
	"go.uber.org/zap"
)

// WechatClient creates native-pay orders against the WeChat Pay gateway.
// Requests are signed with HMAC-SHA256 over the merchant key.
type WechatClient struct {
	log      *zap.Logger
	endpoint string
	mchID    string
	apiKey   string
	http     *http.Client
}

func NewWechatClient(log *zap.Logger, cfg config.PaymentConfig, client *http.Client) *WechatClient {
	return &WechatClient{
		log:      log.Named("payment.provider.wechat"),
		endpoint: cfg.WechatEndpoint,
		mchID:    cfg.WechatMchID,
		apiKey:   cfg.WechatAPIKey,
		http:     client,
	}
}

func (c *WechatClient) Name() string { return "wechat" }

type wechatCreateRequest struct {
	MchID       string `json:"mch_id"`
	OutTradeNo  string `json:"out_trade_no"`
	TotalFee    int64  `json:"total_fee"`
	Description string `json:"description"`
	Sign        string `json:"sign"`
}

type wechatCreateResponse struct {
	ReturnCode    string `json:"return_code"`
	ReturnMsg     string `json:"return_msg"`
	TransactionID string `json:"transaction_id"`
	CodeURL       string `json:"code_url"`
}

func (c *WechatClient) CreateOrder(ctx context.Context, order *domain.PaymentOrder) (*domain.ProviderOrder, error) {
	if order == nil || order.OrderID == "" {
		return nil, domain.ErrInvalidOrder
	}
	if c.endpoint == "" || c.mchID == "" || c.apiKey == "" {
		return nil, fmt.Errorf("wechat client not configured: %w", domain.ErrProviderUnavailable)
	}

	payload := wechatCreateRequest{
		MchID:       c.mchID,
		OutTradeNo:  order.OrderID,
		TotalFee:    order.AmountFen,
		Description: fmt.Sprintf("Inspira %s subscription", order.Tier),
	}
	payload.Sign = c.sign(payload.OutTradeNo, payload.TotalFee)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/pay/unifiedorder", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wechat unifiedorder: %w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wechat unifiedorder status %d: %w", resp.StatusCode, domain.ErrProviderUnavailable)
	}

	var out wechatCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("wechat unifiedorder decode: %w", domain.ErrProviderUnavailable)
	}
	if out.ReturnCode != "SUCCESS" {
		c.log.Warn("wechat rejected order",
			zap.String("order_id", order.OrderID),
			zap.String("return_msg", out.ReturnMsg),
		)
		return nil, fmt.Errorf("wechat return_code %s: %w", out.ReturnCode, domain.ErrProviderUnavailable)
	}
	if out.CodeURL == "" {
		return nil, fmt.Errorf("wechat response missing code_url: %w", domain.ErrProviderUnavailable)
	}

	return &domain.ProviderOrder{
		ProviderReference: out.TransactionID,
		QRCodeURL:         out.CodeURL,
	}, nil
}

func (c *WechatClient) sign(outTradeNo string, totalFee int64) string {
	mac := hmac.New(sha256.New, []byte(c.apiKey))
	mac.Write([]byte("mch_id=" + c.mchID))
	mac.Write([]byte("&out_trade_no=" + outTradeNo))
	mac.Write([]byte("&total_fee=" + strconv.FormatInt(totalFee, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
