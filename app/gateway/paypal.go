package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const GatewayNamePayPal = "paypal"

type PayPalConfig struct {
	ClientID    string
	Secret      string
	BaseURL     string
	WebhookID   string
	HTTPTimeout time.Duration
}

type PayPalGateway struct {
	cfg    PayPalConfig
	client *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewPayPalGateway(cfg PayPalConfig) *PayPalGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api-m.sandbox.paypal.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &PayPalGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *PayPalGateway) Name() string {
	return GatewayNamePayPal
}

func (p *PayPalGateway) CreateIntent(ctx context.Context, amountValue, currency, referenceCode string) (*Intent, error) {
	request := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"custom_id": referenceCode,
				"amount": map[string]string{
					"currency_code": strings.ToUpper(currency),
					"value":         amountValue,
				},
			},
		},
	}

	body, err := p.postJSON(ctx, "/v2/checkout/orders", request)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.ID) == "" {
		return nil, errors.New("paypal order id missing in create response")
	}

	return &Intent{IntentID: payload.ID, Status: payload.Status}, nil
}

func (p *PayPalGateway) Capture(ctx context.Context, intentID string) (*CaptureResult, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, errors.New("intent id is required")
	}

	body, err := p.postJSON(ctx, "/v2/checkout/orders/"+url.PathEscape(intentID)+"/capture", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Status        string `json:"status"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
					Amount struct {
						Value        string `json:"value"`
						CurrencyCode string `json:"currency_code"`
					} `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	result := &CaptureResult{
		Status:      payload.Status,
		RawResponse: string(body),
	}
	for _, unit := range payload.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			result.CaptureID = strings.TrimSpace(capture.ID)
			result.AmountValue = strings.TrimSpace(capture.Amount.Value)
			result.Currency = strings.TrimSpace(capture.Amount.CurrencyCode)
			if capture.Status != "" {
				result.Status = capture.Status
			}
		}
	}

	return result, nil
}

func (p *PayPalGateway) Refund(ctx context.Context, captureID, amountValue, currency, reason string) (*RefundResult, error) {
	if strings.TrimSpace(captureID) == "" {
		return nil, errors.New("capture id is required")
	}

	request := map[string]interface{}{}
	if strings.TrimSpace(amountValue) != "" {
		request["amount"] = map[string]string{
			"currency_code": strings.ToUpper(currency),
			"value":         amountValue,
		}
	}
	if strings.TrimSpace(reason) != "" {
		request["note_to_payer"] = truncateNote(reason, 255)
	}

	body, err := p.postJSON(ctx, "/v2/payments/captures/"+url.PathEscape(captureID)+"/refund", request)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	return &RefundResult{
		RefundID:    strings.TrimSpace(payload.ID),
		Status:      strings.TrimSpace(payload.Status),
		RawResponse: string(body),
	}, nil
}

func (p *PayPalGateway) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (bool, error) {
	if strings.TrimSpace(p.cfg.WebhookID) == "" {
		return false, errors.New("paypal webhook id is not configured")
	}

	request := map[string]interface{}{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        p.cfg.WebhookID,
		"webhook_event":     json.RawMessage(body),
	}

	responseBody, err := p.postJSON(ctx, "/v1/notifications/verify-webhook-signature", request)
	if err != nil {
		return false, err
	}

	var payload struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(responseBody, &payload); err != nil {
		return false, err
	}

	return payload.VerificationStatus == "SUCCESS", nil
}

func (p *PayPalGateway) postJSON(ctx context.Context, path string, request interface{}) ([]byte, error) {
	token, err := p.accessTokenFor(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader = strings.NewReader("{}")
	if request != nil {
		encoded, err := json.Marshal(request)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("PayPal-Request-Id", uuid.NewString())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		if isInstrumentDeclined(body) {
			return nil, fmt.Errorf("%w: path=%s status=%d", ErrInstrumentDeclined, path, resp.StatusCode)
		}
		return nil, fmt.Errorf("paypal request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(body))
	}

	return body, nil
}

func (p *PayPalGateway) accessTokenFor(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.tokenExpiry.Add(-time.Minute)) {
		return p.accessToken, nil
	}

	if strings.TrimSpace(p.cfg.ClientID) == "" || strings.TrimSpace(p.cfg.Secret) == "" {
		return "", errors.New("paypal credentials are not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.cfg.ClientID, p.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("paypal token request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", errors.New("paypal access token missing in response")
	}

	p.accessToken = payload.AccessToken
	p.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)

	return p.accessToken, nil
}

func isInstrumentDeclined(body []byte) bool {
	var payload struct {
		Details []struct {
			Issue string `json:"issue"`
		} `json:"details"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return false
	}
	for _, detail := range payload.Details {
		if detail.Issue == "INSTRUMENT_DECLINED" {
			return true
		}
	}
	return false
}

func truncateNote(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
