// Package payment предоставляет клиент платёжного шлюза Razorpay.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client инкапсулирует HTTP-взаимодействие с Razorpay и проверку подписей.
type Client struct {
	keyID         string
	keySecret     string
	webhookSecret string
	sandbox       bool
	httpClient    *resty.Client
}

// OrderRequest описывает параметры создания заказа в шлюзе.
// Сумма указывается в минимальных единицах валюты.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// GatewayOrder описывает заказ, созданный в шлюзе.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// NewClient создаёт клиент шлюза. При sandbox = true несовпадение подписи
// платежа не считается ошибкой проверки.
func NewClient(baseURL, keyID, keySecret, webhookSecret string, sandbox bool) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10 * time.Second).
		SetBasicAuth(keyID, keySecret)

	return &Client{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		sandbox:       sandbox,
		httpClient:    httpClient,
	}
}

// KeyID возвращает публичный ключ шлюза для платёжного виджета.
func (c *Client) KeyID() string {
	return c.keyID
}

// Sandbox сообщает, работает ли клиент в тестовом режиме.
func (c *Client) Sandbox() bool {
	return c.sandbox
}

// CreateOrder создаёт заказ в шлюзе.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error) {
	if c == nil || c.keyID == "" {
		return nil, fmt.Errorf("payment client not configured")
	}

	var (
		order GatewayOrder
		gwErr gatewayError
	)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&order).
		SetError(&gwErr).
		Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	if resp.IsError() {
		if gwErr.Error.Description != "" {
			return nil, fmt.Errorf("gateway error %d: %s", resp.StatusCode(), gwErr.Error.Description)
		}
		return nil, fmt.Errorf("gateway error: unexpected status %d", resp.StatusCode())
	}

	if order.ID == "" {
		return nil, fmt.Errorf("gateway returned empty order id")
	}

	return &order, nil
}

// VerifyPaymentSignature проверяет подпись платежа: HMAC-SHA256 от строки
// "{orderID}|{paymentID}" на секретном ключе шлюза.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	expected := signHMAC([]byte(orderID+"|"+paymentID), []byte(c.keySecret))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature проверяет подпись вебхука по его сырому телу.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) bool {
	if c.webhookSecret == "" {
		return false
	}
	expected := signHMAC(payload, []byte(c.webhookSecret))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func signHMAC(payload, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
