package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateOrder_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/orders" {
			t.Fatalf("path = %s, want /orders", r.URL.Path)
		}

		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_live_key" || pass != "secret" {
			t.Fatalf("basic auth = %q/%q/%v, want key/secret", user, pass, ok)
		}

		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Amount != 100000 {
			t.Fatalf("amount = %d, want 100000", req.Amount)
		}
		if req.Currency != "INR" {
			t.Fatalf("currency = %q, want INR", req.Currency)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(GatewayOrder{
			ID:       "order_ABC123",
			Amount:   req.Amount,
			Currency: req.Currency,
			Receipt:  req.Receipt,
			Status:   "created",
		}); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "rzp_live_key", "secret", "", false)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	order, err := client.CreateOrder(ctx, OrderRequest{
		Amount:   100000,
		Currency: "INR",
		Receipt:  "rcpt_1",
		Notes:    map[string]string{"customer_name": "Test"},
	})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if order.ID != "order_ABC123" {
		t.Fatalf("order id = %q, want order_ABC123", order.ID)
	}
	if order.Amount != 100000 {
		t.Fatalf("order amount = %d, want 100000", order.Amount)
	}
}

func TestCreateOrder_GatewayError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount must be at least 100"}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "rzp_live_key", "secret", "", false)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.CreateOrder(ctx, OrderRequest{Amount: 1, Currency: "INR", Receipt: "rcpt_2"})
	if err == nil {
		t.Fatalf("expected error for gateway 400")
	}
}

func TestCreateOrder_NotConfigured(t *testing.T) {
	client := NewClient("http://localhost:0", "", "", "", false)

	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "INR"})
	if err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}

func TestVerifyPaymentSignature(t *testing.T) {
	client := NewClient("http://localhost:0", "rzp_live_key", "secret", "", false)

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("order_1|pay_1"))
	valid := hex.EncodeToString(mac.Sum(nil))

	if !client.VerifyPaymentSignature("order_1", "pay_1", valid) {
		t.Fatalf("valid signature rejected")
	}
	if client.VerifyPaymentSignature("order_1", "pay_1", "tampered") {
		t.Fatalf("tampered signature accepted")
	}
	if client.VerifyPaymentSignature("order_2", "pay_1", valid) {
		t.Fatalf("signature for another order accepted")
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	client := NewClient("http://localhost:0", "rzp_live_key", "secret", "whsecret", false)

	payload := []byte(`{"event":"payment.captured"}`)

	mac := hmac.New(sha256.New, []byte("whsecret"))
	mac.Write(payload)
	valid := hex.EncodeToString(mac.Sum(nil))

	if !client.VerifyWebhookSignature(payload, valid) {
		t.Fatalf("valid webhook signature rejected")
	}
	if client.VerifyWebhookSignature(payload, "tampered") {
		t.Fatalf("tampered webhook signature accepted")
	}

	noSecret := NewClient("http://localhost:0", "rzp_live_key", "secret", "", false)
	if noSecret.VerifyWebhookSignature(payload, valid) {
		t.Fatalf("webhook signature accepted without configured secret")
	}
}
