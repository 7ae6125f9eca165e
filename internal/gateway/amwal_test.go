package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/config"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/shopspring/decimal"
)

func testClient() *Client {
	c := NewClient(config.PaymentConfig{
		MerchantID:  "M1",
		TerminalID:  "T1",
		SecureKey:   "secret",
		APIURL:      "https://pay.example.test/",
		CallbackURL: "https://cards.example.test/v0/payments/amwal/callback",
		ReturnURL:   "https://cards.example.test/billing/return",
	})
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func TestBuildPaymentRequest(t *testing.T) {
	c := testClient()
	req, err := c.BuildPaymentRequest(decimal.RequireFromString("99"), "", "tenant-1", models.PlanPro, models.BillingCycleYearly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.OrderID != "SUB_tenant-1_1700000000" {
		t.Fatalf("unexpected order id %q", req.OrderID)
	}
	if req.ActionURL != "https://pay.example.test/payment/process" {
		t.Fatalf("unexpected action url %q", req.ActionURL)
	}
	p := req.Payload
	if p.Amount != "99.00" || p.Currency != "USD" {
		t.Fatalf("expected amount 99.00 USD, got %s %s", p.Amount, p.Currency)
	}
	if p.Description != "Subscription: pro (yearly)" {
		t.Fatalf("unexpected description %q", p.Description)
	}
	sum := sha256.Sum256([]byte("M1T1SUB_tenant-1_170000000099.00USDsecret"))
	if p.Signature != hex.EncodeToString(sum[:]) {
		t.Fatalf("unexpected signature %q", p.Signature)
	}
	form := p.FormValues()
	if form.Get("OrderId") != req.OrderID || form.Get("Signature") != p.Signature {
		t.Fatalf("form values do not mirror payload: %v", form)
	}
}

func TestOrderIDsUniqueWithinSecond(t *testing.T) {
	c := testClient()
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		req, err := c.BuildPaymentRequest(decimal.NewFromInt(1), "USD", "tenant-1", models.PlanPro, models.BillingCycleMonthly)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[req.OrderID] {
			t.Fatalf("duplicate order id %q", req.OrderID)
		}
		seen[req.OrderID] = true
	}
}

func TestBuildPaymentRequestRequiresCredentials(t *testing.T) {
	c := NewClient(config.PaymentConfig{MerchantID: "M1"})
	_, err := c.BuildPaymentRequest(decimal.NewFromInt(10), "USD", "tenant-1", models.PlanPro, models.BillingCycleMonthly)
	if apperr.KindOf(err) != apperr.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if apperr.CodeOf(err) != apperr.CodeMissingCredentials {
		t.Fatalf("expected code %s, got %s", apperr.CodeMissingCredentials, apperr.CodeOf(err))
	}
}

func TestVerify(t *testing.T) {
	sig := Sign("M1", "T1", "SUB_x_1", "9.99", "USD", "secret")
	if !Verify(sig, strings.ToUpper(sig)) {
		t.Fatalf("expected case-insensitive match")
	}
	if Verify(sig, "deadbeef") {
		t.Fatalf("expected mismatch")
	}
	if Verify("", "") {
		t.Fatalf("empty signatures must not verify")
	}
}

func TestMapStatus(t *testing.T) {
	cases := map[string]models.TransactionStatus{
		"Success":   models.TransactionCompleted,
		"COMPLETED": models.TransactionCompleted,
		"failed":    models.TransactionFailed,
		"Cancelled": models.TransactionFailed,
		"Pending":   models.TransactionPending,
		"":          models.TransactionPending,
	}
	for raw, want := range cases {
		if got := MapStatus(raw); got != want {
			t.Fatalf("status %q: expected %s, got %s", raw, want, got)
		}
	}
}

func TestParseCallbackJSON(t *testing.T) {
	body := []byte(`{"OrderId":"SUB_t_1","Status":"Success","TransactionId":"ext-9","Amount":9.99,"Currency":"USD"}`)
	header := http.Header{}
	header.Set("X-Amwal-Signature", "abc")
	cb, err := ParseCallback("application/json", body, header)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.OrderID != "SUB_t_1" || cb.Status != "Success" || cb.TransactionID != "ext-9" {
		t.Fatalf("unexpected callback %+v", cb)
	}
	if cb.Amount != "9.99" {
		t.Fatalf("expected literal amount 9.99, got %q", cb.Amount)
	}
	if cb.Signature != "abc" {
		t.Fatalf("expected header signature, got %q", cb.Signature)
	}
	if len(cb.Raw) != 5 {
		t.Fatalf("expected raw fields kept, got %v", cb.Raw)
	}
}

func TestParseCallbackForm(t *testing.T) {
	body := []byte("order_id=SUB_t_2&status=failed&amount=10.00&signature=xyz")
	cb, err := ParseCallback("application/x-www-form-urlencoded", body, http.Header{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.OrderID != "SUB_t_2" || cb.Status != "failed" || cb.Amount != "10.00" || cb.Signature != "xyz" {
		t.Fatalf("unexpected callback %+v", cb)
	}
	if cb.TransactionID != "SUB_t_2" {
		t.Fatalf("expected transaction id to default to order id, got %q", cb.TransactionID)
	}

	expected := cb.ExpectedSignature("M1", "T1", "", "secret")
	if expected != Sign("M1", "T1", "SUB_t_2", "10.00", "USD", "secret") {
		t.Fatalf("expected signature to fall back to configured ids and USD")
	}
}

func TestParseCallbackRejectsGarbage(t *testing.T) {
	if _, err := ParseCallback("application/json", []byte(`{"OrderId":`), http.Header{}); apperr.KindOf(err) != apperr.KindGateway {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if _, err := ParseCallback("", nil, http.Header{}); apperr.KindOf(err) != apperr.KindGateway {
		t.Fatalf("expected gateway error for empty body, got %v", err)
	}
}
