// Package gateway builds Amwal Pay redirect payloads and parses its callbacks.
// Nothing here performs network I/O; the browser posts the payload to the gateway.
package gateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/router-for-me/BizCardCloud/internal/apperr"
	"github.com/router-for-me/BizCardCloud/internal/config"
	"github.com/router-for-me/BizCardCloud/internal/models"
	"github.com/shopspring/decimal"
)

// Name is recorded on every transaction created through this client.
const Name = "amwal"

const processPath = "/payment/process"

// Payload is the form posted to the gateway's process endpoint.
type Payload struct {
	MerchantID  string `json:"MerchantId"`
	TerminalID  string `json:"TerminalId"`
	Amount      string `json:"Amount"`
	Currency    string `json:"Currency"`
	OrderID     string `json:"OrderId"`
	CustomerID  string `json:"CustomerId"`
	Description string `json:"Description"`
	CallbackURL string `json:"CallbackUrl"`
	ReturnURL   string `json:"ReturnUrl"`
	Signature   string `json:"Signature"`
}

// FormValues renders the payload as hidden form fields.
func (p Payload) FormValues() url.Values {
	v := url.Values{}
	v.Set("MerchantId", p.MerchantID)
	v.Set("TerminalId", p.TerminalID)
	v.Set("Amount", p.Amount)
	v.Set("Currency", p.Currency)
	v.Set("OrderId", p.OrderID)
	v.Set("CustomerId", p.CustomerID)
	v.Set("Description", p.Description)
	v.Set("CallbackUrl", p.CallbackURL)
	v.Set("ReturnUrl", p.ReturnURL)
	v.Set("Signature", p.Signature)
	return v
}

// PaymentRequest is what the admin UI needs to redirect the browser.
type PaymentRequest struct {
	OrderID   string  `json:"order_id"`
	ActionURL string  `json:"form_action"`
	Payload   Payload `json:"payment_data"`
}

// Client signs payment requests with the merchant credentials.
type Client struct {
	cfg config.PaymentConfig
	now func() time.Time

	mu       sync.Mutex
	lastUnix int64
}

// NewClient returns a client for cfg. Missing credentials surface on first use.
func NewClient(cfg config.PaymentConfig) *Client {
	if strings.TrimSpace(cfg.Currency) == "" {
		cfg.Currency = "USD"
	}
	if strings.TrimSpace(cfg.OrderPrefix) == "" {
		cfg.OrderPrefix = "SUB"
	}
	if strings.TrimSpace(cfg.APIURL) == "" {
		cfg.APIURL = "https://backend.sa.amwal.tech"
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Client{cfg: cfg, now: time.Now}
}

// Configured reports whether merchant credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.MerchantID != "" && c.cfg.TerminalID != "" && c.cfg.SecureKey != ""
}

// Currency returns the default currency.
func (c *Client) Currency() string { return c.cfg.Currency }

// SecureKey returns the signing secret, empty when unset.
func (c *Client) SecureKey() string { return c.cfg.SecureKey }

// MerchantID returns the configured merchant id.
func (c *Client) MerchantID() string { return c.cfg.MerchantID }

// TerminalID returns the configured terminal id.
func (c *Client) TerminalID() string { return c.cfg.TerminalID }

// BuildPaymentRequest prepares a signed payload for one subscription attempt.
func (c *Client) BuildPaymentRequest(amount decimal.Decimal, currency, tenantID, planID string, cycle models.BillingCycle) (*PaymentRequest, error) {
	const op = "gateway: build payment request"
	if !c.Configured() {
		return nil, apperr.Configuration(apperr.CodeMissingCredentials, op,
			"payment gateway credentials are not configured; set merchant id, terminal id and secure key")
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation(op, "tenant id is required")
	}
	if amount.IsNegative() {
		return nil, apperr.Gateway(apperr.CodeInvalidPayload, op, "amount must not be negative")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = c.cfg.Currency
	}

	payload := Payload{
		MerchantID:  c.cfg.MerchantID,
		TerminalID:  c.cfg.TerminalID,
		Amount:      FormatAmount(amount),
		Currency:    currency,
		OrderID:     c.nextOrderID(tenantID),
		CustomerID:  tenantID,
		Description: fmt.Sprintf("Subscription: %s (%s)", planID, cycle),
		CallbackURL: c.cfg.CallbackURL,
		ReturnURL:   c.cfg.ReturnURL,
	}
	payload.Signature = Sign(payload.MerchantID, payload.TerminalID, payload.OrderID, payload.Amount, payload.Currency, c.cfg.SecureKey)

	return &PaymentRequest{
		OrderID:   payload.OrderID,
		ActionURL: c.cfg.APIURL + processPath,
		Payload:   payload,
	}, nil
}

// nextOrderID returns <prefix>_<tenant>_<unix>. Attempts within the same second get
// strictly increasing stamps so order ids never repeat within a process.
func (c *Client) nextOrderID(tenantID string) string {
	c.mu.Lock()
	stamp := c.now().Unix()
	if stamp <= c.lastUnix {
		stamp = c.lastUnix + 1
	}
	c.lastUnix = stamp
	c.mu.Unlock()
	return fmt.Sprintf("%s_%s_%d", c.cfg.OrderPrefix, tenantID, stamp)
}

// FormatAmount renders amount with exactly two decimals.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// Sign returns the lowercase hex SHA-256 of the concatenated fields and secret.
func Sign(merchantID, terminalID, orderID, amount, currency, secureKey string) string {
	sum := sha256.Sum256([]byte(merchantID + terminalID + orderID + amount + currency + secureKey))
	return hex.EncodeToString(sum[:])
}

// Verify compares a received signature against the expected one, ignoring hex case.
func Verify(expected, received string) bool {
	a := []byte(strings.ToLower(strings.TrimSpace(expected)))
	b := []byte(strings.ToLower(strings.TrimSpace(received)))
	return len(a) > 0 && subtle.ConstantTimeCompare(a, b) == 1
}

// MapStatus converts a gateway status word to a transaction status.
// Unrecognized words keep the transaction pending.
func MapStatus(raw string) models.TransactionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "completed":
		return models.TransactionCompleted
	case "failed", "cancelled":
		return models.TransactionFailed
	default:
		return models.TransactionPending
	}
}
