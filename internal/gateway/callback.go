package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/router-for-me/BizCardCloud/internal/apperr"
)

// Signature headers checked in order.
var signatureHeaders = []string{"X-Signature", "X-Amwal-Signature"}

// Callback is a parsed gateway notification.
type Callback struct {
	OrderID       string
	Status        string
	TransactionID string
	Amount        string
	Currency      string
	MerchantID    string
	TerminalID    string
	Signature     string
	// Raw keeps every received field for the audit trail.
	Raw map[string]any
}

// ExpectedSignature recomputes the signature over the callback fields. Merchant,
// terminal and currency fall back to the given defaults when the gateway omitted them.
func (cb Callback) ExpectedSignature(merchantID, terminalID, currency, secureKey string) string {
	return Sign(
		firstNonEmpty(cb.MerchantID, merchantID),
		firstNonEmpty(cb.TerminalID, terminalID),
		cb.OrderID,
		cb.Amount,
		firstNonEmpty(cb.Currency, currency, "USD"),
		secureKey,
	)
}

// ParseCallback decodes a JSON or form encoded callback body. Keys are accepted in
// PascalCase or snake_case. A signature header wins over a Signature body field.
func ParseCallback(contentType string, body []byte, header http.Header) (Callback, error) {
	const op = "gateway: parse callback"
	raw, err := decodeBody(contentType, body)
	if err != nil {
		return Callback{}, apperr.Wrap(err, apperr.KindGateway, apperr.CodeInvalidPayload, op)
	}
	cb := Callback{
		OrderID:       pick(raw, "OrderId", "order_id"),
		Status:        pick(raw, "Status", "status"),
		TransactionID: pick(raw, "TransactionId", "transaction_id"),
		Amount:        pick(raw, "Amount", "amount"),
		Currency:      pick(raw, "Currency", "currency"),
		MerchantID:    pick(raw, "MerchantId", "merchant_id"),
		TerminalID:    pick(raw, "TerminalId", "terminal_id"),
		Signature:     pick(raw, "Signature", "signature"),
		Raw:           raw,
	}
	for _, name := range signatureHeaders {
		if v := strings.TrimSpace(header.Get(name)); v != "" {
			cb.Signature = v
			break
		}
	}
	if cb.TransactionID == "" {
		cb.TransactionID = cb.OrderID
	}
	return cb, nil
}

func decodeBody(contentType string, body []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, apperr.Gateway(apperr.CodeInvalidPayload, "gateway: parse callback", "empty callback body")
	}
	if strings.Contains(strings.ToLower(contentType), "json") || trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		raw := map[string]any{}
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		return raw, nil
	}
	values, err := url.ParseQuery(string(trimmed))
	if err != nil {
		return nil, err
	}
	raw := make(map[string]any, len(values))
	for key := range values {
		raw[key] = values.Get(key)
	}
	return raw, nil
}

func pick(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch typed := v.(type) {
		case string:
			s = typed
		case json.Number:
			s = typed.String()
		case bool:
			if typed {
				s = "true"
			} else {
				s = "false"
			}
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
