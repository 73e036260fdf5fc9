// Package helpers provides internal HTTP utilities shared by the paygate
// middleware and its framework adapters.
package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/x402-labs/paygate"
	"github.com/x402-labs/paygate/encoding"
)

// ErrNilReceipt is returned when a nil receipt is passed to AddReceiptHeader.
var ErrNilReceipt = errors.New("receipt is nil")

// SendPaymentRequired writes a 402 response carrying the requirement body.
func SendPaymentRequired(w http.ResponseWriter, req paygate.PaymentRequirement, errMsg string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	if err := json.NewEncoder(w).Encode(paygate.BuildRequirementBody(req, errMsg)); err != nil {
		return fmt.Errorf("encoding payment required response: %w", err)
	}
	return nil
}

// SendError writes a JSON error body with the given status.
func SendError(w http.ResponseWriter, status int, code paygate.DenialCode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(code),
		"error": msg,
	})
}

// AddReceiptHeader attaches the encoded settlement receipt to the response.
func AddReceiptHeader(w http.ResponseWriter, receipt *paygate.SettlementReceipt) error {
	if receipt == nil {
		return fmt.Errorf("AddReceiptHeader: %w", ErrNilReceipt)
	}
	encoded, err := encoding.EncodeReceipt(*receipt)
	if err != nil {
		return fmt.Errorf("AddReceiptHeader: %w", err)
	}
	w.Header().Set(paygate.ReceiptHeader, encoded)
	return nil
}

// ParseRequirementBody extracts the advertised terms from a 402 response.
func ParseRequirementBody(resp *http.Response) (*paygate.RequirementBody, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("missing response or body")
	}

	var body paygate.RequirementBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding payment requirement: %w", err)
	}
	if body.Price == "" || body.Network == "" {
		return nil, errors.New("incomplete payment requirement in 402 response")
	}
	return &body, nil
}

// ParseReceiptHeader decodes an X-PAYMENT-RESPONSE header value. Returns
// nil when the header is empty or undecodable.
func ParseReceiptHeader(headerValue string) *paygate.SettlementReceipt {
	if headerValue == "" {
		return nil
	}
	receipt, err := encoding.DecodeReceipt(headerValue)
	if err != nil {
		return nil
	}
	return &receipt
}
