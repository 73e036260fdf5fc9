// Package encoding provides the wire codec for paygate payment headers.
// Proofs and receipts travel as base64-encoded JSON in the X-PAYMENT and
// X-PAYMENT-RESPONSE headers.
//
// Decoding checks structure only: a missing header, an undecodable value,
// and a structurally incomplete proof each fail with a distinct sentinel
// so the gate can reject cheap malformed input before paying for a
// facilitator call. Cryptographic validity is the facilitator's job.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/x402-labs/paygate"
)

// EncodeProof converts a PaymentProof to a base64-encoded JSON string for
// the X-PAYMENT header.
func EncodeProof(proof paygate.PaymentProof) (string, error) {
	data, err := json.Marshal(proof)
	if err != nil {
		return "", fmt.Errorf("failed to marshal proof: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeProof converts an X-PAYMENT header value into a PaymentProof.
// Returns ErrMissingProof for an empty value, ErrMalformedProof when the
// value is not valid base64 or JSON, and ErrIncompleteProof when required
// fields are absent.
func DecodeProof(headerValue string) (*paygate.PaymentProof, error) {
	if headerValue == "" {
		return nil, paygate.ErrMissingProof
	}

	decoded, err := base64.StdEncoding.DecodeString(headerValue)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", paygate.ErrMalformedProof, err)
	}

	var proof paygate.PaymentProof
	if err := json.Unmarshal(decoded, &proof); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", paygate.ErrMalformedProof, err)
	}

	if err := proof.Complete(); err != nil {
		return nil, err
	}
	return &proof, nil
}

// EncodeReceipt converts a SettlementReceipt to a base64-encoded JSON
// string for the X-PAYMENT-RESPONSE header.
func EncodeReceipt(receipt paygate.SettlementReceipt) (string, error) {
	data, err := json.Marshal(receipt)
	if err != nil {
		return "", fmt.Errorf("failed to marshal receipt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeReceipt converts an X-PAYMENT-RESPONSE header value into a
// SettlementReceipt.
func DecodeReceipt(headerValue string) (paygate.SettlementReceipt, error) {
	var receipt paygate.SettlementReceipt

	decoded, err := base64.StdEncoding.DecodeString(headerValue)
	if err != nil {
		return receipt, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(decoded, &receipt); err != nil {
		return receipt, fmt.Errorf("failed to unmarshal receipt: %w", err)
	}
	return receipt, nil
}

// Codec is the header codec as a paygate.ProofCodec.
type Codec struct{}

// Decode implements paygate.ProofCodec.
func (Codec) Decode(headerValue string) (*paygate.PaymentProof, error) {
	return DecodeProof(headerValue)
}

// Encode implements paygate.ProofCodec.
func (Codec) Encode(proof paygate.PaymentProof) (string, error) {
	return EncodeProof(proof)
}
