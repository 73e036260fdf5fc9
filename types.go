// Package paygate implements the x402 pay-per-request gating protocol.
//
// A resource server advertises a price for each protected endpoint. A
// request without payment is answered with HTTP 402 and a structured
// payment requirement. The client constructs a signed payment proof,
// resubmits it in the X-PAYMENT header, and the gate releases the
// underlying resource only after an external facilitator service has
// verified and settled the proof. The settlement receipt is returned to
// the client in the X-PAYMENT-RESPONSE header.
//
// The root package holds the data contracts and the request state machine
// (Gate). Transport bindings live in the http and http/gin packages, the
// header codec in encoding, and requirement storage in registry.
package paygate

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/tidwall/gjson"
)

// Header names carrying payment data on the wire.
const (
	// ProofHeader is the request header carrying the encoded payment proof.
	ProofHeader = "X-PAYMENT"

	// ReceiptHeader is the response header carrying the encoded settlement receipt.
	ReceiptHeader = "X-PAYMENT-RESPONSE"
)

// PaymentRequirement is the advertised terms for accessing one protected
// endpoint. Every protected endpoint has exactly one active requirement at
// a time; the terms echoed in a 402 challenge stay stable until the
// registry snapshot is swapped.
type PaymentRequirement struct {
	// Resource identifies the protected resource the endpoint belongs to.
	Resource string `json:"resource"`

	// Path is the endpoint path. Empty when the requirement covers the
	// resource as a whole (the degenerate single-endpoint case).
	Path string `json:"path,omitempty"`

	// Method is the HTTP method the requirement applies to. Empty matches
	// any method.
	Method string `json:"method,omitempty"`

	// Price is the amount due per request as a decimal string (e.g. "0.01").
	// An empty or zero price marks the endpoint free.
	Price string `json:"price"`

	// Network is the settlement network identifier (e.g. "base-sepolia").
	Network string `json:"network"`

	// PayTo is the recipient address in the network's native format.
	PayTo string `json:"payTo"`

	// Asset is the token or currency identifier (e.g. "USDC").
	Asset string `json:"asset"`

	// MaxTimeoutSeconds bounds how long the server waits for settlement
	// confirmation before treating the proof as stale.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`

	// Description is optional human-readable context.
	Description string `json:"description,omitempty"`
}

// IsFree reports whether the requirement carries no price. Free endpoints
// bypass the payment sub-protocol entirely.
func (r PaymentRequirement) IsFree() bool {
	if r.Price == "" {
		return true
	}
	v := new(big.Rat)
	if _, ok := v.SetString(r.Price); !ok {
		return false
	}
	return v.Sign() == 0
}

// RequirementDoc is one configuration document from the external store.
// The canonical shape is the multi-endpoint envelope; a flat document
// describing a single endpoint decodes as the degenerate one-endpoint
// case.
type RequirementDoc struct {
	// Resource identifies the document (and the resource it protects).
	Resource string `json:"resource"`

	// Upstream is the base URL requests are proxied to after the gate
	// passes. Optional; documents may instead point at a local file.
	Upstream string `json:"upstream,omitempty"`

	// File is a local artifact streamed to the client after the gate
	// passes. Optional.
	File string `json:"file,omitempty"`

	// Endpoints lists the priced endpoints under this resource.
	Endpoints []PaymentRequirement `json:"endpoints"`
}

// UnmarshalJSON decodes either document shape. A document with an
// "endpoints" array is the envelope; anything else is read as a flat
// single-endpoint requirement.
func (d *RequirementDoc) UnmarshalJSON(data []byte) error {
	if gjson.GetBytes(data, "endpoints").IsArray() {
		type envelope RequirementDoc
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return err
		}
		*d = RequirementDoc(env)
	} else {
		var flat struct {
			PaymentRequirement
			Upstream string `json:"upstream"`
			File     string `json:"file"`
		}
		if err := json.Unmarshal(data, &flat); err != nil {
			return err
		}
		d.Resource = flat.Resource
		d.Upstream = flat.Upstream
		d.File = flat.File
		d.Endpoints = []PaymentRequirement{flat.PaymentRequirement}
	}

	for i := range d.Endpoints {
		if d.Endpoints[i].Resource == "" {
			d.Endpoints[i].Resource = d.Resource
		}
	}
	return nil
}

// PaymentProof is the client-supplied artifact carried in the X-PAYMENT
// header. The gate checks structure and terms only; the signed Payload is
// opaque to the core and interpreted by the facilitator.
type PaymentProof struct {
	// Resource is the resource the proof pays for.
	Resource string `json:"resource"`

	// Network is the settlement network the proof targets.
	Network string `json:"network"`

	// Amount is the decimal amount the proof authorizes.
	Amount string `json:"amount"`

	// Scheme is the payment scheme identifier (e.g. "exact").
	Scheme string `json:"scheme,omitempty"`

	// Payload is the blockchain-specific signed authorization artifact.
	Payload json.RawMessage `json:"payload"`
}

// Complete reports whether the proof carries every structurally required
// field. It does not check cryptographic validity.
func (p PaymentProof) Complete() error {
	switch {
	case p.Resource == "":
		return fmt.Errorf("%w: missing resource", ErrIncompleteProof)
	case p.Network == "":
		return fmt.Errorf("%w: missing network", ErrIncompleteProof)
	case p.Amount == "":
		return fmt.Errorf("%w: missing amount", ErrIncompleteProof)
	case len(p.Payload) == 0 || string(p.Payload) == "null":
		return fmt.Errorf("%w: missing payload", ErrIncompleteProof)
	}
	return nil
}

// SettlementReceipt confirms a settled payment. It is produced by the
// facilitator and forwarded to the client in the X-PAYMENT-RESPONSE
// header; the core does not persist it.
type SettlementReceipt struct {
	// Transaction is the settlement transaction reference.
	Transaction string `json:"transaction"`

	// Network is the network the payment was settled on.
	Network string `json:"network"`

	// Payer is the address that made the payment, when known.
	Payer string `json:"payer,omitempty"`
}

// EVMPayload is the signed authorization artifact produced by the EVM
// proof signer. It travels inside PaymentProof.Payload.
type EVMPayload struct {
	// Signature is the hex-encoded ECDSA signature.
	Signature string `json:"signature"`

	// Authorization contains the EIP-3009 transferWithAuthorization parameters.
	Authorization EVMAuthorization `json:"authorization"`
}

// EVMAuthorization contains EIP-3009 transferWithAuthorization parameters.
type EVMAuthorization struct {
	// From is the payer's address.
	From string `json:"from"`

	// To is the recipient's address.
	To string `json:"to"`

	// Value is the payment amount in atomic units.
	Value string `json:"value"`

	// ValidAfter is the unix timestamp after which the authorization is valid.
	ValidAfter string `json:"validAfter"`

	// ValidBefore is the unix timestamp before which the authorization is valid.
	ValidBefore string `json:"validBefore"`

	// Nonce is a unique 32-byte hex string to prevent replay attacks.
	Nonce string `json:"nonce"`
}

// ParsePrice parses a decimal price string. Returns ErrInvalidPrice if the
// string is empty, malformed, or negative.
func ParsePrice(price string) (*big.Rat, error) {
	if price == "" {
		return nil, fmt.Errorf("%w: empty price", ErrInvalidPrice)
	}
	v := new(big.Rat)
	if _, ok := v.SetString(price); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrice, price)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative price %q", ErrInvalidPrice, price)
	}
	return v, nil
}

// SamePrice reports whether two decimal price strings denote the same
// value ("0.01" and "0.010" compare equal). Malformed inputs compare
// unequal.
func SamePrice(a, b string) bool {
	ra, err := ParsePrice(a)
	if err != nil {
		return false
	}
	rb, err := ParsePrice(b)
	if err != nil {
		return false
	}
	return ra.Cmp(rb) == 0
}

// PriceToAtomic converts a decimal price string to atomic units for a
// token with the given number of decimals. For example, "1.5" with 6
// decimals becomes 1500000. Returns ErrInvalidPrice if the price does not
// divide evenly into atomic units.
func PriceToAtomic(price string, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("%w: negative decimals", ErrInvalidPrice)
	}
	v, err := ParsePrice(price)
	if err != nil {
		return nil, err
	}

	scale := new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	v.Mul(v, scale)

	if v.Denom().Cmp(big.NewInt(1)) != 0 {
		return nil, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidPrice, price, decimals)
	}
	return new(big.Int).Set(v.Num()), nil
}

// AtomicToPrice converts atomic units back to a decimal price string.
func AtomicToPrice(value *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}
	rat := new(big.Rat).SetInt(value)
	scale := new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	rat.Quo(rat, scale)
	return rat.FloatString(decimals)
}
