// Package facilitator defines the external facilitator boundary.
//
// A facilitator verifies a payment proof against the advertised
// requirement and settles it on the network, returning a settlement
// receipt. The gate treats it as one logical call; the http package
// provides a client speaking the two-endpoint verify/settle wire
// protocol.
package facilitator

import (
	"github.com/x402-labs/paygate"
)

// Interface is the facilitator contract the gate depends on. It is the
// same contract as paygate.Verifier; test doubles can simulate
// accept/reject/timeout without network or cryptographic dependencies.
type Interface = paygate.Verifier

// VerifyRequest is the request payload sent to POST /verify.
type VerifyRequest struct {
	// PaymentProof is the client-supplied proof being checked.
	PaymentProof paygate.PaymentProof `json:"paymentProof"`

	// PaymentRequirement is the advertised terms the proof must satisfy.
	PaymentRequirement paygate.PaymentRequirement `json:"paymentRequirement"`
}

// VerifyResult is the response of the verify operation.
type VerifyResult struct {
	// IsValid indicates whether the payment proof is valid.
	IsValid bool `json:"isValid"`

	// InvalidReason provides a short error code if the proof is invalid.
	InvalidReason string `json:"invalidReason,omitempty"`

	// Payer is the address that made the payment, when known.
	Payer string `json:"payer,omitempty"`
}

// SettleRequest is the request payload sent to POST /settle.
type SettleRequest struct {
	// PaymentProof is the verified proof to settle.
	PaymentProof paygate.PaymentProof `json:"paymentProof"`

	// PaymentRequirement is the advertised terms the proof satisfies.
	PaymentRequirement paygate.PaymentRequirement `json:"paymentRequirement"`
}

// SettleResult is the response of the settle operation.
type SettleResult struct {
	// Success indicates whether the payment was settled.
	Success bool `json:"success"`

	// ErrorReason provides a short error code if settlement failed.
	ErrorReason string `json:"errorReason,omitempty"`

	// Transaction is the settlement transaction reference.
	Transaction string `json:"transaction,omitempty"`

	// Network is the network the payment was settled on.
	Network string `json:"network,omitempty"`

	// Payer is the address that made the payment, when known.
	Payer string `json:"payer,omitempty"`
}
