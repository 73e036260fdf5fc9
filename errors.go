package paygate

import "errors"

// Sentinel errors for payment gating operations.
var (
	// ErrRequirementNotFound indicates no payment requirement exists for a resource.
	ErrRequirementNotFound = errors.New("paygate: no payment requirement for resource")

	// ErrMissingProof indicates the X-PAYMENT header is absent.
	ErrMissingProof = errors.New("paygate: missing payment proof header")

	// ErrMalformedProof indicates the X-PAYMENT header is not valid base64-encoded JSON.
	ErrMalformedProof = errors.New("paygate: malformed payment proof header")

	// ErrIncompleteProof indicates a decoded proof is missing required fields.
	ErrIncompleteProof = errors.New("paygate: incomplete payment proof")

	// ErrPaymentRejected indicates the facilitator refused the payment.
	ErrPaymentRejected = errors.New("paygate: payment rejected")

	// ErrFacilitatorUnavailable indicates the facilitator service could not be reached.
	ErrFacilitatorUnavailable = errors.New("paygate: facilitator service unavailable")

	// ErrVerificationFailed indicates the facilitator returned an unusable verify response.
	ErrVerificationFailed = errors.New("paygate: payment verification failed")

	// ErrSettlementFailed indicates the facilitator returned an unusable settle response.
	ErrSettlementFailed = errors.New("paygate: payment settlement failed")

	// ErrInvalidPrice indicates a price string is empty, malformed, or negative.
	ErrInvalidPrice = errors.New("paygate: invalid price")

	// ErrInvalidNetwork indicates an unknown settlement network.
	ErrInvalidNetwork = errors.New("paygate: invalid or unsupported network")

	// ErrInvalidKey indicates an invalid signing key.
	ErrInvalidKey = errors.New("paygate: invalid private key")

	// ErrNoValidSigner indicates no signer can satisfy the advertised terms.
	ErrNoValidSigner = errors.New("paygate: no signer can satisfy payment requirement")

	// ErrSigningFailed indicates proof construction failed.
	ErrSigningFailed = errors.New("paygate: payment proof signing failed")
)

// DenialCode identifies why the gate denied a request, for programmatic
// handling and for keeping "payment not yet supplied" distinguishable from
// "payment infrastructure broken".
type DenialCode string

const (
	// CodeNotFound indicates no requirement exists for the resource (404).
	CodeNotFound DenialCode = "NOT_FOUND"

	// CodeNeedsPayment indicates no proof was supplied (402, expected/normal).
	CodeNeedsPayment DenialCode = "NEEDS_PAYMENT"

	// CodeMalformedProof indicates the proof header failed to decode (400).
	CodeMalformedProof DenialCode = "MALFORMED_PROOF"

	// CodePaymentRejected indicates the facilitator refused the proof (402).
	CodePaymentRejected DenialCode = "PAYMENT_REJECTED"

	// CodeFacilitatorUnavailable indicates the facilitator could not be
	// reached or timed out (503). Never conflated with a rejection.
	CodeFacilitatorUnavailable DenialCode = "FACILITATOR_UNAVAILABLE"

	// CodeDownstreamFailure indicates the resource handler failed after the
	// gate passed. Propagated as-is, never masked as a payment problem.
	CodeDownstreamFailure DenialCode = "DOWNSTREAM_FAILURE"
)

// GateError provides structured error information for a denied request.
type GateError struct {
	// Code is the denial code for programmatic handling.
	Code DenialCode

	// Message is the human-readable error message.
	Message string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *GateError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *GateError) Unwrap() error {
	return e.Err
}

// NewGateError creates a GateError with the given code and message.
func NewGateError(code DenialCode, message string, err error) *GateError {
	return &GateError{Code: code, Message: message, Err: err}
}

// RejectionError is returned by a Verifier when the facilitator examined
// the proof and refused it. Distinct from transport failures so the gate
// answers 402 rather than 5xx.
type RejectionError struct {
	// Reason is the facilitator's rejection reason code.
	Reason string
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	if e.Reason == "" {
		return ErrPaymentRejected.Error()
	}
	return ErrPaymentRejected.Error() + ": " + e.Reason
}

// Unwrap lets errors.Is match ErrPaymentRejected.
func (e *RejectionError) Unwrap() error {
	return ErrPaymentRejected
}
