package paygate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// GateState is the state of one request's pass through the gate. Each
// request is an independent run: Granted and Denied are terminal and no
// state is carried between a 402 challenge and the resubmission beyond
// the requirement terms being stable.
type GateState int

const (
	// StateAwaitingProof is the entry state: requirement found, proof not
	// yet inspected.
	StateAwaitingProof GateState = iota

	// StateVerifying means a structurally valid proof is with the facilitator.
	StateVerifying

	// StateGranted admits the request to the resource handler.
	StateGranted

	// StateDenied refuses the request; Outcome.Code says why.
	StateDenied
)

// String implements fmt.Stringer.
func (s GateState) String() string {
	switch s {
	case StateAwaitingProof:
		return "awaiting_proof"
	case StateVerifying:
		return "verifying"
	case StateGranted:
		return "granted"
	case StateDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// RequirementLookup resolves a path and method to the active payment
// requirement. Implementations must be safe for concurrent use; the
// registry package provides one backed by an atomically swapped snapshot.
type RequirementLookup interface {
	// Lookup returns the requirement for the endpoint, or
	// ErrRequirementNotFound when the resource is not priced at all.
	Lookup(path, method string) (*PaymentRequirement, error)
}

// Verifier is the facilitator boundary: one logical call that verifies
// and settles a proof against a requirement. Implementations return a
// *RejectionError when the facilitator refuses the proof and wrap
// ErrFacilitatorUnavailable on connectivity failures; the two must never
// be conflated.
type Verifier interface {
	Verify(ctx context.Context, requirement PaymentRequirement, proof PaymentProof) (*SettlementReceipt, error)
}

// ProofCodec decodes the X-PAYMENT header value into a structural proof
// and encodes one back. The encoding package provides the wire codec.
type ProofCodec interface {
	Decode(headerValue string) (*PaymentProof, error)
	Encode(proof PaymentProof) (string, error)
}

// ProofSigner creates signed payment proofs on the client side.
type ProofSigner interface {
	// Network returns the settlement network this signer operates on.
	Network() string

	// CanSign reports whether the signer can satisfy the requirement.
	CanSign(req *PaymentRequirement) bool

	// Sign creates a payment proof for the requirement.
	Sign(req *PaymentRequirement) (*PaymentProof, error)
}

// Outcome is the terminal result of one gate run.
type Outcome struct {
	// State is the terminal state (StateGranted or StateDenied).
	State GateState

	// Code classifies a denial. Empty when granted.
	Code DenialCode

	// Status is the HTTP status the transport should answer with.
	// http.StatusOK on grant.
	Status int

	// Reason is a human-readable denial reason.
	Reason string

	// AttemptID identifies this gate run in logs and events.
	AttemptID string

	// Requirement is the advertised terms, set whenever a requirement was
	// found. On a 402 the transport echoes it via BuildRequirementBody.
	Requirement *PaymentRequirement

	// Receipt is the settlement receipt on grant (nil for free resources).
	Receipt *SettlementReceipt

	// Err is the underlying error for denied outcomes.
	Err error
}

// Granted reports whether the request may reach the resource handler.
func (o Outcome) Granted() bool {
	return o.State == StateGranted
}

// Gate runs the payment-required negotiation for inbound requests. One
// Gate serves many concurrent requests; it holds no per-request state and
// its only suspension point is the facilitator call, which is bounded by
// the requirement's timeout and cancelled when the caller's context is.
type Gate struct {
	// Registry resolves endpoints to requirements.
	Registry RequirementLookup

	// Facilitator verifies and settles proofs.
	Facilitator Verifier

	// Codec decodes proof headers.
	Codec ProofCodec

	// Recorder receives payment events. Optional.
	Recorder *Recorder

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

func (g *Gate) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// Admit runs the state machine for one request. The transport layer is
// responsible for mapping the outcome to a response: invoking the
// downstream handler and attaching the receipt header on grant, or
// writing the status and requirement body on denial.
func (g *Gate) Admit(ctx context.Context, path, method, proofHeader string) Outcome {
	attemptID := uuid.NewString()
	logger := g.logger().With("attempt", attemptID, "path", path, "method", method)

	req, err := g.Registry.Lookup(path, method)
	if err != nil {
		// No requirement is a routing miss, not a payment problem. The
		// state machine is never entered.
		logger.Info("no payment requirement registered")
		return Outcome{
			State:     StateDenied,
			Code:      CodeNotFound,
			Status:    http.StatusNotFound,
			Reason:    "no payment requirement for resource",
			AttemptID: attemptID,
			Err:       err,
		}
	}

	g.record(PaymentEvent{Type: PaymentEventAttempt, Resource: req.Resource, Network: req.Network, Amount: req.Price})

	if req.IsFree() {
		// Free resources bypass the payment sub-protocol entirely.
		logger.Info("free resource, gate bypassed")
		out := Outcome{State: StateGranted, Status: http.StatusOK, AttemptID: attemptID, Requirement: req}
		g.record(PaymentEvent{Type: PaymentEventGranted, Resource: req.Resource, Network: req.Network})
		return out
	}

	if proofHeader == "" {
		logger.Info("no payment proof supplied, challenging")
		out := g.deny(req, attemptID, CodeNeedsPayment, http.StatusPaymentRequired, "payment required", ErrMissingProof)
		return out
	}

	proof, err := g.Codec.Decode(proofHeader)
	if err != nil {
		// Malformed input is a client protocol error, not "payment
		// required". The facilitator is never consulted.
		logger.Warn("payment proof failed to decode", "error", err)
		return g.deny(req, attemptID, CodeMalformedProof, http.StatusBadRequest, "invalid payment proof header", err)
	}

	// StateVerifying. A resubmission must match the previously advertised
	// terms; anything else is refused without paying for a facilitator
	// round trip.
	if proof.Resource != req.Resource || proof.Network != req.Network || !SamePrice(proof.Amount, req.Price) {
		logger.Warn("proof does not match advertised terms",
			"proofResource", proof.Resource, "proofNetwork", proof.Network, "proofAmount", proof.Amount)
		return g.deny(req, attemptID, CodePaymentRejected, http.StatusPaymentRequired,
			"payment proof does not match advertised terms", ErrPaymentRejected)
	}

	vctx := ctx
	if req.MaxTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, time.Duration(req.MaxTimeoutSeconds)*time.Second)
		defer cancel()
	}

	logger.Info("verifying payment with facilitator", "network", req.Network, "amount", req.Price)
	receipt, err := g.Facilitator.Verify(vctx, *req, *proof)
	if err != nil {
		return g.classifyVerifyError(logger, req, attemptID, err)
	}

	logger.Info("payment settled", "transaction", receipt.Transaction, "payer", receipt.Payer)
	g.record(PaymentEvent{Type: PaymentEventGranted, Resource: req.Resource, Network: req.Network, Amount: req.Price})
	return Outcome{
		State:       StateGranted,
		Status:      http.StatusOK,
		AttemptID:   attemptID,
		Requirement: req,
		Receipt:     receipt,
	}
}

func (g *Gate) classifyVerifyError(logger *slog.Logger, req *PaymentRequirement, attemptID string, err error) Outcome {
	var rejection *RejectionError
	switch {
	case errors.As(err, &rejection):
		// The facilitator said no: answer 402 with unchanged terms so the
		// client can retry with a corrected proof.
		logger.Warn("facilitator rejected payment", "reason", rejection.Reason)
		reason := rejection.Reason
		if reason == "" {
			reason = "payment rejected"
		}
		return g.deny(req, attemptID, CodePaymentRejected, http.StatusPaymentRequired, reason, err)

	case errors.Is(err, ErrFacilitatorUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		// Infrastructure failure. Telling a paying client to pay again
		// here would be wrong, so this is never surfaced as 402.
		logger.Error("facilitator unavailable", "error", err)
		return g.deny(req, attemptID, CodeFacilitatorUnavailable, http.StatusServiceUnavailable,
			"payment facilitator unavailable", err)

	default:
		logger.Error("facilitator verification failed", "error", err)
		return g.deny(req, attemptID, CodeFacilitatorUnavailable, http.StatusBadGateway,
			"payment verification failed", err)
	}
}

func (g *Gate) deny(req *PaymentRequirement, attemptID string, code DenialCode, status int, reason string, err error) Outcome {
	g.record(PaymentEvent{Type: PaymentEventDenied, Resource: req.Resource, Network: req.Network, Amount: req.Price, Code: code})
	return Outcome{
		State:       StateDenied,
		Code:        code,
		Status:      status,
		Reason:      reason,
		AttemptID:   attemptID,
		Requirement: req,
		Err:         NewGateError(code, reason, err),
	}
}

func (g *Gate) record(ev PaymentEvent) {
	if g.Recorder == nil {
		return
	}
	ev.Timestamp = time.Now()
	g.Recorder.Record(ev)
}
