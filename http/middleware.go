package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/x402-labs/paygate"
	"github.com/x402-labs/paygate/encoding"
	"github.com/x402-labs/paygate/http/internal/helpers"
)

// Config holds the configuration for the payment-gating middleware.
type Config struct {
	// Registry resolves endpoints to payment requirements.
	Registry paygate.RequirementLookup

	// FacilitatorURL is the facilitator endpoint. Ignored when Facilitator
	// is set.
	FacilitatorURL string

	// Facilitator overrides the default HTTP facilitator client. Useful
	// for tests and alternate facilitator transports.
	Facilitator paygate.Verifier

	// VerifyOnly skips settlement (only verifies payments).
	VerifyOnly bool

	// FacilitatorAuthorization is a static Authorization header value for
	// the facilitator (e.g. "Bearer api-key").
	FacilitatorAuthorization string

	// FacilitatorAuthorizationProvider supplies a dynamic Authorization
	// header value. Takes precedence over FacilitatorAuthorization.
	FacilitatorAuthorizationProvider AuthorizationProvider

	// Recorder receives payment events. Optional.
	Recorder *paygate.Recorder

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// ReceiptContextKey is the context key holding the settlement receipt for
// handlers running behind the gate. Nil for free resources.
const ReceiptContextKey = contextKey("paygate_receipt")

func (c Config) verifier() paygate.Verifier {
	if c.Facilitator != nil {
		return c.Facilitator
	}
	return &FacilitatorClient{
		BaseURL:               c.FacilitatorURL,
		VerifyOnly:            c.VerifyOnly,
		Authorization:         c.FacilitatorAuthorization,
		AuthorizationProvider: c.FacilitatorAuthorizationProvider,
	}
}

// NewPaymentMiddleware creates the payment-gating middleware. Each
// request runs one independent gate pass; the downstream handler is
// invoked only on grant, with the settlement receipt attached both to the
// response header and the request context. Failures inside the downstream
// handler propagate untouched: the gate does not undo a granted payment.
func NewPaymentMiddleware(config Config) func(http.Handler) http.Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gate := &paygate.Gate{
		Registry:    config.Registry,
		Facilitator: config.verifier(),
		Codec:       encoding.Codec{},
		Recorder:    config.Recorder,
		Logger:      logger,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			outcome := gate.Admit(r.Context(), r.URL.Path, r.Method, r.Header.Get(paygate.ProofHeader))

			if !outcome.Granted() {
				writeDenied(w, r, outcome, logger)
				return
			}

			if outcome.Receipt != nil {
				if err := helpers.AddReceiptHeader(w, outcome.Receipt); err != nil {
					logger.Warn("failed to attach receipt header", "error", err)
				}
			}
			ctx := context.WithValue(r.Context(), ReceiptContextKey, outcome.Receipt)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeDenied(w http.ResponseWriter, r *http.Request, outcome paygate.Outcome, logger *slog.Logger) {
	// An abandoned request gets no response; the in-flight verification
	// was already cancelled through the request context.
	if r.Context().Err() != nil {
		return
	}

	switch outcome.Code {
	case paygate.CodeNeedsPayment:
		if err := helpers.SendPaymentRequired(w, *outcome.Requirement, ""); err != nil {
			logger.Error("failed to send payment required response", "error", err)
		}
	case paygate.CodePaymentRejected:
		if err := helpers.SendPaymentRequired(w, *outcome.Requirement, outcome.Reason); err != nil {
			logger.Error("failed to send payment required response", "error", err)
		}
	default:
		helpers.SendError(w, outcome.Status, outcome.Code, outcome.Reason)
	}
}

// ReceiptFromContext extracts the settlement receipt for the current
// request. Returns nil for free resources or outside the middleware.
func ReceiptFromContext(ctx context.Context) *paygate.SettlementReceipt {
	value := ctx.Value(ReceiptContextKey)
	if value == nil {
		return nil
	}
	receipt, ok := value.(*paygate.SettlementReceipt)
	if !ok {
		return nil
	}
	return receipt
}
