// Package gin provides Gin-compatible middleware for paygate payment
// gating. It is a thin adapter: all gating decisions come from the core
// Gate shared with the stdlib http package.
package gin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/x402-labs/paygate"
	"github.com/x402-labs/paygate/encoding"
	paygatehttp "github.com/x402-labs/paygate/http"
	"github.com/x402-labs/paygate/http/internal/helpers"
)

// Config is an alias for the stdlib middleware config.
type Config = paygatehttp.Config

// ReceiptContextKey is the gin context key holding the settlement receipt.
const ReceiptContextKey = "paygate_receipt"

// NewPaymentMiddleware creates a Gin payment-gating middleware.
//
// The middleware:
//   - looks up the payment requirement for the request path and method
//   - answers 402 with the requirement body when no proof is supplied
//   - answers 400 for malformed proof headers without contacting the facilitator
//   - verifies and settles valid proofs through the facilitator
//   - on grant, attaches the X-PAYMENT-RESPONSE receipt header, stores the
//     receipt via c.Set, and calls c.Next()
//   - on denial, aborts the handler chain
func NewPaymentMiddleware(config Config) gin.HandlerFunc {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gate := &paygate.Gate{
		Registry:    config.Registry,
		Facilitator: configVerifier(config),
		Codec:       encoding.Codec{},
		Recorder:    config.Recorder,
		Logger:      logger,
	}

	return func(c *gin.Context) {
		outcome := gate.Admit(c.Request.Context(), c.Request.URL.Path, c.Request.Method,
			c.GetHeader(paygate.ProofHeader))

		if !outcome.Granted() {
			abortDenied(c, outcome)
			return
		}

		if outcome.Receipt != nil {
			if err := helpers.AddReceiptHeader(c.Writer, outcome.Receipt); err != nil {
				logger.Warn("failed to attach receipt header", "error", err)
			}
		}

		c.Set(ReceiptContextKey, outcome.Receipt)
		ctx := context.WithValue(c.Request.Context(), paygatehttp.ReceiptContextKey, outcome.Receipt)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func configVerifier(config Config) paygate.Verifier {
	if config.Facilitator != nil {
		return config.Facilitator
	}
	return &paygatehttp.FacilitatorClient{
		BaseURL:               config.FacilitatorURL,
		VerifyOnly:            config.VerifyOnly,
		Authorization:         config.FacilitatorAuthorization,
		AuthorizationProvider: config.FacilitatorAuthorizationProvider,
	}
}

func abortDenied(c *gin.Context, outcome paygate.Outcome) {
	switch outcome.Code {
	case paygate.CodeNeedsPayment:
		c.AbortWithStatusJSON(http.StatusPaymentRequired, paygate.BuildRequirementBody(*outcome.Requirement, ""))
	case paygate.CodePaymentRejected:
		c.AbortWithStatusJSON(http.StatusPaymentRequired, paygate.BuildRequirementBody(*outcome.Requirement, outcome.Reason))
	default:
		c.AbortWithStatusJSON(outcome.Status, gin.H{
			"code":  string(outcome.Code),
			"error": outcome.Reason,
		})
	}
}

// ReceiptFromContext extracts the settlement receipt from the Gin context.
// Returns nil for free resources or when no payment was settled.
func ReceiptFromContext(c *gin.Context) *paygate.SettlementReceipt {
	value, exists := c.Get(ReceiptContextKey)
	if !exists {
		return nil
	}
	receipt, ok := value.(*paygate.SettlementReceipt)
	if !ok {
		return nil
	}
	return receipt
}
