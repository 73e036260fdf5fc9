// Package http provides HTTP server and client bindings for the paygate
// protocol: the payment-gating middleware, the facilitator client, and a
// RoundTripper that answers 402 challenges on the client side.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/x402-labs/paygate"
	"github.com/x402-labs/paygate/facilitator"
)

// AuthorizationProvider returns an Authorization header value for a
// facilitator request. Useful for dynamic tokens (e.g. short-lived JWTs);
// it is called on every request and must be safe for concurrent use.
type AuthorizationProvider func(*http.Request) string

// FacilitatorClient reaches an operator-configured facilitator service
// over HTTP. It implements paygate.Verifier by collapsing the wire
// protocol's verify and settle steps into the gate's single logical call.
//
// The client never retries: a failed verification may need a regenerated
// proof, so retry policy belongs to the paying client.
type FacilitatorClient struct {
	// BaseURL is the facilitator endpoint (e.g. "https://facilitator.example.com").
	BaseURL string

	// Client is the HTTP client to use. If nil, http.DefaultClient is used.
	// Per-call deadlines come from the requirement's maxTimeoutSeconds via
	// the context the gate passes in.
	Client *http.Client

	// VerifyOnly skips the settle step. The receipt then carries no
	// transaction reference.
	VerifyOnly bool

	// Authorization is a static Authorization header value.
	Authorization string

	// AuthorizationProvider supplies a dynamic Authorization header value.
	// Takes precedence over Authorization when set.
	AuthorizationProvider AuthorizationProvider
}

// Compile-time check that the client satisfies the gate's contract.
var _ paygate.Verifier = (*FacilitatorClient)(nil)

func (c *FacilitatorClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func (c *FacilitatorClient) setAuthorization(req *http.Request) {
	var value string
	if c.AuthorizationProvider != nil {
		value = c.AuthorizationProvider(req)
	} else if c.Authorization != "" {
		value = c.Authorization
	}
	if value != "" {
		req.Header.Set("Authorization", value)
	}
}

// Verify implements paygate.Verifier. A connectivity failure on either
// wire call wraps paygate.ErrFacilitatorUnavailable; a refusal by the
// facilitator is returned as *paygate.RejectionError. The two are never
// conflated.
func (c *FacilitatorClient) Verify(ctx context.Context, requirement paygate.PaymentRequirement, proof paygate.PaymentProof) (*paygate.SettlementReceipt, error) {
	var verifyResult facilitator.VerifyResult
	req := facilitator.VerifyRequest{PaymentProof: proof, PaymentRequirement: requirement}
	if err := c.post(ctx, "/verify", req, &verifyResult, paygate.ErrVerificationFailed); err != nil {
		return nil, err
	}

	if !verifyResult.IsValid {
		return nil, &paygate.RejectionError{Reason: verifyResult.InvalidReason}
	}

	if c.VerifyOnly {
		return &paygate.SettlementReceipt{
			Network: requirement.Network,
			Payer:   verifyResult.Payer,
		}, nil
	}

	var settleResult facilitator.SettleResult
	settleReq := facilitator.SettleRequest{PaymentProof: proof, PaymentRequirement: requirement}
	if err := c.post(ctx, "/settle", settleReq, &settleResult, paygate.ErrSettlementFailed); err != nil {
		return nil, err
	}

	if !settleResult.Success {
		return nil, &paygate.RejectionError{Reason: settleResult.ErrorReason}
	}

	network := settleResult.Network
	if network == "" {
		network = requirement.Network
	}
	payer := settleResult.Payer
	if payer == "" {
		payer = verifyResult.Payer
	}
	return &paygate.SettlementReceipt{
		Transaction: settleResult.Transaction,
		Network:     network,
		Payer:       payer,
	}, nil
}

func (c *FacilitatorClient) post(ctx context.Context, path string, body, out any, baseErr error) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuthorization(httpReq)

	httpResp, err := c.httpClient().Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", paygate.ErrFacilitatorUnavailable, ctxErr)
		}
		return fmt.Errorf("%w: %v", paygate.ErrFacilitatorUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return parseErrorResponse(httpResp, baseErr)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", baseErr, err)
	}
	return nil
}

// parseErrorResponse extracts error details from a non-200 HTTP response.
func parseErrorResponse(resp *http.Response, baseErr error) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errBody map[string]any
	if err := json.Unmarshal(bodyBytes, &errBody); err == nil {
		for _, key := range []string{"invalidReason", "errorReason", "error"} {
			if reason, ok := errBody[key].(string); ok && reason != "" {
				return fmt.Errorf("%w: status %d, reason: %s", baseErr, resp.StatusCode, reason)
			}
		}
	}

	if len(bodyBytes) > 0 && len(bodyBytes) < 500 {
		return fmt.Errorf("%w: status %d, body: %s", baseErr, resp.StatusCode, string(bodyBytes))
	}
	return fmt.Errorf("%w: status %d", baseErr, resp.StatusCode)
}
