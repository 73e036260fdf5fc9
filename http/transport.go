package http

import (
	"fmt"
	"net/http"

	"github.com/x402-labs/paygate"
	"github.com/x402-labs/paygate/encoding"
	"github.com/x402-labs/paygate/http/internal/helpers"
)

// PaymentCallback is invoked on payment lifecycle events during a
// transport round trip.
type PaymentCallback func(paygate.PaymentEvent)

// Transport is an http.RoundTripper that completes the x402 loop on the
// client side. It wraps a base RoundTripper; when a request comes back
// 402 it parses the advertised terms, asks a signer for a payment proof,
// and resubmits the request once with the proof attached.
type Transport struct {
	// Base is the underlying RoundTripper (typically http.DefaultTransport).
	Base http.RoundTripper

	// Signers is the list of available proof signers. The first signer
	// able to satisfy the advertised terms is used.
	Signers []paygate.ProofSigner

	// OnPaymentAttempt is called before the paid resubmission.
	OnPaymentAttempt PaymentCallback

	// OnPaymentSuccess is called when the paid resubmission succeeds.
	OnPaymentSuccess PaymentCallback

	// OnPaymentFailure is called when signing or the resubmission fails.
	OnPaymentFailure PaymentCallback
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// Resubmission needs a replayable body.
	if req.Body != nil && req.GetBody == nil {
		return nil, fmt.Errorf("paygate transport: request body is not replayable")
	}

	resp, err := base.RoundTrip(req.Clone(req.Context()))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	body, err := helpers.ParseRequirementBody(resp)
	closeErr := resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("paygate transport: %w", err)
	}
	if closeErr != nil {
		return nil, closeErr
	}
	requirement := body.Requirement()

	proof, err := t.sign(&requirement)
	if err != nil {
		t.notify(t.OnPaymentFailure, paygate.PaymentEventDenied, requirement)
		return nil, err
	}

	headerValue, err := encoding.EncodeProof(*proof)
	if err != nil {
		t.notify(t.OnPaymentFailure, paygate.PaymentEventDenied, requirement)
		return nil, fmt.Errorf("paygate transport: %w", err)
	}

	t.notify(t.OnPaymentAttempt, paygate.PaymentEventAttempt, requirement)

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		retryBody, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = retryBody
	}
	retry.Header.Set(paygate.ProofHeader, headerValue)

	paidResp, err := base.RoundTrip(retry)
	if err != nil {
		t.notify(t.OnPaymentFailure, paygate.PaymentEventDenied, requirement)
		return nil, err
	}

	if paidResp.StatusCode == http.StatusOK {
		t.notify(t.OnPaymentSuccess, paygate.PaymentEventGranted, requirement)
	} else {
		t.notify(t.OnPaymentFailure, paygate.PaymentEventDenied, requirement)
	}
	return paidResp, nil
}

func (t *Transport) sign(req *paygate.PaymentRequirement) (*paygate.PaymentProof, error) {
	for _, signer := range t.Signers {
		if signer.CanSign(req) {
			return signer.Sign(req)
		}
	}
	return nil, fmt.Errorf("%w: network %s, asset %s", paygate.ErrNoValidSigner, req.Network, req.Asset)
}

func (t *Transport) notify(cb PaymentCallback, eventType paygate.PaymentEventType, req paygate.PaymentRequirement) {
	if cb == nil {
		return
	}
	cb(paygate.PaymentEvent{
		Type:     eventType,
		Resource: req.Resource,
		Network:  req.Network,
		Amount:   req.Price,
	})
}

// NewClient returns an http.Client whose transport completes 402 payment
// loops with the given signers.
func NewClient(signers ...paygate.ProofSigner) *http.Client {
	return &http.Client{Transport: &Transport{Signers: signers}}
}

// Receipt extracts the settlement receipt from a paid response, or nil
// when the response carries none.
func Receipt(resp *http.Response) *paygate.SettlementReceipt {
	if resp == nil {
		return nil
	}
	return helpers.ParseReceiptHeader(resp.Header.Get(paygate.ReceiptHeader))
}
