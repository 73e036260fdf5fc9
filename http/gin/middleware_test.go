package gin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/x402-labs/paygate"
	"github.com/x402-labs/paygate/encoding"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedLookup struct {
	req *paygate.PaymentRequirement
}

func (l fixedLookup) Lookup(path, method string) (*paygate.PaymentRequirement, error) {
	if l.req == nil || l.req.Path != path {
		return nil, paygate.ErrRequirementNotFound
	}
	r := *l.req
	return &r, nil
}

type fixedVerifier struct {
	receipt *paygate.SettlementReceipt
	err     error
}

func (v fixedVerifier) Verify(ctx context.Context, req paygate.PaymentRequirement, proof paygate.PaymentProof) (*paygate.SettlementReceipt, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.receipt, nil
}

func gatedRequirement() *paygate.PaymentRequirement {
	return &paygate.PaymentRequirement{
		Resource:          "/weather",
		Path:              "/weather",
		Method:            "GET",
		Price:             "0.01",
		Network:           "base-sepolia",
		PayTo:             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		Asset:             "USDC",
		MaxTimeoutSeconds: 60,
	}
}

func gatedRouter(req *paygate.PaymentRequirement, verifier paygate.Verifier) *gin.Engine {
	router := gin.New()
	router.Use(NewPaymentMiddleware(Config{
		Registry:    fixedLookup{req: req},
		Facilitator: verifier,
	}))
	router.GET("/weather", func(c *gin.Context) {
		receipt := ReceiptFromContext(c)
		c.JSON(http.StatusOK, gin.H{
			"forecast": "sunny",
			"paid":     receipt != nil,
		})
	})
	return router
}

func TestGinMiddlewareChallenge(t *testing.T) {
	router := gatedRouter(gatedRequirement(), fixedVerifier{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/weather", nil))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}

	var body paygate.RequirementBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("challenge body is not valid JSON: %v", err)
	}
	if body.Price != "0.01" || body.Network != "base-sepolia" {
		t.Errorf("unexpected challenge body: %+v", body)
	}
}

func TestGinMiddlewareGranted(t *testing.T) {
	req := gatedRequirement()
	router := gatedRouter(req, fixedVerifier{receipt: &paygate.SettlementReceipt{
		Transaction: "0xdead",
		Network:     req.Network,
	}})

	header, err := encoding.EncodeProof(paygate.PaymentProof{
		Resource: req.Resource,
		Network:  req.Network,
		Amount:   req.Price,
		Payload:  []byte(`{"signature":"0xabc"}`),
	})
	if err != nil {
		t.Fatalf("encode proof: %v", err)
	}

	httpReq := httptest.NewRequest(http.MethodGet, "/weather", nil)
	httpReq.Header.Set(paygate.ProofHeader, header)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httpReq)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(paygate.ReceiptHeader) == "" {
		t.Error("missing receipt header")
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if body["paid"] != true {
		t.Error("handler did not see the receipt in the gin context")
	}
}

func TestGinMiddlewareRejectionAborts(t *testing.T) {
	req := gatedRequirement()
	router := gatedRouter(req, fixedVerifier{err: &paygate.RejectionError{Reason: "expired"}})

	header, err := encoding.EncodeProof(paygate.PaymentProof{
		Resource: req.Resource,
		Network:  req.Network,
		Amount:   req.Price,
		Payload:  []byte(`{"signature":"0xabc"}`),
	})
	if err != nil {
		t.Fatalf("encode proof: %v", err)
	}

	httpReq := httptest.NewRequest(http.MethodGet, "/weather", nil)
	httpReq.Header.Set(paygate.ProofHeader, header)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httpReq)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}

	var body paygate.RequirementBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("rejection body is not valid JSON: %v", err)
	}
	if body.Error != "expired" {
		t.Errorf("rejection reason lost: %q", body.Error)
	}
	if body.Price != req.Price {
		t.Errorf("terms changed on rejection: %+v", body)
	}
}

func TestGinMiddlewareUnknownResource(t *testing.T) {
	router := gatedRouter(gatedRequirement(), fixedVerifier{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/weather", nil))
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("sanity: expected 402 for known path, got %d", rec.Code)
	}

	router = gin.New()
	router.Use(NewPaymentMiddleware(Config{
		Registry:    fixedLookup{},
		Facilitator: fixedVerifier{},
	}))
	router.GET("/other", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unpriced path, got %d", rec.Code)
	}
}
