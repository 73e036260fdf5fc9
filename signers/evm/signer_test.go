package evm

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/x402-labs/paygate"
	"github.com/x402-labs/paygate/internal/eip3009"
)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := NewSignerFromKey("base-sepolia", key)
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}
	return signer
}

func testRequirement() *paygate.PaymentRequirement {
	return &paygate.PaymentRequirement{
		Resource:          "/weather",
		Price:             "0.01",
		Network:           "base-sepolia",
		PayTo:             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		Asset:             "USDC",
		MaxTimeoutSeconds: 60,
	}
}

func TestNewSigner(t *testing.T) {
	key, _ := crypto.GenerateKey()
	keyHex := hex.EncodeToString(crypto.FromECDSA(key))

	signer, err := NewSigner("base-sepolia", keyHex)
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	if signer.Address() != crypto.PubkeyToAddress(key.PublicKey) {
		t.Error("derived address mismatch")
	}

	// The 0x prefix is accepted too.
	if _, err := NewSigner("base-sepolia", "0x"+keyHex); err != nil {
		t.Errorf("prefixed key rejected: %v", err)
	}

	if _, err := NewSigner("base-sepolia", "not-a-key"); !errors.Is(err, paygate.ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := NewSigner("solana", keyHex); !errors.Is(err, paygate.ErrInvalidNetwork) {
		t.Errorf("expected ErrInvalidNetwork for non-EVM network, got %v", err)
	}
	if _, err := NewSigner("dogechain", keyHex); err == nil {
		t.Error("unknown network accepted")
	}
}

func TestCanSign(t *testing.T) {
	signer := testSigner(t)
	req := testRequirement()

	if !signer.CanSign(req) {
		t.Error("signer should handle USDC on its network")
	}

	byAddress := *req
	byAddress.Asset = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	if !signer.CanSign(&byAddress) {
		t.Error("signer should handle USDC named by contract address")
	}

	otherNetwork := *req
	otherNetwork.Network = "base"
	if signer.CanSign(&otherNetwork) {
		t.Error("signer should refuse other networks")
	}

	otherAsset := *req
	otherAsset.Asset = "DAI"
	if signer.CanSign(&otherAsset) {
		t.Error("signer should refuse other assets")
	}

	if signer.CanSign(nil) {
		t.Error("nil requirement accepted")
	}
}

func TestSign(t *testing.T) {
	signer := testSigner(t)
	req := testRequirement()

	proof, err := signer.Sign(req)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if proof.Resource != req.Resource || proof.Network != req.Network || proof.Amount != req.Price {
		t.Errorf("proof terms mismatch: %+v", proof)
	}
	if proof.Scheme != "exact" {
		t.Errorf("unexpected scheme: %q", proof.Scheme)
	}

	var payload paygate.EVMPayload
	if err := json.Unmarshal(proof.Payload, &payload); err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	if payload.Authorization.From != signer.Address().Hex() {
		t.Errorf("authorization from mismatch: %s", payload.Authorization.From)
	}
	if payload.Authorization.To != common.HexToAddress(req.PayTo).Hex() {
		t.Errorf("authorization to mismatch: %s", payload.Authorization.To)
	}
	// 0.01 USDC with 6 decimals.
	if payload.Authorization.Value != "10000" {
		t.Errorf("authorization value mismatch: %s", payload.Authorization.Value)
	}

	// 65-byte signature, hex encoded with a 0x prefix.
	if !strings.HasPrefix(payload.Signature, "0x") || len(payload.Signature) != 132 {
		t.Errorf("unexpected signature encoding: %q", payload.Signature)
	}

	verifySignature(t, signer, payload)
}

// verifySignature recovers the signing address from the payload and checks
// it matches the signer.
func verifySignature(t *testing.T, signer *Signer, payload paygate.EVMPayload) {
	t.Helper()

	cfg, err := paygate.LookupNetwork("base-sepolia")
	if err != nil {
		t.Fatalf("lookup network: %v", err)
	}

	value, ok := new(big.Int).SetString(payload.Authorization.Value, 10)
	if !ok {
		t.Fatalf("bad value: %s", payload.Authorization.Value)
	}
	validAfter, _ := new(big.Int).SetString(payload.Authorization.ValidAfter, 10)
	validBefore, _ := new(big.Int).SetString(payload.Authorization.ValidBefore, 10)

	auth := &eip3009.Authorization{
		From:        common.HexToAddress(payload.Authorization.From),
		To:          common.HexToAddress(payload.Authorization.To),
		Value:       value,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
		Nonce:       [32]byte(common.HexToHash(payload.Authorization.Nonce)),
	}
	domain := eip3009.Domain{
		Token:   common.HexToAddress(cfg.USDCAddress),
		ChainID: big.NewInt(cfg.ChainID),
		Name:    cfg.USDCName,
		Version: cfg.USDCVersion,
	}

	digest, err := eip3009.Digest(auth, domain)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(payload.Signature, "0x"))
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	sig[64] -= 27

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("recover public key: %v", err)
	}
	if crypto.PubkeyToAddress(*pub) != signer.Address() {
		t.Error("recovered signer address mismatch")
	}
}

func TestSignRejectsBadRecipient(t *testing.T) {
	signer := testSigner(t)
	req := testRequirement()
	req.PayTo = "not-an-address"

	if _, err := signer.Sign(req); !errors.Is(err, paygate.ErrSigningFailed) {
		t.Errorf("expected ErrSigningFailed, got %v", err)
	}
}

func TestSignRejectsUnsatisfiableTerms(t *testing.T) {
	signer := testSigner(t)
	req := testRequirement()
	req.Network = "base"

	if _, err := signer.Sign(req); !errors.Is(err, paygate.ErrNoValidSigner) {
		t.Errorf("expected ErrNoValidSigner, got %v", err)
	}

	tooPrecise := testRequirement()
	tooPrecise.Price = "0.0000001"
	if _, err := signer.Sign(tooPrecise); !errors.Is(err, paygate.ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice for sub-atomic price, got %v", err)
	}
}
