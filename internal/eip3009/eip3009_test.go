package eip3009

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func testDomain() Domain {
	return Domain{
		Token:   common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		ChainID: big.NewInt(84532),
		Name:    "USDC",
		Version: "2",
	}
}

func TestNewAuthorization(t *testing.T) {
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	auth, err := NewAuthorization(from, to, big.NewInt(10000), 60)
	if err != nil {
		t.Fatalf("NewAuthorization failed: %v", err)
	}

	now := time.Now().Unix()
	if auth.ValidAfter.Int64() > now {
		t.Error("validAfter should be backdated")
	}
	if auth.ValidBefore.Int64() < now+50 || auth.ValidBefore.Int64() > now+70 {
		t.Errorf("validBefore out of range: %d (now %d)", auth.ValidBefore.Int64(), now)
	}
	if auth.Nonce == [32]byte{} {
		t.Error("nonce not populated")
	}

	other, err := NewAuthorization(from, to, big.NewInt(10000), 60)
	if err != nil {
		t.Fatalf("NewAuthorization failed: %v", err)
	}
	if auth.Nonce == other.Nonce {
		t.Error("nonces must be unique")
	}
}

func TestDigestDeterministic(t *testing.T) {
	auth := &Authorization{
		From:        common.HexToAddress("0x1111111111111111111111111111111111111111"),
		To:          common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Value:       big.NewInt(10000),
		ValidAfter:  big.NewInt(1700000000),
		ValidBefore: big.NewInt(1700000060),
	}
	domain := testDomain()

	first, err := Digest(auth, domain)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	second, err := Digest(auth, domain)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("digest is not deterministic")
	}
	if len(first) != 32 {
		t.Errorf("expected 32-byte digest, got %d", len(first))
	}

	// A different domain must change the digest.
	otherDomain := domain
	otherDomain.ChainID = big.NewInt(8453)
	other, err := Digest(auth, otherDomain)
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	if bytes.Equal(first, other) {
		t.Error("digest should bind the domain")
	}
}

func TestSignRecoverable(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	auth, err := NewAuthorization(
		crypto.PubkeyToAddress(key.PublicKey),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
		big.NewInt(10000), 60)
	if err != nil {
		t.Fatalf("NewAuthorization failed: %v", err)
	}

	signature, err := Sign(key, auth, testDomain())
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if len(signature) != 132 {
		t.Fatalf("unexpected signature length: %d", len(signature))
	}

	sig := common.FromHex(signature)
	if sig[64] != 27 && sig[64] != 28 {
		t.Errorf("expected legacy recovery id, got %d", sig[64])
	}
	sig[64] -= 27

	digest, err := Digest(auth, testDomain())
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("recover public key: %v", err)
	}
	if crypto.PubkeyToAddress(*pub) != auth.From {
		t.Error("recovered address mismatch")
	}
}
