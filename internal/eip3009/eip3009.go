// Package eip3009 builds and signs EIP-3009 transferWithAuthorization
// payloads, the authorization artifact carried inside EVM payment proofs.
package eip3009

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Authorization holds the transferWithAuthorization parameters.
type Authorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       [32]byte
}

// NewAuthorization creates an authorization valid from slightly before
// now until now plus timeoutSeconds, with a random replay nonce.
func NewAuthorization(from, to common.Address, value *big.Int, timeoutSeconds int) (*Authorization, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// validAfter is backdated a few seconds to absorb clock skew between
	// the client and the settlement network.
	now := time.Now().Unix()
	return &Authorization{
		From:        from,
		To:          to,
		Value:       value,
		ValidAfter:  big.NewInt(now - 10),
		ValidBefore: big.NewInt(now + int64(timeoutSeconds)),
		Nonce:       nonce,
	}, nil
}

// Domain identifies the EIP-712 domain of the token contract.
type Domain struct {
	Token   common.Address
	ChainID *big.Int
	Name    string
	Version string
}

func typedData(auth *Authorization, domain Domain) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.Token.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From.Hex(),
			"to":          auth.To.Hex(),
			"value":       (*math.HexOrDecimal256)(auth.Value),
			"validAfter":  (*math.HexOrDecimal256)(auth.ValidAfter),
			"validBefore": (*math.HexOrDecimal256)(auth.ValidBefore),
			"nonce":       common.BytesToHash(auth.Nonce[:]).Hex(),
		},
	}
}

// Digest computes the EIP-712 signing digest for the authorization.
func Digest(auth *Authorization, domain Domain) ([]byte, error) {
	data := typedData(auth, domain)

	domainSeparator, err := data.HashStruct("EIP712Domain", data.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	messageHash, err := data.HashStruct("TransferWithAuthorization", data.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	raw := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	return crypto.Keccak256(raw), nil
}

// Sign signs the authorization and returns the hex-encoded signature with
// the legacy 27/28 recovery id expected by token contracts.
func Sign(privateKey *ecdsa.PrivateKey, auth *Authorization, domain Domain) (string, error) {
	digest, err := Digest(auth, domain)
	if err != nil {
		return "", err
	}

	signature, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign authorization: %w", err)
	}
	signature[64] += 27

	return "0x" + hex.EncodeToString(signature), nil
}
