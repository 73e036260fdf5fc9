// Package evm implements a client-side proof signer for EVM networks. It
// produces EIP-3009 transferWithAuthorization payloads signed with a
// local private key.
package evm

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/x402-labs/paygate"
	"github.com/x402-labs/paygate/internal/eip3009"
)

// Signer signs payment proofs for one EVM network with USDC.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	cfg        paygate.NetworkConfig
}

// NewSigner creates a signer for the given network from a hex-encoded
// private key. The network must be a configured EVM network.
func NewSigner(network, privateKeyHex string) (*Signer, error) {
	cfg, err := paygate.LookupNetwork(network)
	if err != nil {
		return nil, err
	}
	if cfg.Type != paygate.NetworkTypeEVM {
		return nil, fmt.Errorf("%w: %s is not an EVM network", paygate.ErrInvalidNetwork, network)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, paygate.ErrInvalidKey
	}

	return &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		cfg:        cfg,
	}, nil
}

// NewSignerFromKey creates a signer from an in-memory private key.
func NewSignerFromKey(network string, key *ecdsa.PrivateKey) (*Signer, error) {
	cfg, err := paygate.LookupNetwork(network)
	if err != nil {
		return nil, err
	}
	if cfg.Type != paygate.NetworkTypeEVM {
		return nil, fmt.Errorf("%w: %s is not an EVM network", paygate.ErrInvalidNetwork, network)
	}
	return &Signer{
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		cfg:        cfg,
	}, nil
}

// Network implements paygate.ProofSigner.
func (s *Signer) Network() string {
	return s.cfg.Name
}

// Address returns the payer address derived from the signing key.
func (s *Signer) Address() common.Address {
	return s.address
}

// CanSign implements paygate.ProofSigner. The signer handles requirements
// on its network denominated in USDC, whether the asset is named by
// symbol or by contract address.
func (s *Signer) CanSign(req *paygate.PaymentRequirement) bool {
	if req == nil || req.Network != s.cfg.Name {
		return false
	}
	return strings.EqualFold(req.Asset, "USDC") || strings.EqualFold(req.Asset, s.cfg.USDCAddress)
}

// Sign implements paygate.ProofSigner.
func (s *Signer) Sign(req *paygate.PaymentRequirement) (*paygate.PaymentProof, error) {
	if !s.CanSign(req) {
		return nil, paygate.ErrNoValidSigner
	}

	value, err := paygate.PriceToAtomic(req.Price, s.cfg.Decimals)
	if err != nil {
		return nil, err
	}

	if !common.IsHexAddress(req.PayTo) {
		return nil, fmt.Errorf("%w: invalid recipient address %s", paygate.ErrSigningFailed, req.PayTo)
	}

	auth, err := eip3009.NewAuthorization(s.address, common.HexToAddress(req.PayTo), value, req.MaxTimeoutSeconds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paygate.ErrSigningFailed, err)
	}

	domain := eip3009.Domain{
		Token:   common.HexToAddress(s.cfg.USDCAddress),
		ChainID: big.NewInt(s.cfg.ChainID),
		Name:    s.cfg.USDCName,
		Version: s.cfg.USDCVersion,
	}
	signature, err := eip3009.Sign(s.privateKey, auth, domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paygate.ErrSigningFailed, err)
	}

	payload, err := json.Marshal(paygate.EVMPayload{
		Signature: signature,
		Authorization: paygate.EVMAuthorization{
			From:        auth.From.Hex(),
			To:          auth.To.Hex(),
			Value:       auth.Value.String(),
			ValidAfter:  auth.ValidAfter.String(),
			ValidBefore: auth.ValidBefore.String(),
			Nonce:       common.BytesToHash(auth.Nonce[:]).Hex(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paygate.ErrSigningFailed, err)
	}

	return &paygate.PaymentProof{
		Resource: req.Resource,
		Network:  req.Network,
		Amount:   req.Price,
		Scheme:   "exact",
		Payload:  payload,
	}, nil
}
