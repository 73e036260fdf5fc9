// Package validation provides structural validation for paygate data.
// It validates prices, networks, addresses, requirement documents, and
// proof structure. Nothing here checks signatures or balances.
package validation

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"github.com/x402-labs/paygate"
)

// ValidatePrice validates a decimal price string. Zero is allowed; free
// endpoints are expressed as price "0" or an empty price.
func ValidatePrice(price string) error {
	if price == "" {
		return nil
	}
	_, err := paygate.ParsePrice(price)
	return err
}

// ValidateNetwork validates a settlement network identifier against the
// configured network table.
func ValidateNetwork(network string) error {
	if network == "" {
		return fmt.Errorf("%w: network cannot be empty", paygate.ErrInvalidNetwork)
	}
	_, err := paygate.LookupNetwork(network)
	return err
}

// ValidateAddress validates an address for the given network's format:
// hex EVM addresses for EVM chains, base58 public keys for Solana.
func ValidateAddress(address, network string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	networkType, err := paygate.NetworkTypeOf(network)
	if err != nil {
		return fmt.Errorf("cannot validate address: %w", err)
	}

	switch networkType {
	case paygate.NetworkTypeEVM:
		if !common.IsHexAddress(address) {
			return fmt.Errorf("invalid EVM address: %s", address)
		}
		return nil

	case paygate.NetworkTypeSVM:
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return fmt.Errorf("invalid Solana address %s: %w", address, err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported network type for address validation: %d", networkType)
	}
}

// ValidateRequirement performs full structural validation of one payment
// requirement. Free requirements only need a resource; priced ones need
// valid network, recipient, and asset terms.
func ValidateRequirement(req paygate.PaymentRequirement) error {
	if req.Resource == "" {
		return fmt.Errorf("invalid requirement: resource cannot be empty")
	}

	if err := ValidatePrice(req.Price); err != nil {
		return fmt.Errorf("invalid requirement %s: %w", req.Resource, err)
	}

	if req.IsFree() {
		return nil
	}

	if err := ValidateNetwork(req.Network); err != nil {
		return fmt.Errorf("invalid requirement %s: %w", req.Resource, err)
	}

	if err := ValidateAddress(req.PayTo, req.Network); err != nil {
		return fmt.Errorf("invalid requirement %s: payTo %w", req.Resource, err)
	}

	if req.Asset == "" {
		return fmt.Errorf("invalid requirement %s: asset cannot be empty", req.Resource)
	}

	if req.MaxTimeoutSeconds < 0 {
		return fmt.Errorf("invalid requirement %s: timeout cannot be negative: %d", req.Resource, req.MaxTimeoutSeconds)
	}

	return nil
}

// ValidateDoc validates a whole requirement document.
func ValidateDoc(doc paygate.RequirementDoc) error {
	if doc.Resource == "" {
		return fmt.Errorf("invalid document: resource cannot be empty")
	}
	if len(doc.Endpoints) == 0 {
		return fmt.Errorf("invalid document %s: no endpoints", doc.Resource)
	}
	for i, ep := range doc.Endpoints {
		if err := ValidateRequirement(ep); err != nil {
			return fmt.Errorf("invalid document %s: endpoints[%d] %w", doc.Resource, i, err)
		}
	}
	return nil
}

// ValidateProof performs structural validation of a decoded proof beyond
// the codec's completeness check: the referenced network must be known
// and the amount parseable.
func ValidateProof(proof paygate.PaymentProof) error {
	if err := proof.Complete(); err != nil {
		return err
	}
	if err := ValidateNetwork(proof.Network); err != nil {
		return fmt.Errorf("%w: %v", paygate.ErrIncompleteProof, err)
	}
	if _, err := paygate.ParsePrice(proof.Amount); err != nil {
		return fmt.Errorf("%w: %v", paygate.ErrIncompleteProof, err)
	}
	return nil
}
