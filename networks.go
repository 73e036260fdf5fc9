package paygate

import (
	"fmt"
	"sync"
)

// NetworkType represents the settlement network's virtual machine type.
type NetworkType int

const (
	// NetworkTypeUnknown represents an unrecognized network.
	NetworkTypeUnknown NetworkType = iota
	// NetworkTypeEVM represents Ethereum Virtual Machine chains.
	NetworkTypeEVM
	// NetworkTypeSVM represents Solana Virtual Machine chains.
	NetworkTypeSVM
)

// NetworkConfig holds settlement parameters for one network. The set of
// networks is configuration, not protocol: operators may register
// additional networks at startup with RegisterNetwork.
type NetworkConfig struct {
	// Name is the network identifier used in requirements (e.g. "base-sepolia").
	Name string

	// Type is the network's virtual machine type.
	Type NetworkType

	// ChainID is the EVM chain ID (zero for non-EVM networks).
	ChainID int64

	// USDCAddress is the official Circle USDC contract or mint address.
	USDCAddress string

	// USDCName is the EIP-3009 domain parameter "name" (empty for non-EVM chains).
	USDCName string

	// USDCVersion is the EIP-3009 domain parameter "version" (empty for non-EVM chains).
	USDCVersion string

	// Decimals is the number of decimal places for USDC (always 6).
	Decimals int
}

// Built-in network configurations. USDC addresses and EIP-3009 parameters
// verified 2025-10-30.
var (
	// Base is the configuration for Base mainnet.
	Base = NetworkConfig{
		Name:        "base",
		Type:        NetworkTypeEVM,
		ChainID:     8453,
		USDCAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		USDCName:    "USD Coin",
		USDCVersion: "2",
		Decimals:    6,
	}

	// BaseSepolia is the configuration for Base Sepolia testnet.
	BaseSepolia = NetworkConfig{
		Name:        "base-sepolia",
		Type:        NetworkTypeEVM,
		ChainID:     84532,
		USDCAddress: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		USDCName:    "USDC",
		USDCVersion: "2",
		Decimals:    6,
	}

	// Ethereum is the configuration for Ethereum mainnet.
	Ethereum = NetworkConfig{
		Name:        "ethereum",
		Type:        NetworkTypeEVM,
		ChainID:     1,
		USDCAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		USDCName:    "USD Coin",
		USDCVersion: "2",
		Decimals:    6,
	}

	// Sepolia is the configuration for Ethereum Sepolia testnet.
	Sepolia = NetworkConfig{
		Name:        "sepolia",
		Type:        NetworkTypeEVM,
		ChainID:     11155111,
		USDCAddress: "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
		USDCName:    "USDC",
		USDCVersion: "2",
		Decimals:    6,
	}

	// Polygon is the configuration for Polygon PoS mainnet.
	Polygon = NetworkConfig{
		Name:        "polygon",
		Type:        NetworkTypeEVM,
		ChainID:     137,
		USDCAddress: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		USDCName:    "USD Coin",
		USDCVersion: "2",
		Decimals:    6,
	}

	// PolygonAmoy is the configuration for Polygon Amoy testnet.
	PolygonAmoy = NetworkConfig{
		Name:        "polygon-amoy",
		Type:        NetworkTypeEVM,
		ChainID:     80002,
		USDCAddress: "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
		USDCName:    "USDC",
		USDCVersion: "2",
		Decimals:    6,
	}

	// Solana is the configuration for Solana mainnet.
	Solana = NetworkConfig{
		Name:        "solana",
		Type:        NetworkTypeSVM,
		USDCAddress: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Decimals:    6,
	}

	// SolanaDevnet is the configuration for Solana devnet.
	SolanaDevnet = NetworkConfig{
		Name:        "solana-devnet",
		Type:        NetworkTypeSVM,
		USDCAddress: "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
		Decimals:    6,
	}
)

var (
	networksMu sync.RWMutex
	networks   = map[string]NetworkConfig{
		Base.Name:         Base,
		BaseSepolia.Name:  BaseSepolia,
		Ethereum.Name:     Ethereum,
		Sepolia.Name:      Sepolia,
		Polygon.Name:      Polygon,
		PolygonAmoy.Name:  PolygonAmoy,
		Solana.Name:       Solana,
		SolanaDevnet.Name: SolanaDevnet,
	}
)

// RegisterNetwork adds or replaces a network configuration. Intended for
// startup-time configuration before requests are served.
func RegisterNetwork(cfg NetworkConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: network name cannot be empty", ErrInvalidNetwork)
	}
	if cfg.Type == NetworkTypeUnknown {
		return fmt.Errorf("%w: network type must be set for %s", ErrInvalidNetwork, cfg.Name)
	}
	networksMu.Lock()
	defer networksMu.Unlock()
	networks[cfg.Name] = cfg
	return nil
}

// LookupNetwork returns the configuration for a network identifier.
func LookupNetwork(name string) (NetworkConfig, error) {
	networksMu.RLock()
	defer networksMu.RUnlock()
	cfg, ok := networks[name]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("%w: %s", ErrInvalidNetwork, name)
	}
	return cfg, nil
}

// NetworkTypeOf returns the virtual machine type for a network identifier.
func NetworkTypeOf(name string) (NetworkType, error) {
	cfg, err := LookupNetwork(name)
	if err != nil {
		return NetworkTypeUnknown, err
	}
	return cfg.Type, nil
}
