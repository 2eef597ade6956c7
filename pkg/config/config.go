// Package config provides configuration types for userop-simulator.
package config

import (
	"fmt"
	"math/big"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/pkg/simulation"
	"github.com/holiman/uint256"
)

// DefaultEntryPoint is the canonical EntryPoint v0.7 deployment address.
const DefaultEntryPoint = "0x0000000071727De22E5E9d8BAf0edAc6f37da032"

// ChainConfig describes the chain the simulated entry point lives on.
type ChainConfig struct {
	// ChainID is mixed into the operation hash.
	ChainID uint64 `yaml:"chainId" default:"1"`
	// BaseFee is used to price gas in wei.
	BaseFee uint64 `yaml:"baseFee" default:"1000000000"`
	// EntryPoint is the address the entry point is installed at.
	EntryPoint string `yaml:"entryPoint" default:"0x0000000071727De22E5E9d8BAf0edAc6f37da032"`
}

// Validate validates the chain configuration.
func (c *ChainConfig) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("chainId is required")
	}

	if c.EntryPoint == "" {
		c.EntryPoint = DefaultEntryPoint
	}

	if !common.IsHexAddress(c.EntryPoint) {
		return fmt.Errorf("invalid entryPoint address %q", c.EntryPoint)
	}

	return nil
}

// EntryPointAddress returns the configured entry point address.
func (c *ChainConfig) EntryPointAddress() common.Address {
	return common.HexToAddress(c.EntryPoint)
}

// ChainIDBig returns the chain id as a big integer.
func (c *ChainConfig) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(c.ChainID)
}

// BaseFeeUint returns the base fee as a uint256.
func (c *ChainConfig) BaseFeeUint() *uint256.Int {
	return uint256.NewInt(c.BaseFee)
}

// Config is the main configuration for userop-simulator.
type Config struct {
	// LoggingLevel is the logging level to use.
	LoggingLevel string `yaml:"logging" default:"info"`
	// Chain is the chain configuration.
	Chain ChainConfig `yaml:"chain"`
	// Simulator is the estimator configuration.
	Simulator simulation.Config `yaml:"simulator"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Chain.Validate(); err != nil {
		return fmt.Errorf("invalid chain configuration: %w", err)
	}

	if err := c.Simulator.Validate(); err != nil {
		return fmt.Errorf("invalid simulator configuration: %w", err)
	}

	return nil
}
