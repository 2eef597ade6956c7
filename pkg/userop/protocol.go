package userop

import (
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/pkg/gas"
	"github.com/holiman/uint256"
)

// Phase names an entry point stage that can be driven on its own with an
// explicit budget.
type Phase int

const (
	// PhaseAccountValidation covers sender deployment, account validation and
	// the nonce update.
	PhaseAccountValidation Phase = iota
	// PhasePaymasterValidation covers the paymaster deposit check and validation.
	PhasePaymasterValidation
	// PhaseExecution is the call into the sender with the operation call data.
	PhaseExecution
)

func (p Phase) String() string {
	switch p {
	case PhaseAccountValidation:
		return "account_validation"
	case PhasePaymasterValidation:
		return "paymaster_validation"
	case PhaseExecution:
		return "execution"
	default:
		return "unknown"
	}
}

// Env is the per-call context an engine entry point runs under.
type Env struct {
	// Gas is the meter the entry point charges.
	Gas *gas.Meter
	// SenderCreator is the caller used for account deployment.
	SenderCreator common.Address
}

// StakeInfo describes an entity's stake with the entry point.
type StakeInfo struct {
	Stake           *uint256.Int
	UnstakeDelaySec uint64
}

// AggregatorStakeInfo names a signature aggregator and its stake.
type AggregatorStakeInfo struct {
	Aggregator common.Address
	StakeInfo  StakeInfo
}

// ValidationOutcome is what the engine reports after validating an operation.
type ValidationOutcome struct {
	PreOpGas                uint64
	Prefund                 *uint256.Int
	AccountValidationData   *uint256.Int
	PaymasterValidationData *uint256.Int
	PaymasterContext        []byte
}

// ExecutionOutcome is what the engine reports after executing an operation.
type ExecutionOutcome struct {
	ActualGasUsed uint64
	Paid          *uint256.Int
	Success       bool
	ReturnData    []byte
}
