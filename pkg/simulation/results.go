package simulation

import (
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/holiman/uint256"
)

// ReturnInfo is the gas and funding summary of a validation.
type ReturnInfo struct {
	PreOpGas                uint64
	Prefund                 *uint256.Int
	AccountValidationData   *uint256.Int
	PaymasterValidationData *uint256.Int
	PaymasterContext        []byte
}

// ValidationResult is returned by SimulateValidation.
type ValidationResult struct {
	ReturnInfo     ReturnInfo
	SenderInfo     userop.StakeInfo
	FactoryInfo    userop.StakeInfo
	PaymasterInfo  userop.StakeInfo
	AggregatorInfo userop.AggregatorStakeInfo
}

// ExecutionResult is returned by SimulateHandleOp.
type ExecutionResult struct {
	PreOpGas                      uint64
	Paid                          *uint256.Int
	AccountValidationData         *uint256.Int
	PaymasterValidationData       *uint256.Int
	PaymasterVerificationGasLimit uint64
	PaymasterPostOpGasLimit       uint64
	// ExecutionSuccess is the outcome of the call into the sender.
	ExecutionSuccess bool
	TargetSuccess    bool
	TargetResult     []byte
}
