package contracts

import (
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/ethpandaops/userop-simulator/pkg/vm"
	"github.com/holiman/uint256"
)

// Storage layout of SimpleAccount.
var (
	AccountOwnerSlot         = slot(0)
	AccountValidationGasSlot = slot(1)
	AccountExecutionsSlot    = slot(2)
)

// Signature markers understood by SimpleAccount.
const (
	SignatureInvalid    byte = 0xff
	SignatureAggregated byte = 0xaa
)

// SimpleAccount is a minimal smart account.
//
// Validation burns the gas configured in AccountValidationGasSlot, rejects an
// empty signature and reports a signature failure when the signature starts
// with SignatureInvalid. A signature of SignatureAggregated followed by an
// address names that address as the aggregator. Execution forwards call data
// built by ExecuteCallData.
type SimpleAccount struct{}

// ValidateUserOp validates op and pays missingFunds to the entry point.
func (a *SimpleAccount) ValidateUserOp(f *vm.Frame, op *userop.Operation, _ common.Hash, missingFunds *uint256.Int) (*uint256.Int, error) {
	if _, err := f.SLoad(AccountOwnerSlot); err != nil {
		return nil, err
	}

	if err := burnExtra(f, AccountValidationGasSlot); err != nil {
		return nil, err
	}

	if len(op.Signature) == 0 {
		return nil, vm.Revert("account: empty signature")
	}

	var data userop.ValidationData

	switch {
	case op.Signature[0] == SignatureInvalid:
		data.Aggregator = userop.SigValidationFailed
	case op.Signature[0] == SignatureAggregated && len(op.Signature) > common.AddressLength:
		data.Aggregator = common.BytesToAddress(op.Signature[1 : 1+common.AddressLength])
	}

	if missingFunds != nil && !missingFunds.IsZero() {
		if err := f.Transfer(f.Caller, missingFunds); err != nil {
			return nil, err
		}
	}

	return data.Pack(), nil
}

// Run executes call data produced by ExecuteCallData.
func (a *SimpleAccount) Run(f *vm.Frame, input []byte) ([]byte, error) {
	if _, err := increment(f, AccountExecutionsSlot); err != nil {
		return nil, err
	}

	if len(input) < common.AddressLength {
		return nil, nil
	}

	target := common.BytesToAddress(input[:common.AddressLength])

	return f.Call(target, input[common.AddressLength:], f.Gas.Remaining())
}

// ExecuteCallData builds account call data forwarding data to target.
func ExecuteCallData(target common.Address, data []byte) []byte {
	return append(append([]byte{}, target.Bytes()...), data...)
}
