package contracts

import (
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/ethpandaops/userop-simulator/pkg/vm"
	"github.com/holiman/uint256"
)

// Storage layout of VerifyingPaymaster.
var (
	PaymasterValidationGasSlot = slot(0)
	PaymasterPostOpsSlot       = slot(1)
)

// Paymaster data markers understood by VerifyingPaymaster.
const (
	PaymasterReject    byte = 0xff
	PaymasterSigFailed byte = 0xfe
	PaymasterNoPostOp  byte = 0xfd
)

// VerifyingPaymaster sponsors operations. The first byte of the paymaster data
// selects rejection, a signature failure or skipping the post-op.
type VerifyingPaymaster struct{}

// ValidatePaymasterUserOp validates op and returns the post-op context.
func (p *VerifyingPaymaster) ValidatePaymasterUserOp(f *vm.Frame, op *userop.Operation, _ common.Hash, _ *uint256.Int) ([]byte, *uint256.Int, error) {
	if err := burnExtra(f, PaymasterValidationGasSlot); err != nil {
		return nil, nil, err
	}

	var (
		data    userop.ValidationData
		context = op.Sender.Bytes()
	)

	if pd := op.PaymasterData(); len(pd) > 0 {
		switch pd[0] {
		case PaymasterReject:
			return nil, nil, vm.Revert("paymaster: rejected")
		case PaymasterSigFailed:
			data.Aggregator = userop.SigValidationFailed
		case PaymasterNoPostOp:
			context = nil
		}
	}

	return context, data.Pack(), nil
}

// PostOp counts settled operations.
func (p *VerifyingPaymaster) PostOp(f *vm.Frame, _ bool, _ []byte, _ *uint256.Int) error {
	_, err := increment(f, PaymasterPostOpsSlot)

	return err
}

// Run accepts plain calls.
func (p *VerifyingPaymaster) Run(_ *vm.Frame, _ []byte) ([]byte, error) {
	return nil, nil
}
