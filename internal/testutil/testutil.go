// Package testutil provides test helpers that assemble small simulation worlds.
package testutil

import (
	"math/big"
	"testing"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/pkg/contracts"
	"github.com/ethpandaops/userop-simulator/pkg/entrypoint"
	"github.com/ethpandaops/userop-simulator/pkg/state"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/ethpandaops/userop-simulator/pkg/vm"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// Well-known addresses of the default world.
var (
	EntryPoint = common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")
	Account    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	Factory    = common.HexToAddress("0x2000000000000000000000000000000000000002")
	Paymaster  = common.HexToAddress("0x3000000000000000000000000000000000000003")
	Counter    = common.HexToAddress("0x4000000000000000000000000000000000000004")
	Burner     = common.HexToAddress("0x5000000000000000000000000000000000000005")
	Reverter   = common.HexToAddress("0x6000000000000000000000000000000000000006")
	Undeployed = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

// Ether is 10^18 wei.
var Ether = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18))

// NewLogger returns a logger that only reports errors.
func NewLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

// World bundles the state, the call host and the entry point of a test.
type World struct {
	State      *state.StateDB
	VM         *vm.VM
	EntryPoint *entrypoint.EntryPoint
}

// NewWorld creates a world with every well-known contract deployed and one
// ether deposited for Account and Paymaster.
func NewWorld(t *testing.T) *World {
	t.Helper()

	st := state.New()
	v := vm.New(st, contracts.Registry())
	ep := entrypoint.New(NewLogger(), v, entrypoint.Config{
		Address: EntryPoint,
		ChainID: big.NewInt(1),
		BaseFee: uint256.NewInt(1),
	})

	w := &World{State: st, VM: v, EntryPoint: ep}

	w.Deploy(Account, contracts.KindAccount)
	w.Deploy(Factory, contracts.KindFactory)
	w.Deploy(Paymaster, contracts.KindPaymaster)
	w.Deploy(Counter, contracts.KindCounter)
	w.Deploy(Burner, contracts.KindBurner)
	w.Deploy(Reverter, contracts.KindReverter)

	ep.DepositTo(Account, Ether)
	ep.DepositTo(Paymaster, Ether)

	return w
}

// Deploy installs a contract of kind at addr.
func (w *World) Deploy(addr common.Address, kind contracts.Kind) {
	w.State.SetCode(addr, contracts.Code(kind))
}

// SetUint writes v into a storage slot of addr.
func (w *World) SetUint(addr common.Address, key common.Hash, v uint64) {
	w.State.SetState(addr, key, common.Hash(uint256.NewInt(v).Bytes32()))
}

// Operation returns a valid operation from sender calling target with data
// through the account.
func Operation(sender common.Address, nonce int64, target common.Address, data []byte) *userop.Operation {
	return &userop.Operation{
		Sender:             sender,
		Nonce:              big.NewInt(nonce),
		CallData:           contracts.ExecuteCallData(target, data),
		AccountGasLimits:   userop.PackGasLimits(300_000, 500_000),
		PreVerificationGas: 21_000,
		GasFees:            userop.PackGasFees(uint256.NewInt(1), uint256.NewInt(2)),
		Signature:          []byte{0x01},
	}
}

// WithPaymaster sets the paymaster fields of op and returns it.
func WithPaymaster(op *userop.Operation, paymaster common.Address, data []byte) *userop.Operation {
	op.PaymasterAndData = userop.PackPaymasterAndData(paymaster, 200_000, 100_000, data)

	return op
}
