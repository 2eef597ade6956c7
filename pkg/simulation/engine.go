package simulation

import (
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/pkg/gas"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/ethpandaops/userop-simulator/pkg/vm"
	"github.com/holiman/uint256"
)

// Engine is the entry point the simulator drives.
type Engine interface {
	Address() common.Address
	Validate(env *userop.Env, op *userop.Operation) (*userop.ValidationOutcome, error)
	ValidateAccount(env *userop.Env, op *userop.Operation) (*uint256.Int, error)
	Execute(env *userop.Env, op *userop.Operation, validation *userop.ValidationOutcome) (*userop.ExecutionOutcome, error)
	StakeInfo(addr common.Address) userop.StakeInfo
	RunPhase(phase userop.Phase, env *userop.Env, op *userop.Operation) ([]byte, error)
}

// World is the state the simulator runs against.
type World interface {
	Snapshot() int
	RevertToSnapshot(id int)
	CodeSize(addr common.Address) int
	AccessAccount(m *gas.Meter, addr common.Address) error
	Call(m *gas.Meter, caller, to common.Address, input []byte) ([]byte, error)
	Exec(m *gas.Meter, caller, to common.Address, gasLimit uint64, fn vm.Handler) ([]byte, error)
}
