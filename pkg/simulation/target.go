package simulation

import (
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/pkg/vm"
)

// targetCaller applies the target call that follows a validated operation.
// The call keeps its effects but runs under its own allowance, so a halting
// target only burns that allowance.
type targetCaller struct {
	world  World
	engine Engine
	limit  uint64
}

// call runs target with data from the entry point. The allowance is the
// configured limit, capped at all but one 64th of what cc has left.
func (t *targetCaller) call(cc *CallContext, target common.Address, data []byte) ([]byte, error) {
	limit := t.limit

	rem := cc.Gas.Remaining()
	if keep := rem - rem/64; limit > keep {
		limit = keep
	}

	ret, err := t.world.Exec(cc.Gas, t.engine.Address(), target, limit, vm.CallInput(data))
	if err != nil {
		return revertPayload(err), err
	}

	return ret, nil
}
