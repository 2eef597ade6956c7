package entrypoint

import (
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/ethpandaops/userop-simulator/pkg/vm"
	"github.com/holiman/uint256"
)

// Execute runs the execution call of a validated operation, the paymaster
// post-op, and settles the gas cost against the prefund.
func (ep *EntryPoint) Execute(env *userop.Env, op *userop.Operation, validation *userop.ValidationOutcome) (*userop.ExecutionOutcome, error) {
	start := env.Gas.Used()

	ret, err := ep.vm.Exec(env.Gas, ep.address, op.Sender, op.CallGasLimit(), vm.CallInput(op.CallData))

	success := err == nil
	if !success {
		ret = vm.RevertData(err)

		ep.log.WithError(err).WithField("sender", op.Sender.Hex()).Debug("Operation execution failed")
	}

	gasPrice := ep.gasPrice(op)
	executionGas := env.Gas.Used() - start
	executionLimit := op.CallGasLimit()

	if op.HasPaymaster() && len(validation.PaymasterContext) > 0 {
		executionLimit += op.PaymasterPostOpGasLimit()

		cost := new(uint256.Int).Mul(uint256.NewInt(validation.PreOpGas+executionGas), gasPrice)

		_, err := ep.vm.Exec(env.Gas, ep.address, op.Paymaster(), op.PaymasterPostOpGasLimit(), func(f *vm.Frame, c vm.Contract) ([]byte, error) {
			pm, ok := c.(Paymaster)
			if !ok {
				return nil, &vm.RevertError{}
			}

			return nil, pm.PostOp(f, success, validation.PaymasterContext, cost)
		})
		if err != nil {
			return nil, ep.fail(op, "AA50 postOp reverted", err)
		}

		executionGas = env.Gas.Used() - start
	}

	actualGas := validation.PreOpGas + executionGas
	if executionLimit > executionGas {
		if unused := executionLimit - executionGas; unused > PenaltyGasThreshold {
			actualGas += unused * UnusedGasPenaltyPercent / 100
		}
	}

	actualCost := new(uint256.Int).Mul(uint256.NewInt(actualGas), gasPrice)
	if actualCost.Gt(validation.Prefund) {
		return nil, ep.fail(op, "AA51 prefund below actualGasCost", nil)
	}

	payer := op.Sender
	if op.HasPaymaster() {
		payer = op.Paymaster()
	}

	if err := ep.refund(env, payer, new(uint256.Int).Sub(validation.Prefund, actualCost)); err != nil {
		return nil, err
	}

	return &userop.ExecutionOutcome{
		ActualGasUsed: actualGas,
		Paid:          actualCost,
		Success:       success,
		ReturnData:    ret,
	}, nil
}

func (ep *EntryPoint) refund(env *userop.Env, payer common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}

	f := ep.vm.Frame(env.Gas, common.Address{}, ep.address)
	key := depositSlot(payer)

	deposit, err := f.LoadUint(key)
	if err != nil {
		return ep.bookkeepingError(err)
	}

	if err := f.StoreUint(key, deposit.Add(deposit, amount)); err != nil {
		return ep.bookkeepingError(err)
	}

	return nil
}

// RunPhase drives one stage of the operation on its own, giving it the whole
// of env.Gas. It is the unit a gas search probes with varying budgets.
func (ep *EntryPoint) RunPhase(phase userop.Phase, env *userop.Env, op *userop.Operation) ([]byte, error) {
	switch phase {
	case userop.PhaseAccountValidation:
		data, err := ep.validateAccount(env, op, op.Hash(ep.address, ep.chainID), op.RequiredPrefund(), env.Gas.Remaining())
		if err != nil {
			return nil, err
		}

		out := data.Bytes32()

		return out[:], nil
	case userop.PhasePaymasterValidation:
		if !op.HasPaymaster() {
			return nil, userop.ErrNoPaymaster
		}

		context, _, err := ep.validatePaymaster(env, op, op.Hash(ep.address, ep.chainID), op.RequiredPrefund(), env.Gas.Remaining())

		return context, err
	case userop.PhaseExecution:
		return ep.vm.ExecFrame(env.Gas, ep.address, op.Sender, vm.CallInput(op.CallData))
	default:
		return nil, ErrUnknownPhase
	}
}
