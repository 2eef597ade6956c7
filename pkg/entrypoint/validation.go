package entrypoint

import (
	"errors"
	"fmt"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/ethpandaops/userop-simulator/pkg/vm"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// Validate runs the full validation of op: deployment, account validation,
// prefund, nonce and paymaster validation. State changes are kept.
func (ep *EntryPoint) Validate(env *userop.Env, op *userop.Operation) (*userop.ValidationOutcome, error) {
	preGas := env.Gas.Used()

	if op.GasValuesOverflow() {
		return nil, userop.NewFailedOp(0, "AA94 gas values overflow")
	}

	hash := op.Hash(ep.address, ep.chainID)
	prefund := op.RequiredPrefund()

	accountData, err := ep.validateAccount(env, op, hash, prefund, op.VerificationGasLimit())
	if err != nil {
		return nil, err
	}

	var (
		context       []byte
		paymasterData = new(uint256.Int)
	)

	if op.HasPaymaster() {
		context, paymasterData, err = ep.validatePaymaster(env, op, hash, prefund, op.PaymasterVerificationGasLimit())
		if err != nil {
			return nil, err
		}
	}

	return &userop.ValidationOutcome{
		PreOpGas:                env.Gas.Used() - preGas + op.PreVerificationGas,
		Prefund:                 prefund,
		AccountValidationData:   accountData,
		PaymasterValidationData: paymasterData,
		PaymasterContext:        context,
	}, nil
}

// ValidateAccount runs the account part of Validate on its own: deployment,
// account validation, prefund and nonce. State changes are kept.
func (ep *EntryPoint) ValidateAccount(env *userop.Env, op *userop.Operation) (*uint256.Int, error) {
	if op.GasValuesOverflow() {
		return nil, userop.NewFailedOp(0, "AA94 gas values overflow")
	}

	return ep.validateAccount(env, op, op.Hash(ep.address, ep.chainID), op.RequiredPrefund(), op.VerificationGasLimit())
}

func (ep *EntryPoint) fail(op *userop.Operation, reason string, cause error) error {
	failed := &userop.FailedOp{OpIndex: 0, Reason: reason, Inner: vm.RevertData(cause)}

	fields := logrus.Fields{"sender": op.Sender.Hex(), "reason": reason}
	if cause != nil {
		fields["cause"] = cause.Error()
	}

	ep.log.WithFields(fields).Debug("Operation failed validation")

	return failed
}

// validateAccount deploys the sender if needed, validates it, collects the
// prefund and consumes the nonce. Everything it does is bounded by gasLimit.
func (ep *EntryPoint) validateAccount(env *userop.Env, op *userop.Operation, hash common.Hash, prefund *uint256.Int, gasLimit uint64) (*uint256.Int, error) {
	start := env.Gas.Used()

	if len(op.InitCode) > 0 {
		if err := ep.createSender(env, op, gasLimit); err != nil {
			return nil, err
		}
	} else if ep.vm.CodeSize(op.Sender) == 0 {
		return nil, ep.fail(op, "AA20 account not deployed", nil)
	}

	f := ep.vm.Frame(env.Gas, common.Address{}, ep.address)

	missing := new(uint256.Int)

	if !op.HasPaymaster() {
		deposit, err := f.LoadUint(depositSlot(op.Sender))
		if err != nil {
			return nil, ep.bookkeepingError(err)
		}

		if deposit.Lt(prefund) {
			missing.Sub(prefund, deposit)
		}
	}

	var limit uint64
	if used := env.Gas.Used() - start; used < gasLimit {
		limit = gasLimit - used
	}

	balanceBefore := ep.vm.State().GetBalance(ep.address)

	var validationData *uint256.Int

	_, err := ep.vm.Exec(env.Gas, ep.address, op.Sender, limit, func(f *vm.Frame, c vm.Contract) ([]byte, error) {
		account, ok := c.(Account)
		if !ok {
			return nil, &vm.RevertError{}
		}

		data, err := account.ValidateUserOp(f, op, hash, missing)
		validationData = data

		return nil, err
	})
	if err != nil {
		if errors.Is(err, vm.ErrExecutionReverted) {
			return nil, ep.fail(op, "AA23 reverted", err)
		}

		return nil, ep.fail(op, "AA23 reverted (or OOG)", err)
	}

	if err := ep.collectPrefund(f, op, prefund, balanceBefore); err != nil {
		return nil, err
	}

	ok, err := ep.validateAndUpdateNonce(f, op)
	if err != nil {
		return nil, ep.bookkeepingError(err)
	}

	if !ok {
		return nil, ep.fail(op, "AA25 invalid account nonce", nil)
	}

	if env.Gas.Used()-start > gasLimit {
		return nil, ep.fail(op, "AA26 over verificationGasLimit", nil)
	}

	if validationData == nil {
		validationData = new(uint256.Int)
	}

	return validationData, nil
}

// createSender deploys the sender through its factory.
func (ep *EntryPoint) createSender(env *userop.Env, op *userop.Operation, gasLimit uint64) error {
	if ep.vm.CodeSize(op.Sender) != 0 {
		return ep.fail(op, "AA10 sender already constructed", nil)
	}

	if creator := ep.SenderCreator(); env.SenderCreator != creator {
		return fmt.Errorf("%w: have %s, want %s", ErrSenderCreatorMismatch, env.SenderCreator.Hex(), creator.Hex())
	}

	var created common.Address

	_, err := ep.vm.Exec(env.Gas, env.SenderCreator, op.Factory(), gasLimit, func(f *vm.Frame, c vm.Contract) ([]byte, error) {
		factory, ok := c.(Factory)
		if !ok {
			return nil, &vm.RevertError{}
		}

		addr, err := factory.CreateAccount(f, op.FactoryData())
		created = addr

		return nil, err
	})
	if err != nil {
		return ep.fail(op, "AA13 initCode failed or OOG", err)
	}

	if created != op.Sender {
		return ep.fail(op, "AA14 initCode must return sender", nil)
	}

	if ep.vm.CodeSize(op.Sender) == 0 {
		return ep.fail(op, "AA15 initCode must create sender", nil)
	}

	return nil
}

// collectPrefund credits what the account paid during validation and, for
// self-sponsored operations, debits the prefund from the sender deposit.
func (ep *EntryPoint) collectPrefund(f *vm.Frame, op *userop.Operation, prefund, balanceBefore *uint256.Int) error {
	key := depositSlot(op.Sender)

	paid := ep.vm.State().GetBalance(ep.address)
	if paid.Gt(balanceBefore) {
		paid.Sub(paid, balanceBefore)

		deposit, err := f.LoadUint(key)
		if err != nil {
			return ep.bookkeepingError(err)
		}

		if err := f.StoreUint(key, deposit.Add(deposit, paid)); err != nil {
			return ep.bookkeepingError(err)
		}
	}

	if op.HasPaymaster() {
		return nil
	}

	deposit, err := f.LoadUint(key)
	if err != nil {
		return ep.bookkeepingError(err)
	}

	if deposit.Lt(prefund) {
		return ep.fail(op, "AA21 didn't pay prefund", nil)
	}

	if err := f.StoreUint(key, deposit.Sub(deposit, prefund)); err != nil {
		return ep.bookkeepingError(err)
	}

	return nil
}

func (ep *EntryPoint) validateAndUpdateNonce(f *vm.Frame, op *userop.Operation) (bool, error) {
	key := nonceSlot(op.Sender, op.NonceKey())

	seq, err := f.LoadUint(key)
	if err != nil {
		return false, err
	}

	if !seq.IsUint64() || seq.Uint64() != op.NonceSequence() {
		return false, nil
	}

	if err := f.StoreUint(key, seq.AddUint64(seq, 1)); err != nil {
		return false, err
	}

	return true, nil
}

// validatePaymaster debits the prefund from the paymaster deposit and runs
// its validation. Everything it does is bounded by gasLimit.
func (ep *EntryPoint) validatePaymaster(env *userop.Env, op *userop.Operation, hash common.Hash, prefund *uint256.Int, gasLimit uint64) ([]byte, *uint256.Int, error) {
	start := env.Gas.Used()
	paymaster := op.Paymaster()

	if ep.vm.CodeSize(paymaster) == 0 {
		return nil, nil, ep.fail(op, "AA30 paymaster not deployed", nil)
	}

	f := ep.vm.Frame(env.Gas, common.Address{}, ep.address)
	key := depositSlot(paymaster)

	deposit, err := f.LoadUint(key)
	if err != nil {
		return nil, nil, ep.bookkeepingError(err)
	}

	if deposit.Lt(prefund) {
		return nil, nil, ep.fail(op, "AA31 paymaster deposit too low", nil)
	}

	if err := f.StoreUint(key, deposit.Sub(deposit, prefund)); err != nil {
		return nil, nil, ep.bookkeepingError(err)
	}

	var limit uint64
	if used := env.Gas.Used() - start; used < gasLimit {
		limit = gasLimit - used
	}

	var (
		context        []byte
		validationData *uint256.Int
	)

	_, err = ep.vm.Exec(env.Gas, ep.address, paymaster, limit, func(f *vm.Frame, c vm.Contract) ([]byte, error) {
		pm, ok := c.(Paymaster)
		if !ok {
			return nil, &vm.RevertError{}
		}

		ctx, data, err := pm.ValidatePaymasterUserOp(f, op, hash, prefund)
		context, validationData = ctx, data

		return nil, err
	})
	if err != nil {
		return nil, nil, ep.fail(op, "AA33 reverted (or OOG)", err)
	}

	if env.Gas.Used()-start > gasLimit {
		return nil, nil, ep.fail(op, "AA36 over paymasterVerificationGasLimit", nil)
	}

	if validationData == nil {
		validationData = new(uint256.Int)
	}

	return context, validationData, nil
}
