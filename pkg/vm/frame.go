package vm

import (
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/pkg/gas"
	"github.com/holiman/uint256"
)

// Frame is the execution context of a single call.
type Frame struct {
	vm    *VM
	depth int

	Gas    *gas.Meter
	Caller common.Address
	Self   common.Address
}

// Consume burns amount gas.
func (f *Frame) Consume(amount uint64) error {
	return f.Gas.Consume(amount)
}

// SLoad reads a slot of the executing account.
func (f *Frame) SLoad(key common.Hash) (common.Hash, error) {
	cold := f.vm.state.AddSlotToAccessList(f.Self, key)
	if err := f.Gas.Consume(sloadCost(cold)); err != nil {
		return common.Hash{}, err
	}

	return f.vm.state.GetState(f.Self, key), nil
}

// SStore writes a slot of the executing account.
func (f *Frame) SStore(key, value common.Hash) error {
	cold := f.vm.state.AddSlotToAccessList(f.Self, key)
	current := f.vm.state.GetState(f.Self, key)

	if err := f.Gas.Consume(sstoreCost(cold, current, value)); err != nil {
		return err
	}

	f.vm.state.SetState(f.Self, key, value)

	return nil
}

// LoadUint reads a slot as an integer.
func (f *Frame) LoadUint(key common.Hash) (*uint256.Int, error) {
	v, err := f.SLoad(key)
	if err != nil {
		return nil, err
	}

	return new(uint256.Int).SetBytes(v.Bytes()), nil
}

// StoreUint writes an integer to a slot.
func (f *Frame) StoreUint(key common.Hash, value *uint256.Int) error {
	return f.SStore(key, common.Hash(value.Bytes32()))
}

// Balance returns the balance of addr.
func (f *Frame) Balance(addr common.Address) (*uint256.Int, error) {
	if err := f.vm.AccessAccount(f.Gas, addr); err != nil {
		return nil, err
	}

	return f.vm.state.GetBalance(addr), nil
}

// CodeSize returns the size of the code at addr.
func (f *Frame) CodeSize(addr common.Address) (int, error) {
	if err := f.vm.AccessAccount(f.Gas, addr); err != nil {
		return 0, err
	}

	return f.vm.state.GetCodeSize(addr), nil
}

// Transfer moves amount from the executing account to to.
func (f *Frame) Transfer(to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}

	if err := f.vm.AccessAccount(f.Gas, to); err != nil {
		return err
	}

	if err := f.Gas.Consume(CallValueTransfer); err != nil {
		return err
	}

	if err := f.vm.state.SubBalance(f.Self, amount); err != nil {
		return Revert(err.Error())
	}

	f.vm.state.AddBalance(to, amount)

	return nil
}

// Call invokes to with input and at most gasLimit gas.
func (f *Frame) Call(to common.Address, input []byte, gasLimit uint64) ([]byte, error) {
	return f.vm.exec(f.depth+1, f.Gas, f.Self, to, gasLimit, CallInput(input))
}

// Deploy installs code at addr with the given initial storage.
func (f *Frame) Deploy(addr common.Address, code []byte, storage map[common.Hash]common.Hash) error {
	if err := f.vm.AccessAccount(f.Gas, addr); err != nil {
		return err
	}

	cost := uint64(CreateGas + CodeDepositGas*len(code) + SstoreSetGas*len(storage))
	if err := f.Gas.Consume(cost); err != nil {
		return err
	}

	st := f.vm.state
	if st.GetCodeSize(addr) != 0 || st.GetNonce(addr) != 0 {
		return ErrCodeCollision
	}

	st.SetNonce(addr, 1)
	st.SetCode(addr, code)

	for k, v := range storage {
		st.SetState(addr, k, v)
	}

	return nil
}
