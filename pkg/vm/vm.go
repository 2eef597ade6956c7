// Package vm hosts native contracts on top of the journaled world state.
//
// Code stored in the world is an identifier that the VM resolves to a Go
// implementation through its Registry. Every call runs in its own frame with
// a capped gas meter and a state snapshot that is reverted when the call fails.
package vm

import (
	"errors"
	"fmt"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/pkg/gas"
	"github.com/ethpandaops/userop-simulator/pkg/state"
)

// Contract is a native contract implementation.
type Contract interface {
	Run(f *Frame, input []byte) ([]byte, error)
}

// Registry maps code identifiers to contract implementations.
type Registry map[string]Contract

// Handler runs inside a call frame. c is nil when the callee has no code.
type Handler func(f *Frame, c Contract) ([]byte, error)

// VM executes calls against a StateDB.
type VM struct {
	state     *state.StateDB
	contracts Registry
}

// New creates a VM over st resolving code through contracts.
func New(st *state.StateDB, contracts Registry) *VM {
	return &VM{
		state:     st,
		contracts: contracts,
	}
}

// State returns the underlying world.
func (v *VM) State() *state.StateDB {
	return v.state
}

// Snapshot marks the current world revision.
func (v *VM) Snapshot() int {
	return v.state.Snapshot()
}

// RevertToSnapshot rolls the world back to a revision.
func (v *VM) RevertToSnapshot(id int) {
	v.state.RevertToSnapshot(id)
}

// CodeSize returns the size of the code at addr without charging gas.
func (v *VM) CodeSize(addr common.Address) int {
	return v.state.GetCodeSize(addr)
}

// ContractAt resolves the code at addr. It returns a nil contract when addr
// holds no code.
func (v *VM) ContractAt(addr common.Address) (Contract, error) {
	code := v.state.GetCode(addr)
	if len(code) == 0 {
		return nil, nil
	}

	c, ok := v.contracts[string(code)]
	if !ok {
		return nil, fmt.Errorf("%w at %s", ErrInvalidCode, addr.Hex())
	}

	return c, nil
}

// AccessAccount charges the warm or cold access price for addr and warms it.
func (v *VM) AccessAccount(m *gas.Meter, addr common.Address) error {
	cold := v.state.AddAddressToAccessList(addr)

	return m.Consume(accountAccessCost(cold))
}

// Frame returns a top-level frame executing as self on meter m. It is used by
// system contracts that keep their own bookkeeping in the world.
func (v *VM) Frame(m *gas.Meter, caller, self common.Address) *Frame {
	return &Frame{vm: v, Gas: m, Caller: caller, Self: self}
}

// Call invokes to with input, handing it all of m's remaining gas after the
// access charge.
func (v *VM) Call(m *gas.Meter, caller, to common.Address, input []byte) ([]byte, error) {
	return v.exec(1, m, caller, to, ^uint64(0), CallInput(input))
}

// Exec runs fn as a call frame from caller into to. The access charge is paid
// by m and the frame receives at most gasLimit.
func (v *VM) Exec(m *gas.Meter, caller, to common.Address, gasLimit uint64, fn Handler) ([]byte, error) {
	return v.exec(1, m, caller, to, gasLimit, fn)
}

// ExecFrame runs fn as a call frame that uses m itself as its meter. No access
// charge is taken, so the frame sees exactly m's allowance.
func (v *VM) ExecFrame(m *gas.Meter, caller, to common.Address, fn Handler) ([]byte, error) {
	return v.execFrame(1, m, caller, to, fn)
}

func (v *VM) exec(depth int, m *gas.Meter, caller, to common.Address, gasLimit uint64, fn Handler) ([]byte, error) {
	if err := v.AccessAccount(m, to); err != nil {
		return nil, err
	}

	child := m.Child(gasLimit)
	ret, err := v.execFrame(depth, child, caller, to, fn)
	m.Settle(child)

	return ret, err
}

func (v *VM) execFrame(depth int, m *gas.Meter, caller, to common.Address, fn Handler) ([]byte, error) {
	if depth > MaxCallDepth {
		return nil, ErrDepth
	}

	snap := v.state.Snapshot()

	c, err := v.ContractAt(to)
	if err != nil {
		m.Drain()

		return nil, err
	}

	f := &Frame{vm: v, Gas: m, Caller: caller, Self: to, depth: depth}

	ret, err := fn(f, c)
	if err != nil {
		v.state.RevertToSnapshot(snap)

		if !errors.Is(err, ErrExecutionReverted) {
			m.Drain()
		}

		return ret, err
	}

	return ret, nil
}

// CallInput is the handler of a plain call: it runs the callee's code with
// input and succeeds without output when the callee has no code.
func CallInput(input []byte) Handler {
	return func(f *Frame, c Contract) ([]byte, error) {
		if c == nil {
			return nil, nil
		}

		return c.Run(f, input)
	}
}
