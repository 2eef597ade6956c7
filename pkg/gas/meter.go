// Package gas provides nested execution budgets.
//
// A Meter tracks how much of a fixed allowance has been consumed. Nested calls
// run under child meters that are capped at their parent's remaining gas and
// settled back into the parent when the call returns.
package gas

import (
	"errors"
	"fmt"
)

// ErrOutOfGas is returned when a charge exceeds the remaining allowance.
var ErrOutOfGas = errors.New("out of gas")

// Meter is a single call frame's gas allowance.
type Meter struct {
	limit uint64
	used  uint64
}

// NewMeter creates a meter with the given allowance.
func NewMeter(limit uint64) *Meter {
	return &Meter{limit: limit}
}

// Limit returns the allowance the meter was created with.
func (m *Meter) Limit() uint64 {
	return m.limit
}

// Used returns the gas consumed so far.
func (m *Meter) Used() uint64 {
	return m.used
}

// Remaining returns the gas still available.
func (m *Meter) Remaining() uint64 {
	return m.limit - m.used
}

// Consume charges amount gas. When the allowance cannot cover the charge the
// meter is drained, the same way an out-of-gas halt burns the whole frame.
func (m *Meter) Consume(amount uint64) error {
	if have := m.Remaining(); amount > have {
		m.used = m.limit

		return fmt.Errorf("%w: need %d, have %d", ErrOutOfGas, amount, have)
	}

	m.used += amount

	return nil
}

// Drain consumes everything that is left.
func (m *Meter) Drain() {
	m.used = m.limit
}

// Child returns a meter for a nested frame. The child's allowance is capped at
// what the parent has left.
func (m *Meter) Child(limit uint64) *Meter {
	if rem := m.Remaining(); limit > rem {
		limit = rem
	}

	return &Meter{limit: limit}
}

// Settle charges the gas a finished child frame used to its parent.
func (m *Meter) Settle(child *Meter) {
	used := child.Used()
	if rem := m.Remaining(); used > rem {
		used = rem
	}

	m.used += used
}
