package contracts

import (
	"encoding/binary"

	"github.com/ethpandaops/userop-simulator/pkg/vm"
)

// CounterSlot holds the call count of GasBurner and Counter.
var CounterSlot = slot(0)

// GasBurner burns the amount of gas encoded in its input, then counts the call.
type GasBurner struct{}

// BurnCallData encodes a GasBurner input.
func BurnCallData(amount uint64) []byte {
	return uint64Word(amount)
}

// Run burns and returns the new call count.
func (b *GasBurner) Run(f *vm.Frame, input []byte) ([]byte, error) {
	if len(input) >= 8 {
		if err := f.Consume(binary.BigEndian.Uint64(input[:8])); err != nil {
			return nil, err
		}
	}

	count, err := increment(f, CounterSlot)
	if err != nil {
		return nil, err
	}

	out := count.Bytes32()

	return out[:], nil
}

// Counter counts calls.
type Counter struct{}

// Run returns the new call count.
func (c *Counter) Run(f *vm.Frame, _ []byte) ([]byte, error) {
	count, err := increment(f, CounterSlot)
	if err != nil {
		return nil, err
	}

	out := count.Bytes32()

	return out[:], nil
}

// Reverter always reverts. A non-empty input is used verbatim as the revert
// payload, an empty one reverts without payload.
type Reverter struct{}

// Run reverts.
func (r *Reverter) Run(_ *vm.Frame, input []byte) ([]byte, error) {
	return nil, &vm.RevertError{Data: append([]byte{}, input...)}
}
