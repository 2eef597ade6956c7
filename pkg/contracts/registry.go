// Package contracts contains the native contracts scenarios and tests deploy:
// a simple account with its factory, a paymaster and a few call targets.
package contracts

import (
	"encoding/binary"
	"math"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/pkg/vm"
	"github.com/holiman/uint256"
)

// Kind identifies a contract implementation. It is stored as the account code.
type Kind string

const (
	KindAccount   Kind = "simple-account"
	KindFactory   Kind = "account-factory"
	KindPaymaster Kind = "verifying-paymaster"
	KindBurner    Kind = "gas-burner"
	KindCounter   Kind = "counter"
	KindReverter  Kind = "reverter"
)

// Kinds lists every known contract kind.
var Kinds = []Kind{KindAccount, KindFactory, KindPaymaster, KindBurner, KindCounter, KindReverter}

// Code returns the code stored for a contract of the given kind.
func Code(kind Kind) []byte {
	return []byte(kind)
}

// Valid reports whether kind names a known contract.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}

	return false
}

// Registry returns a vm.Registry resolving every contract kind.
func Registry() vm.Registry {
	return vm.Registry{
		string(KindAccount):   &SimpleAccount{},
		string(KindFactory):   &AccountFactory{},
		string(KindPaymaster): &VerifyingPaymaster{},
		string(KindBurner):    &GasBurner{},
		string(KindCounter):   &Counter{},
		string(KindReverter):  &Reverter{},
	}
}

func slot(n uint64) common.Hash {
	return common.Hash(uint256.NewInt(n).Bytes32())
}

func increment(f *vm.Frame, key common.Hash) (*uint256.Int, error) {
	v, err := f.LoadUint(key)
	if err != nil {
		return nil, err
	}

	v.AddUint64(v, 1)

	if err := f.StoreUint(key, v); err != nil {
		return nil, err
	}

	return v, nil
}

// burnExtra consumes the gas amount configured in a storage slot.
func burnExtra(f *vm.Frame, key common.Hash) error {
	extra, err := f.LoadUint(key)
	if err != nil {
		return err
	}

	if extra.IsZero() {
		return nil
	}

	amount := uint64(math.MaxUint64)
	if extra.IsUint64() {
		amount = extra.Uint64()
	}

	return f.Consume(amount)
}

func uint64Word(v uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v)

	return out
}
