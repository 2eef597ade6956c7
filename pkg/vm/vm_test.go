package vm

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/pkg/gas"
	"github.com/ethpandaops/userop-simulator/pkg/state"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	caller  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	target  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	counter = common.HexToHash("0x00")
)

// writer stores the input length then burns the amount encoded in the first 8 bytes.
type writer struct{}

func (writer) Run(f *Frame, input []byte) ([]byte, error) {
	if err := f.StoreUint(counter, uint256.NewInt(uint64(len(input)))); err != nil {
		return nil, err
	}

	if len(input) >= 8 {
		if err := f.Consume(binary.BigEndian.Uint64(input[:8])); err != nil {
			return nil, err
		}
	}

	return []byte{0x01}, nil
}

type failing struct{}

func (failing) Run(f *Frame, _ []byte) ([]byte, error) {
	if err := f.StoreUint(counter, uint256.NewInt(9)); err != nil {
		return nil, err
	}

	return nil, Revert("nope")
}

type recursive struct{}

func (recursive) Run(f *Frame, input []byte) ([]byte, error) {
	return f.Call(f.Self, input, f.Gas.Remaining())
}

func newTestVM(t *testing.T, code string) *VM {
	t.Helper()

	st := state.New()
	st.SetCode(target, []byte(code))

	return New(st, Registry{
		"writer":    writer{},
		"failing":   failing{},
		"recursive": recursive{},
	})
}

func burn(amount uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, amount)

	return out
}

func TestVM_CallChargesColdThenWarmAccess(t *testing.T) {
	v := newTestVM(t, "")

	m := gas.NewMeter(1_000_000)
	_, err := v.Call(m, caller, target, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(ColdAccountCost), m.Used())

	_, err = v.Call(m, caller, target, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(ColdAccountCost+WarmAccessCost), m.Used())
}

func TestVM_CallSuccessKeepsState(t *testing.T) {
	v := newTestVM(t, "writer")

	m := gas.NewMeter(1_000_000)
	ret, err := v.Call(m, caller, target, burn(10))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, ret)
	assert.Equal(t, common.BigToHash(uint256.NewInt(8).ToBig()), v.State().GetState(target, counter))

	// cold account + cold sstore set + burn
	assert.Equal(t, uint64(ColdAccountCost+SstoreSetGas+ColdSloadCost+10), m.Used())
}

func TestVM_OutOfGasDrainsFrameAndReverts(t *testing.T) {
	v := newTestVM(t, "writer")

	m := gas.NewMeter(1_000_000)
	_, err := v.Exec(m, caller, target, 50_000, CallInput(burn(100_000)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, gas.ErrOutOfGas))
	assert.Equal(t, uint64(ColdAccountCost+50_000), m.Used())
	assert.Equal(t, common.Hash{}, v.State().GetState(target, counter))
}

func TestVM_RevertReturnsUnusedGas(t *testing.T) {
	v := newTestVM(t, "failing")

	m := gas.NewMeter(1_000_000)
	_, err := v.Exec(m, caller, target, 50_000, CallInput(nil))
	require.Error(t, err)

	data := RevertData(err)
	reason, ok := RevertReason(data)
	require.True(t, ok)
	assert.Equal(t, "nope", reason)
	assert.Less(t, m.Used(), uint64(50_000))
	assert.Equal(t, common.Hash{}, v.State().GetState(target, counter))
}

func TestVM_ExecFrameUsesMeterDirectly(t *testing.T) {
	v := newTestVM(t, "writer")

	m := gas.NewMeter(SstoreSetGas + ColdSloadCost + 5)
	_, err := v.ExecFrame(m, caller, target, CallInput(burn(5)))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), m.Remaining())
}

func TestVM_InvalidCode(t *testing.T) {
	v := newTestVM(t, "garbage")

	m := gas.NewMeter(100_000)
	_, err := v.Exec(m, caller, target, 10_000, CallInput(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCode))
	assert.Equal(t, uint64(ColdAccountCost+10_000), m.Used())
}

func TestVM_DepthLimit(t *testing.T) {
	v := newTestVM(t, "recursive")

	_, err := v.Call(gas.NewMeter(10_000_000), caller, target, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDepth))
}

func TestRevertError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *RevertError
		want string
	}{
		{name: "reason", err: Revert("AA20 account not deployed"), want: "execution reverted: AA20 account not deployed"},
		{name: "empty", err: &RevertError{}, want: "execution reverted"},
		{name: "raw", err: &RevertError{Data: []byte{0xde, 0xad}}, want: "execution reverted: 0xdead"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
			assert.True(t, errors.Is(tt.err, ErrExecutionReverted))
		})
	}
}

func TestFrame_Deploy(t *testing.T) {
	v := newTestVM(t, "")
	f := v.Frame(gas.NewMeter(1_000_000), caller, caller)

	addr := common.HexToAddress("0x3000000000000000000000000000000000000003")
	require.NoError(t, f.Deploy(addr, []byte("writer"), map[common.Hash]common.Hash{counter: common.HexToHash("0x05")}))
	assert.Equal(t, 6, v.CodeSize(addr))
	assert.Equal(t, common.HexToHash("0x05"), v.State().GetState(addr, counter))

	err := f.Deploy(addr, []byte("writer"), nil)
	assert.True(t, errors.Is(err, ErrCodeCollision))
}
