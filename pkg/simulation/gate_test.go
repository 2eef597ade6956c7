package simulation

import (
	"errors"
	"testing"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/internal/testutil"
	"github.com/ethpandaops/userop-simulator/pkg/gas"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/ethpandaops/userop-simulator/pkg/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_Check(t *testing.T) {
	tests := []struct {
		name      string
		sender    common.Address
		paymaster *common.Address
		reason    string
	}{
		{name: "deployed sender", sender: testutil.Account},
		{name: "undeployed sender", sender: testutil.Undeployed, reason: "AA20 account not deployed"},
		{name: "deployed paymaster", sender: testutil.Account, paymaster: &testutil.Paymaster},
		{name: "undeployed paymaster", sender: testutil.Account, paymaster: &testutil.Undeployed, reason: "AA30 paymaster not deployed"},
		{name: "both undeployed", sender: testutil.Undeployed, paymaster: &testutil.Undeployed, reason: "AA30 paymaster not deployed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.NewWorld(t)
			gate := NewGate(testutil.NewLogger(), w.VM, w.EntryPoint)

			op := testutil.Operation(tt.sender, 0, testutil.Counter, nil)
			if tt.paymaster != nil {
				testutil.WithPaymaster(op, *tt.paymaster, nil)
			}

			err := gate.Check(NewCallContext("test", DefaultGasLimit), op)
			if tt.reason == "" {
				require.NoError(t, err)

				return
			}

			requireFailedOp(t, err, tt.reason)
		})
	}
}

func TestGate_RederivesSenderCreator(t *testing.T) {
	w := testutil.NewWorld(t)
	gate := NewGate(testutil.NewLogger(), w.VM, w.EntryPoint)

	cc := NewCallContext("test", DefaultGasLimit)
	cc.SenderCreator = testutil.Counter

	require.NoError(t, gate.Check(cc, testutil.Operation(testutil.Account, 0, testutil.Counter, nil)))
	assert.Equal(t, w.EntryPoint.SenderCreator(), cc.SenderCreator)
}

func TestGate_ChargesAccessWithoutKeepingIt(t *testing.T) {
	w := testutil.NewWorld(t)
	gate := NewGate(testutil.NewLogger(), w.VM, w.EntryPoint)
	before := w.State.Digest()

	cc := NewCallContext("test", DefaultGasLimit)
	require.NoError(t, gate.Check(cc, testutil.Operation(testutil.Account, 0, testutil.Counter, nil)))

	assert.Equal(t, uint64(vm.ColdAccountCost), cc.Gas.Used())
	assert.False(t, w.State.AddressInAccessList(testutil.Account))
	assert.Equal(t, before, w.State.Digest())
}

func TestGate_FailsWhenAccessCannotBePaid(t *testing.T) {
	w := testutil.NewWorld(t)
	gate := NewGate(testutil.NewLogger(), w.VM, w.EntryPoint)

	err := gate.Check(NewCallContext("test", vm.ColdAccountCost-1), testutil.Operation(testutil.Account, 0, testutil.Counter, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, gas.ErrOutOfGas)

	var failed *userop.FailedOp
	assert.False(t, errors.As(err, &failed))
}
