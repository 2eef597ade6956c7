package simulation

import (
	"math/big"
	"testing"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/internal/testutil"
	"github.com/ethpandaops/userop-simulator/pkg/contracts"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidConfig(t *testing.T) {
	w := testutil.NewWorld(t)

	_, err := New(testutil.NewLogger(), nil, w.VM, w.EntryPoint)
	require.Error(t, err)

	_, err = New(testutil.NewLogger(), &Config{GasLimit: 10_000}, w.VM, w.EntryPoint)
	require.Error(t, err)
}

func TestNew_ConfigHasDefaults(t *testing.T) {
	w := testutil.NewWorld(t)

	s, err := New(testutil.NewLogger(), &Config{ToleranceDelta: 1}, w.VM, w.EntryPoint)
	require.NoError(t, err)

	cfg := s.Config()
	assert.Equal(t, uint64(1), cfg.ToleranceDelta)
	assert.Equal(t, uint64(DefaultGasAllowance), cfg.GasAllowance)
	assert.Equal(t, uint64(DefaultSideEffectGasLimit), cfg.SideEffectGasLimit)
}

func TestSimulator_SimulateValidation(t *testing.T) {
	w := testutil.NewWorld(t)
	s := newTestSimulator(t, w)
	before := w.State.Digest()

	op := testutil.Operation(testutil.Account, 0, testutil.Counter, nil)

	res, err := s.SimulateValidation(op)
	require.NoError(t, err)

	assert.Greater(t, res.ReturnInfo.PreOpGas, op.PreVerificationGas)
	assert.Equal(t, op.RequiredPrefund(), res.ReturnInfo.Prefund)
	assert.True(t, res.ReturnInfo.AccountValidationData.IsZero())
	assert.Equal(t, userop.AggregatorStakeInfo{}, res.AggregatorInfo)

	assert.Equal(t, before, w.State.Digest())
	assert.Equal(t, int64(0), w.EntryPoint.NonceOf(testutil.Account, big.NewInt(0)).Int64())
}

func TestSimulator_SimulateValidationDiagnostics(t *testing.T) {
	tests := []struct {
		name   string
		op     *userop.Operation
		reason string
	}{
		{
			name:   "account not deployed",
			op:     testutil.Operation(testutil.Undeployed, 0, testutil.Counter, nil),
			reason: "AA20 account not deployed",
		},
		{
			name:   "paymaster not deployed",
			op:     testutil.WithPaymaster(testutil.Operation(testutil.Account, 0, testutil.Counter, nil), testutil.Undeployed, nil),
			reason: "AA30 paymaster not deployed",
		},
		{
			name:   "paymaster not deployed for undeployed sender",
			op:     testutil.WithPaymaster(testutil.Operation(testutil.Undeployed, 0, testutil.Counter, nil), testutil.Undeployed, nil),
			reason: "AA30 paymaster not deployed",
		},
		{
			name:   "engine failure",
			op:     testutil.Operation(testutil.Account, 7, testutil.Counter, nil),
			reason: "AA25 invalid account nonce",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.NewWorld(t)
			s := newTestSimulator(t, w)

			_, err := s.SimulateValidation(tt.op)
			requireFailedOp(t, err, tt.reason)
		})
	}
}

func TestSimulator_SimulateValidationAggregator(t *testing.T) {
	w := testutil.NewWorld(t)
	s := newTestSimulator(t, w)

	aggregator := common.HexToAddress("0x7000000000000000000000000000000000000007")
	w.EntryPoint.AddStake(aggregator, uint256.NewInt(1_000), 86_400)

	op := testutil.Operation(testutil.Account, 0, testutil.Counter, nil)
	op.Signature = append([]byte{contracts.SignatureAggregated}, aggregator.Bytes()...)

	res, err := s.SimulateValidation(op)
	require.NoError(t, err)

	assert.Equal(t, aggregator, res.AggregatorInfo.Aggregator)
	assert.Equal(t, uint256.NewInt(1_000), res.AggregatorInfo.StakeInfo.Stake)
	assert.Equal(t, uint64(86_400), res.AggregatorInfo.StakeInfo.UnstakeDelaySec)

	// A signature failure is not an aggregator.
	op.Signature = []byte{contracts.SignatureInvalid}

	res, err = s.SimulateValidation(op)
	require.NoError(t, err)
	assert.Equal(t, userop.AggregatorStakeInfo{}, res.AggregatorInfo)
	assert.True(t, userop.ParseValidationData(res.ReturnInfo.AccountValidationData).SignatureFailed())
}

func TestSimulator_SimulateValidationBulkAndLast(t *testing.T) {
	w := testutil.NewWorld(t)
	s := newTestSimulator(t, w)
	before := w.State.Digest()

	ops := []*userop.Operation{
		testutil.Operation(testutil.Account, 0, testutil.Counter, nil),
		testutil.Operation(testutil.Undeployed, 0, testutil.Counter, nil),
		testutil.Operation(testutil.Account, 1, testutil.Counter, nil),
	}

	results := s.SimulateValidationBulk(ops)
	require.Len(t, results, 3)

	assert.False(t, results[0].Failed())
	assert.True(t, results[1].Failed())
	requireFailedOp(t, results[1].Err, "AA20 account not deployed")
	assert.False(t, results[2].Failed())

	last, err := s.SimulateValidationLast(ops)
	require.NoError(t, err)
	assert.Equal(t, results[2].Result, last)

	assert.Equal(t, before, w.State.Digest())

	// The final item failing is re-raised.
	_, err = s.SimulateValidationLast(ops[:2])
	requireFailedOp(t, err, "AA20 account not deployed")

	_, err = s.SimulateValidationLast([]*userop.Operation{ops[0], nil})
	assert.ErrorIs(t, err, ErrSimulationFailed)

	_, err = s.SimulateValidationLast(nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestSimulator_SimulateHandleOp(t *testing.T) {
	w := testutil.NewWorld(t)
	s := newTestSimulator(t, w)
	before := w.State.Digest()

	burner := testutil.Burner
	op := testutil.Operation(testutil.Account, 0, testutil.Counter, nil)

	res, err := s.SimulateHandleOp(userop.SimulationArgs{Op: op, Target: &burner, TargetCallData: contracts.BurnCallData(0)})
	require.NoError(t, err)

	assert.True(t, res.ExecutionSuccess)
	assert.False(t, res.Paid.IsZero())
	assert.Greater(t, res.PreOpGas, op.PreVerificationGas)
	assert.True(t, res.TargetSuccess)

	one := uint256.NewInt(1).Bytes32()
	assert.Equal(t, one[:], res.TargetResult)

	assert.Equal(t, before, w.State.Digest())
}

func TestSimulator_SimulateHandleOpWithPaymaster(t *testing.T) {
	w := testutil.NewWorld(t)
	s := newTestSimulator(t, w)

	op := testutil.WithPaymaster(testutil.Operation(testutil.Account, 0, testutil.Counter, nil), testutil.Paymaster, nil)

	res, err := s.SimulateHandleOp(userop.SimulationArgs{Op: op})
	require.NoError(t, err)

	assert.True(t, res.ExecutionSuccess)
	assert.Equal(t, op.PaymasterVerificationGasLimit(), res.PaymasterVerificationGasLimit)
	assert.Equal(t, op.PaymasterPostOpGasLimit(), res.PaymasterPostOpGasLimit)
	assert.False(t, res.TargetSuccess)
	assert.Nil(t, res.TargetResult)
}

func TestSimulator_SimulateHandleOpBulkAndLast(t *testing.T) {
	w := testutil.NewWorld(t)
	s := newTestSimulator(t, w)

	reverter := testutil.Reverter
	args := []userop.SimulationArgs{
		{Op: testutil.Operation(testutil.Account, 0, testutil.Counter, nil)},
		{Op: testutil.Operation(testutil.Account, 0, testutil.Counter, nil)},
		{Op: testutil.Operation(testutil.Account, 1, testutil.Counter, nil), Target: &reverter},
	}

	results := s.SimulateHandleOpBulk(args)
	require.Len(t, results, 3)

	assert.False(t, results[0].Failed())
	requireFailedOp(t, results[1].Err, "AA25 invalid account nonce")
	require.False(t, results[2].Failed())
	assert.False(t, results[2].Result.TargetSuccess)

	last, err := s.SimulateHandleOpLast(args)
	require.NoError(t, err)
	assert.Equal(t, results[2].Result, last)
}

func TestSimulator_EstimateThenVerifyCallGas(t *testing.T) {
	w := testutil.NewWorld(t)
	s := newTestSimulator(t, w)

	op := testutil.Operation(testutil.Account, 0, testutil.Burner, contracts.BurnCallData(30_000))

	res, err := s.BinarySearchCallGasLimit(nil, userop.SimulationArgs{Op: op}, 1_000, 1, 1_000_000)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Greater(t, res.GasUsed, uint64(30_000))

	withCallGas := func(limit uint64) *userop.Operation {
		clone := *op
		clone.AccountGasLimits = userop.PackGasLimits(op.VerificationGasLimit(), limit)

		return &clone
	}

	exact, err := s.SimulateHandleOp(userop.SimulationArgs{Op: withCallGas(res.GasUsed)})
	require.NoError(t, err)
	assert.True(t, exact.ExecutionSuccess)

	short, err := s.SimulateHandleOp(userop.SimulationArgs{Op: withCallGas(res.GasUsed - 1)})
	require.NoError(t, err)
	assert.False(t, short.ExecutionSuccess)
}

func TestSimulator_EstimateThenVerifyVerificationGas(t *testing.T) {
	w := testutil.NewWorld(t)
	w.SetUint(testutil.Account, contracts.AccountValidationGasSlot, 40_000)
	s := newTestSimulator(t, w)

	op := testutil.Operation(testutil.Account, 0, testutil.Counter, nil)

	res, err := s.BinarySearchVerificationGasLimit(nil, userop.SimulationArgs{Op: op}, 1_000, 1, 1_000_000)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Greater(t, res.GasUsed, uint64(40_000))

	withVerificationGas := func(limit uint64) *userop.Operation {
		clone := *op
		clone.AccountGasLimits = userop.PackGasLimits(limit, op.CallGasLimit())

		return &clone
	}

	_, err = s.SimulateValidation(withVerificationGas(res.GasUsed))
	require.NoError(t, err)

	_, err = s.SimulateValidation(withVerificationGas(res.GasUsed - 1))
	require.Error(t, err)
}

func TestSimulator_PaymasterVerificationGas(t *testing.T) {
	w := testutil.NewWorld(t)
	w.SetUint(testutil.Paymaster, contracts.PaymasterValidationGasSlot, 30_000)
	s := newTestSimulator(t, w)

	op := testutil.WithPaymaster(testutil.Operation(testutil.Account, 0, testutil.Counter, nil), testutil.Paymaster, nil)

	res, err := s.BinarySearchPaymasterVerificationGasLimit(nil, userop.SimulationArgs{Op: op}, 1_000, 1, 1_000_000)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Greater(t, res.GasUsed, uint64(30_000))

	clone := *op
	clone.PaymasterAndData = userop.PackPaymasterAndData(testutil.Paymaster, res.GasUsed, op.PaymasterPostOpGasLimit(), nil)

	_, err = s.SimulateValidation(&clone)
	require.NoError(t, err)

	_, err = s.BinarySearchPaymasterVerificationGasLimit(nil, userop.SimulationArgs{
		Op: testutil.Operation(testutil.Account, 0, testutil.Counter, nil),
	}, 0, 1, 0)
	assert.ErrorIs(t, err, userop.ErrNoPaymaster)
}

func TestSimulator_PaymasterVerificationGasAfterAccountValidation(t *testing.T) {
	w := testutil.NewWorld(t)
	s := newTestSimulator(t, w)
	before := w.State.Digest()

	var salt [32]byte
	salt[31] = 7

	sender := contracts.AccountAddress(testutil.Factory, salt)
	op := testutil.WithPaymaster(testutil.Operation(sender, 0, testutil.Counter, nil), testutil.Paymaster, nil)
	op.InitCode = userop.PackInitCode(testutil.Factory, contracts.FactoryData(salt, common.Address{}))

	res, err := s.BinarySearchPaymasterVerificationGasLimit(nil, userop.SimulationArgs{Op: op}, 1_000, 1, 1_000_000)
	require.NoError(t, err)
	require.True(t, res.Success)

	clone := *op
	clone.PaymasterAndData = userop.PackPaymasterAndData(testutil.Paymaster, res.GasUsed, op.PaymasterPostOpGasLimit(), nil)

	_, err = s.SimulateValidation(&clone)
	require.NoError(t, err)
	assert.Equal(t, before, w.State.Digest())

	stale := testutil.WithPaymaster(testutil.Operation(testutil.Account, 1, testutil.Counter, nil), testutil.Paymaster, nil)

	_, err = s.BinarySearchPaymasterVerificationGasLimit(nil, userop.SimulationArgs{Op: stale}, 1_000, 1, 1_000_000)
	requireFailedOp(t, err, "AA25 invalid account nonce")
}

func TestSimulator_EstimateReplaysQueued(t *testing.T) {
	w := testutil.NewWorld(t)
	s := newTestSimulator(t, w)

	target := userop.SimulationArgs{Op: testutil.Operation(testutil.Account, 1, testutil.Counter, nil)}

	_, err := s.BinarySearchCallGasLimit(nil, target, 0, 1_000, 0)
	requireFailedOp(t, err, "AA25 invalid account nonce")

	queued := []userop.SimulationArgs{{Op: testutil.Operation(testutil.Account, 0, testutil.Counter, nil)}}

	res, err := s.BinarySearchCallGasLimit(queued, target, 0, 1_000, 0)
	require.NoError(t, err)
	assert.True(t, res.Success)

	burner := testutil.Burner
	queued[0].Target = &burner
	queued[0].TargetCallData = contracts.BurnCallData(1 << 62)

	halted, err := s.BinarySearchCallGasLimit(queued, target, 0, 1_000, 0)
	require.NoError(t, err)
	assert.True(t, halted.Success)
	assert.Equal(t, res.GasUsed, halted.GasUsed)
}

func TestSimulator_EstimateIdempotentAndIsolated(t *testing.T) {
	w := testutil.NewWorld(t)
	s := newTestSimulator(t, w)
	before := w.State.Digest()

	args := userop.SimulationArgs{Op: testutil.Operation(testutil.Account, 0, testutil.Burner, contracts.BurnCallData(12_345))}

	first, err := s.BinarySearchCallGasLimit(nil, args, 0, 1, 0)
	require.NoError(t, err)

	second, err := s.BinarySearchCallGasLimit(nil, args, 0, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, first.GasUsed, second.GasUsed)
	assert.Equal(t, first.Success, second.Success)
	assert.Equal(t, before, w.State.Digest())
}

func TestSimulator_EstimateFailingProbe(t *testing.T) {
	w := testutil.NewWorld(t)
	s := newTestSimulator(t, w)

	op := testutil.Operation(testutil.Account, 0, testutil.Reverter, []byte{0xca, 0xfe})

	res, err := s.BinarySearchCallGasLimit(nil, userop.SimulationArgs{Op: op}, 0, 1, 0)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, uint64(0), res.GasUsed)
	assert.Equal(t, []byte{0xca, 0xfe}, res.ReturnData)
}

func TestSimulator_EstimateBulkAndLast(t *testing.T) {
	w := testutil.NewWorld(t)
	s := newTestSimulator(t, w)

	reqs := []SearchRequest{
		{Kind: SearchCallGas, Target: userop.SimulationArgs{Op: testutil.Operation(testutil.Account, 0, testutil.Counter, nil)}},
		{Kind: SearchPaymasterVerificationGas, Target: userop.SimulationArgs{Op: testutil.Operation(testutil.Account, 1, testutil.Counter, nil)}},
		{Kind: SearchVerificationGas, Target: userop.SimulationArgs{Op: testutil.Operation(testutil.Account, 1, testutil.Counter, nil)}},
	}

	results := s.EstimateBulk(reqs)
	require.Len(t, results, 3)

	assert.False(t, results[0].Failed())
	assert.ErrorIs(t, results[1].Err, userop.ErrNoPaymaster)
	require.False(t, results[2].Failed())
	assert.True(t, results[2].Result.Success)

	last, err := s.EstimateLast(reqs)
	require.NoError(t, err)
	assert.Equal(t, results[2].Result.GasUsed, last.GasUsed)
}

func TestSearchKind_String(t *testing.T) {
	assert.Equal(t, "call_gas", SearchCallGas.String())
	assert.Equal(t, "verification_gas", SearchVerificationGas.String())
	assert.Equal(t, "paymaster_verification_gas", SearchPaymasterVerificationGas.String())
	assert.Equal(t, "unknown", SearchKind(42).String())

	_, err := SearchKind(42).phase()
	assert.Error(t, err)
}

func TestParseSearchKind(t *testing.T) {
	for _, k := range []SearchKind{SearchCallGas, SearchVerificationGas, SearchPaymasterVerificationGas} {
		parsed, err := ParseSearchKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseSearchKind("unknown")
	assert.Error(t, err)
}
