package userop

import (
	"errors"
	"math/big"
	"testing"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sender    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	paymaster = common.HexToAddress("0x2222222222222222222222222222222222222222")
	factory   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	entry     = common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")
)

func newOp() *Operation {
	return &Operation{
		Sender:             sender,
		Nonce:              big.NewInt(0),
		InitCode:           PackInitCode(factory, []byte{0xaa}),
		CallData:           []byte{0x01, 0x02},
		AccountGasLimits:   PackGasLimits(150_000, 80_000),
		PreVerificationGas: 21_000,
		GasFees:            PackGasFees(uint256.NewInt(2), uint256.NewInt(10)),
		PaymasterAndData:   PackPaymasterAndData(paymaster, 60_000, 30_000, []byte{0xbe, 0xef}),
		Signature:          []byte{0x01},
	}
}

func TestOperation_PackedFields(t *testing.T) {
	op := newOp()

	assert.Equal(t, uint64(150_000), op.VerificationGasLimit())
	assert.Equal(t, uint64(80_000), op.CallGasLimit())
	assert.Equal(t, uint64(2), op.MaxPriorityFeePerGas().Uint64())
	assert.Equal(t, uint64(10), op.MaxFeePerGas().Uint64())
	assert.Equal(t, factory, op.Factory())
	assert.Equal(t, []byte{0xaa}, op.FactoryData())
	assert.True(t, op.HasPaymaster())
	assert.Equal(t, paymaster, op.Paymaster())
	assert.Equal(t, uint64(60_000), op.PaymasterVerificationGasLimit())
	assert.Equal(t, uint64(30_000), op.PaymasterPostOpGasLimit())
	assert.Equal(t, []byte{0xbe, 0xef}, op.PaymasterData())
	assert.False(t, op.GasValuesOverflow())
}

func TestOperation_ShortPaymasterAndData(t *testing.T) {
	op := newOp()
	op.PaymasterAndData = paymaster.Bytes()

	assert.True(t, op.HasPaymaster())
	assert.Equal(t, uint64(0), op.PaymasterVerificationGasLimit())
	assert.Nil(t, op.PaymasterData())

	op.PaymasterAndData = nil
	assert.False(t, op.HasPaymaster())
	assert.Equal(t, common.Address{}, op.Paymaster())
}

func TestOperation_RequiredPrefund(t *testing.T) {
	op := newOp()

	// (150k + 80k + 60k + 30k + 21k) * 10
	assert.Equal(t, uint64(3_410_000), op.RequiredPrefund().Uint64())
}

func TestOperation_GasValuesOverflow(t *testing.T) {
	op := newOp()

	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 121)
	op.GasFees = PackGasFees(uint256.NewInt(1), huge)

	assert.True(t, op.GasValuesOverflow())
}

func TestOperation_Nonce(t *testing.T) {
	op := newOp()
	op.Nonce = new(big.Int).Add(new(big.Int).Lsh(big.NewInt(7), 64), big.NewInt(3))

	assert.Equal(t, int64(7), op.NonceKey().Int64())
	assert.Equal(t, uint64(3), op.NonceSequence())
}

func TestOperation_Hash(t *testing.T) {
	op := newOp()
	chainID := big.NewInt(1)

	h := op.Hash(entry, chainID)
	assert.Equal(t, h, op.Hash(entry, chainID))
	assert.NotEqual(t, h, op.Hash(entry, big.NewInt(2)))
	assert.NotEqual(t, h, op.Hash(sender, chainID))

	// The signature is not part of the hash.
	op.Signature = []byte{0xff}
	assert.Equal(t, h, op.Hash(entry, chainID))

	op.CallData = []byte{0x03}
	assert.NotEqual(t, h, op.Hash(entry, chainID))
}

func TestParseValidationData(t *testing.T) {
	tests := []struct {
		name       string
		data       ValidationData
		wantUntil  uint64
		aggregated bool
		failed     bool
	}{
		{name: "success", data: ValidationData{}, wantUntil: maxUint48},
		{name: "failed", data: ValidationData{Aggregator: SigValidationFailed}, wantUntil: maxUint48, failed: true},
		{name: "aggregator with window", data: ValidationData{Aggregator: paymaster, ValidAfter: 10, ValidUntil: 20}, wantUntil: 20, aggregated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseValidationData(tt.data.Pack())

			assert.Equal(t, tt.data.Aggregator, got.Aggregator)
			assert.Equal(t, tt.data.ValidAfter, got.ValidAfter)
			assert.Equal(t, tt.wantUntil, got.ValidUntil)
			assert.Equal(t, tt.aggregated, got.Aggregated())
			assert.Equal(t, tt.failed, got.SignatureFailed())
		})
	}
}

func TestFailedOp(t *testing.T) {
	err := error(NewFailedOp(0, "AA20 account not deployed"))

	assert.True(t, errors.Is(err, ErrFailedOp))
	assert.Equal(t, `FailedOp(0, "AA20 account not deployed")`, err.Error())

	var failed *FailedOp
	require.True(t, errors.As(err, &failed))

	decoded, ok := DecodeFailedOp(failed.Data())
	require.True(t, ok)
	assert.Equal(t, failed, decoded)

	withRevert := &FailedOp{OpIndex: 2, Reason: "AA23 reverted", Inner: []byte{0xde, 0xad}}
	decoded, ok = DecodeFailedOp(withRevert.Data())
	require.True(t, ok)
	assert.Equal(t, withRevert, decoded)

	_, ok = DecodeFailedOp([]byte{0x01, 0x02, 0x03, 0x04})
	assert.False(t, ok)
}
