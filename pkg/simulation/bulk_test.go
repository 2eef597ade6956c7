package simulation

import (
	"errors"
	"testing"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/ethpandaops/userop-simulator/internal/testutil"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/ethpandaops/userop-simulator/pkg/vm"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errItem = errors.New("item failed")

func TestBulk_CollectsEverySlot(t *testing.T) {
	w := testutil.NewWorld(t)
	before := w.State.Digest()

	var balances []uint64

	results := Bulk(w.VM, []uint64{1, 2, 3}, func(n uint64) (*uint64, error) {
		w.State.AddBalance(testutil.Counter, uint256.NewInt(n))

		if n == 2 {
			return nil, errItem
		}

		balance := w.State.GetBalance(testutil.Counter).Uint64()
		balances = append(balances, balance)

		return &balance, nil
	})

	require.Len(t, results, 3)

	assert.False(t, results[0].Failed())
	assert.Equal(t, uint64(1), *results[0].Result)

	assert.True(t, results[1].Failed())
	assert.Nil(t, results[1].Result)
	assert.ErrorIs(t, results[1].Err, errItem)

	// The failed item's effect is rolled back, the first item's is kept.
	assert.False(t, results[2].Failed())
	assert.Equal(t, uint64(4), *results[2].Result)

	assert.Equal(t, []uint64{1, 4}, balances)
	assert.Equal(t, before, w.State.Digest())
}

func TestLast(t *testing.T) {
	one, three := 1, 3
	payload := vm.Revert("last failed")

	tests := []struct {
		name     string
		results  []BulkResult[int]
		expected *int
		err      error
		exact    bool
	}{
		{
			name:    "empty",
			results: nil,
			err:     ErrEmptyBatch,
		},
		{
			name:     "last succeeded",
			results:  []BulkResult[int]{{Result: &one}, {Err: errItem}, {Result: &three}},
			expected: &three,
		},
		{
			name:    "last failed with payload",
			results: []BulkResult[int]{{Result: &one}, {Err: payload}},
			err:     payload,
			exact:   true,
		},
		{
			name:    "last failed without payload",
			results: []BulkResult[int]{{Result: &one}, {Err: errItem}},
			err:     ErrSimulationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Last(tt.results)

			if tt.err == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, res)

				return
			}

			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.err)

			if tt.exact {
				assert.Same(t, tt.err, err)
			}
		})
	}
}

func TestLast_PreservesFailedOp(t *testing.T) {
	failed := userop.NewFailedOp(0, "AA20 account not deployed")

	_, err := Last([]BulkResult[int]{{Err: failed}})

	var got *userop.FailedOp
	require.True(t, errors.As(err, &got))
	assert.Equal(t, failed.Data(), got.Data())
	assert.Equal(t, failed.Data(), FailurePayload(err))
}

func TestBulk_NothingToRun(t *testing.T) {
	w := testutil.NewWorld(t)

	results := Bulk(w.VM, []common.Address{}, func(common.Address) (*int, error) {
		return nil, nil
	})

	assert.Empty(t, results)
}
