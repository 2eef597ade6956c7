package simulation

import "fmt"

// BulkResult is one slot of a bulk pass. Exactly one of Result and Err is set.
type BulkResult[T any] struct {
	Result *T
	Err    error
}

// Failed reports whether the item failed.
func (r BulkResult[T]) Failed() bool {
	return r.Err != nil
}

// Bulk applies fn to every item in order, letting later items see the state
// earlier successful items left behind. A failed item is rolled back on its
// own and the pass carries on. The world is restored once all items ran.
func Bulk[I, T any](world World, items []I, fn func(item I) (*T, error)) []BulkResult[T] {
	outer := world.Snapshot()
	defer world.RevertToSnapshot(outer)

	results := make([]BulkResult[T], len(items))

	for i, item := range items {
		snap := world.Snapshot()

		res, err := fn(item)
		if err != nil {
			world.RevertToSnapshot(snap)

			results[i] = BulkResult[T]{Err: err}

			continue
		}

		results[i] = BulkResult[T]{Result: res}
	}

	return results
}

// Last returns the final slot of a bulk pass. A failure of the final item is
// re-raised with its payload intact. Failures without a payload are reported
// as ErrSimulationFailed.
func Last[T any](results []BulkResult[T]) (*T, error) {
	if len(results) == 0 {
		return nil, ErrEmptyBatch
	}

	last := results[len(results)-1]
	if last.Err == nil {
		return last.Result, nil
	}

	if len(revertPayload(last.Err)) > 0 {
		return nil, last.Err
	}

	return nil, fmt.Errorf("%w: %w", ErrSimulationFailed, last.Err)
}

// FailurePayload returns the bytes a failed item reverted with, if any.
func FailurePayload(err error) []byte {
	return revertPayload(err)
}

