package simulation

import (
	"errors"
	"fmt"
)

var (
	// ErrSimulationOutOfGas is matched by every *SimulationOutOfGasError.
	ErrSimulationOutOfGas = errors.New("simulation out of gas")
	// ErrSimulationFailed is returned by the Last variants when the final item
	// failed without a payload worth re-raising.
	ErrSimulationFailed = errors.New("simulation failed")
	// ErrEmptyBatch is returned by the Last variants for an empty input.
	ErrEmptyBatch = errors.New("no operations to simulate")
	// ErrNoOperation is returned for simulation arguments without an operation.
	ErrNoOperation = errors.New("simulation args carry no operation")
)

// SimulationOutOfGasError aborts a search whose estimator budget can no longer
// fund a trial. It carries the bounds reached so far.
type SimulationOutOfGasError struct {
	OptimalGas uint64
	MinGas     uint64
	MaxGas     uint64
}

func (e *SimulationOutOfGasError) Error() string {
	return fmt.Sprintf("%s: optimalGas=%d minGas=%d maxGas=%d", ErrSimulationOutOfGas, e.OptimalGas, e.MinGas, e.MaxGas)
}

func (e *SimulationOutOfGasError) Unwrap() error {
	return ErrSimulationOutOfGas
}
