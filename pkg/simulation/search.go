package simulation

import (
	"math"

	pcommon "github.com/ethpandaops/userop-simulator/pkg/common"
	"github.com/sirupsen/logrus"
)

// TargetCallResult is the outcome of a gas search.
type TargetCallResult struct {
	// GasUsed is the smallest budget found at which the trial succeeds.
	GasUsed uint64
	// Success is the outcome of the first probe.
	Success bool
	// ReturnData is the result of the last successful trial, or the probe's
	// failure payload.
	ReturnData []byte
}

// Searcher bisects the budget of a trial.
type Searcher struct {
	log          logrus.FieldLogger
	dry          *DryRun
	probeReserve uint64
	safetyMargin uint64
}

// NewSearcher creates a Searcher running trials through dry.
func NewSearcher(log logrus.FieldLogger, dry *DryRun, probeReserve, safetyMargin uint64) *Searcher {
	return &Searcher{
		log:          log.WithField("component", "searcher"),
		dry:          dry,
		probeReserve: probeReserve,
		safetyMargin: safetyMargin,
	}
}

// Search finds the smallest budget at which trial succeeds.
//
// Without a seed the first probe runs with everything the estimator has left
// minus the probe reserve and the gas it consumed becomes the lower bound.
// With a seed the probe only verifies the trial can succeed at all. The search
// window is [minGas, minGas+allowance] and narrows until fewer than tolerance
// candidates remain. When the estimator can no longer fund a trial the search
// stops with a *SimulationOutOfGasError.
func (s *Searcher) Search(cc *CallContext, trial Trial, seed, tolerance, allowance uint64) (*TargetCallResult, error) {
	var probeBudget uint64
	if rem := cc.Gas.Remaining(); rem > s.probeReserve {
		probeBudget = rem - s.probeReserve
	}

	before := cc.Gas.Used()

	ok, probeResult := s.dry.TryTrial(cc, trial, probeBudget)
	if !ok {
		s.log.WithField("operation", cc.Operation).Debug("Probe failed, skipping search")

		return &TargetCallResult{Success: false, ReturnData: probeResult}, nil
	}

	minGas := seed
	if seed == 0 {
		minGas = cc.Gas.Used() - before
	}

	maxGas := uint64(math.MaxUint64 - 1)
	if minGas < maxGas && allowance < maxGas-minGas {
		maxGas = minGas + allowance
	}

	var (
		optimalGas = maxGas
		result     = probeResult
		iterations int
	)

	for minGas <= maxGas && maxGas-minGas+1 >= tolerance {
		if rem := cc.Gas.Remaining(); rem < s.safetyMargin || rem-s.safetyMargin < minGas {
			pcommon.SearchExhaustedTotal.WithLabelValues(cc.Operation).Inc()

			return nil, &SimulationOutOfGasError{
				OptimalGas: optimalGas,
				MinGas:     minGas,
				MaxGas:     maxGas,
			}
		}

		mid := minGas + (maxGas-minGas)/2
		iterations++

		if success, ret := s.dry.TryTrial(cc, trial, mid); success {
			optimalGas = mid
			result = ret

			if mid == 0 {
				break
			}

			maxGas = mid - 1
		} else {
			minGas = mid + 1
		}
	}

	pcommon.SearchIterations.WithLabelValues(cc.Operation).Observe(float64(iterations))

	s.log.WithFields(logrus.Fields{
		"operation":   cc.Operation,
		"optimal_gas": optimalGas,
		"iterations":  iterations,
	}).Debug("Search finished")

	return &TargetCallResult{
		GasUsed:    optimalGas,
		Success:    ok,
		ReturnData: result,
	}, nil
}
