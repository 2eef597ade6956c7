package simulation

import (
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/crypto"
	"github.com/ethpandaops/userop-simulator/pkg/gas"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
)

// CallContext is the state of one simulator call. Nothing in it outlives the
// call.
type CallContext struct {
	// Operation labels logs and metrics.
	Operation string
	// Gas is the estimator's own meter.
	Gas *gas.Meter
	// SenderCreator is re-derived by the gate before every operation.
	SenderCreator common.Address
	// NotAggregated is reported when validation names no aggregator.
	NotAggregated userop.AggregatorStakeInfo
}

// NewCallContext creates a context with a fresh meter of gasLimit.
func NewCallContext(operation string, gasLimit uint64) *CallContext {
	return &CallContext{
		Operation: operation,
		Gas:       gas.NewMeter(gasLimit),
	}
}

// Env returns the engine environment charging the estimator's meter.
func (cc *CallContext) Env() *userop.Env {
	return cc.EnvWith(cc.Gas)
}

// EnvWith returns the engine environment charging m.
func (cc *CallContext) EnvWith(m *gas.Meter) *userop.Env {
	return &userop.Env{Gas: m, SenderCreator: cc.SenderCreator}
}

// senderCreatorOf returns the first contract address created by engine.
func senderCreatorOf(engine common.Address) common.Address {
	return crypto.CreateAddress(engine, 1)
}
