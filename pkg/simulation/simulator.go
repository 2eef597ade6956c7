package simulation

import (
	"fmt"
	"time"

	pcommon "github.com/ethpandaops/userop-simulator/pkg/common"
	"github.com/ethpandaops/userop-simulator/pkg/gas"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/sirupsen/logrus"
)

// Operation names used for logs and metrics.
const (
	OperationSimulateValidation = "simulate_validation"
	OperationSimulateHandleOp   = "simulate_handle_op"
)

// SearchKind selects the engine phase a gas search probes.
type SearchKind int

const (
	// SearchCallGas estimates the call gas limit.
	SearchCallGas SearchKind = iota
	// SearchVerificationGas estimates the verification gas limit.
	SearchVerificationGas
	// SearchPaymasterVerificationGas estimates the paymaster verification gas limit.
	SearchPaymasterVerificationGas
)

func (k SearchKind) String() string {
	switch k {
	case SearchCallGas:
		return "call_gas"
	case SearchVerificationGas:
		return "verification_gas"
	case SearchPaymasterVerificationGas:
		return "paymaster_verification_gas"
	default:
		return "unknown"
	}
}

// ParseSearchKind parses the name returned by SearchKind.String.
func ParseSearchKind(name string) (SearchKind, error) {
	for _, k := range []SearchKind{SearchCallGas, SearchVerificationGas, SearchPaymasterVerificationGas} {
		if k.String() == name {
			return k, nil
		}
	}

	return 0, fmt.Errorf("unknown search kind %q", name)
}

func (k SearchKind) phase() (userop.Phase, error) {
	switch k {
	case SearchCallGas:
		return userop.PhaseExecution, nil
	case SearchVerificationGas:
		return userop.PhaseAccountValidation, nil
	case SearchPaymasterVerificationGas:
		return userop.PhasePaymasterValidation, nil
	default:
		return 0, fmt.Errorf("unknown search kind %d", k)
	}
}

// SearchRequest describes one gas search. Zero ToleranceDelta and GasAllowance
// fall back to the configured defaults. A zero InitialMinGas lets the first
// probe pick the lower bound.
type SearchRequest struct {
	Kind           SearchKind
	Queued         []userop.SimulationArgs
	Target         userop.SimulationArgs
	InitialMinGas  uint64
	ToleranceDelta uint64
	GasAllowance   uint64
}

// Simulator answers validation, execution and gas estimation queries against
// a world without leaving any trace in it. It is not safe for concurrent use.
type Simulator struct {
	log    logrus.FieldLogger
	config *Config

	world  World
	engine Engine

	gate     *Gate
	dry      *DryRun
	replayer *Replayer
	searcher *Searcher
	target   *targetCaller
}

// New creates a Simulator driving engine over world.
func New(log logrus.FieldLogger, config *Config, world World, engine Engine) (*Simulator, error) {
	if config == nil {
		return nil, fmt.Errorf("simulator config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulator config: %w", err)
	}

	log = log.WithField("module", "simulation")

	gate := NewGate(log, world, engine)
	dry := NewDryRun(log, world, config.TrialOverhead)

	return &Simulator{
		log:      log,
		config:   config,
		world:    world,
		engine:   engine,
		gate:     gate,
		dry:      dry,
		replayer: NewReplayer(log, world, engine, gate, config.SideEffectGasLimit),
		searcher: NewSearcher(log, dry, config.ProbeReserve, config.SafetyMargin),
		target:   &targetCaller{world: world, engine: engine, limit: config.SideEffectGasLimit},
	}, nil
}

// Config returns the effective configuration.
func (s *Simulator) Config() *Config {
	return s.config
}

func (s *Simulator) newContext(operation string) *CallContext {
	return NewCallContext(operation, s.config.GasLimit)
}

// isolated runs fn inside a snapshot that is always reverted and records the
// request metrics.
func isolated[T any](s *Simulator, operation string, fn func() (*T, error)) (*T, error) {
	start := time.Now()

	snap := s.world.Snapshot()
	defer s.world.RevertToSnapshot(snap)

	res, err := fn()

	s.observe(operation, start, err)

	return res, err
}

func (s *Simulator) observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	pcommon.SimulationsTotal.WithLabelValues(operation, status).Inc()
	pcommon.SimulationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func bulk[I, T any](s *Simulator, operation string, items []I, fn func(item I) (*T, error)) []BulkResult[T] {
	start := time.Now()

	results := Bulk(s.world, items, fn)

	var failed int

	for _, r := range results {
		status := "success"
		if r.Failed() {
			status = "failure"
			failed++
		}

		pcommon.BulkItemsTotal.WithLabelValues(operation, status).Inc()
	}

	pcommon.SimulationDuration.WithLabelValues(operation + "_bulk").Observe(time.Since(start).Seconds())

	s.log.WithFields(logrus.Fields{
		"operation": operation,
		"items":     len(items),
		"failed":    failed,
	}).Debug("Bulk simulation finished")

	return results
}

// SimulateValidation validates op the way the entry point would and reports
// the gas and stake information it produced.
func (s *Simulator) SimulateValidation(op *userop.Operation) (*ValidationResult, error) {
	return isolated(s, OperationSimulateValidation, func() (*ValidationResult, error) {
		return s.simulateValidation(op)
	})
}

// SimulateValidationBulk validates ops in order, each against the state the
// previous ones left behind.
func (s *Simulator) SimulateValidationBulk(ops []*userop.Operation) []BulkResult[ValidationResult] {
	return bulk(s, OperationSimulateValidation, ops, s.simulateValidation)
}

// SimulateValidationLast runs SimulateValidationBulk and returns the result of
// the final operation.
func (s *Simulator) SimulateValidationLast(ops []*userop.Operation) (*ValidationResult, error) {
	return Last(s.SimulateValidationBulk(ops))
}

func (s *Simulator) simulateValidation(op *userop.Operation) (*ValidationResult, error) {
	if op == nil {
		return nil, ErrNoOperation
	}

	cc := s.newContext(OperationSimulateValidation)

	if err := s.gate.Check(cc, op); err != nil {
		return nil, err
	}

	out, err := s.engine.Validate(cc.Env(), op)
	if err != nil {
		return nil, err
	}

	res := &ValidationResult{
		ReturnInfo: ReturnInfo{
			PreOpGas:                out.PreOpGas,
			Prefund:                 out.Prefund,
			AccountValidationData:   out.AccountValidationData,
			PaymasterValidationData: out.PaymasterValidationData,
			PaymasterContext:        out.PaymasterContext,
		},
		SenderInfo:     s.engine.StakeInfo(op.Sender),
		FactoryInfo:    s.engine.StakeInfo(op.Factory()),
		PaymasterInfo:  s.engine.StakeInfo(op.Paymaster()),
		AggregatorInfo: cc.NotAggregated,
	}

	if data := userop.ParseValidationData(out.AccountValidationData); data.Aggregated() {
		res.AggregatorInfo = userop.AggregatorStakeInfo{
			Aggregator: data.Aggregator,
			StakeInfo:  s.engine.StakeInfo(data.Aggregator),
		}
	}

	return res, nil
}

// SimulateHandleOp validates and executes args.Op, then runs the optional
// target call against the resulting state.
func (s *Simulator) SimulateHandleOp(args userop.SimulationArgs) (*ExecutionResult, error) {
	return isolated(s, OperationSimulateHandleOp, func() (*ExecutionResult, error) {
		return s.simulateHandleOp(args)
	})
}

// SimulateHandleOpBulk runs SimulateHandleOp over args in order with
// cumulative state.
func (s *Simulator) SimulateHandleOpBulk(args []userop.SimulationArgs) []BulkResult[ExecutionResult] {
	return bulk(s, OperationSimulateHandleOp, args, s.simulateHandleOp)
}

// SimulateHandleOpLast runs SimulateHandleOpBulk and returns the result of the
// final entry.
func (s *Simulator) SimulateHandleOpLast(args []userop.SimulationArgs) (*ExecutionResult, error) {
	return Last(s.SimulateHandleOpBulk(args))
}

func (s *Simulator) simulateHandleOp(args userop.SimulationArgs) (*ExecutionResult, error) {
	op := args.Op
	if op == nil {
		return nil, ErrNoOperation
	}

	cc := s.newContext(OperationSimulateHandleOp)

	if err := s.gate.Check(cc, op); err != nil {
		return nil, err
	}

	validation, err := s.engine.Validate(cc.Env(), op)
	if err != nil {
		return nil, err
	}

	execution, err := s.engine.Execute(cc.Env(), op, validation)
	if err != nil {
		return nil, err
	}

	res := &ExecutionResult{
		PreOpGas:                      validation.PreOpGas,
		Paid:                          execution.Paid,
		AccountValidationData:         validation.AccountValidationData,
		PaymasterValidationData:       validation.PaymasterValidationData,
		PaymasterVerificationGasLimit: op.PaymasterVerificationGasLimit(),
		PaymasterPostOpGasLimit:       op.PaymasterPostOpGasLimit(),
		ExecutionSuccess:              execution.Success,
	}

	if args.Target != nil {
		ret, err := s.target.call(cc, *args.Target, args.TargetCallData)

		res.TargetSuccess = err == nil
		res.TargetResult = ret
	}

	return res, nil
}

// BinarySearchCallGasLimit estimates the smallest call gas limit at which
// target executes, after replaying queued.
func (s *Simulator) BinarySearchCallGasLimit(queued []userop.SimulationArgs, target userop.SimulationArgs, initialMinGas, toleranceDelta, gasAllowance uint64) (*TargetCallResult, error) {
	return s.Estimate(SearchRequest{
		Kind:           SearchCallGas,
		Queued:         queued,
		Target:         target,
		InitialMinGas:  initialMinGas,
		ToleranceDelta: toleranceDelta,
		GasAllowance:   gasAllowance,
	})
}

// BinarySearchVerificationGasLimit estimates the smallest verification gas
// limit at which the account validates target, after replaying queued.
func (s *Simulator) BinarySearchVerificationGasLimit(queued []userop.SimulationArgs, target userop.SimulationArgs, initialMinGas, toleranceDelta, gasAllowance uint64) (*TargetCallResult, error) {
	return s.Estimate(SearchRequest{
		Kind:           SearchVerificationGas,
		Queued:         queued,
		Target:         target,
		InitialMinGas:  initialMinGas,
		ToleranceDelta: toleranceDelta,
		GasAllowance:   gasAllowance,
	})
}

// BinarySearchPaymasterVerificationGasLimit estimates the smallest paymaster
// verification gas limit for target, after replaying queued.
func (s *Simulator) BinarySearchPaymasterVerificationGasLimit(queued []userop.SimulationArgs, target userop.SimulationArgs, initialMinGas, toleranceDelta, gasAllowance uint64) (*TargetCallResult, error) {
	return s.Estimate(SearchRequest{
		Kind:           SearchPaymasterVerificationGas,
		Queued:         queued,
		Target:         target,
		InitialMinGas:  initialMinGas,
		ToleranceDelta: toleranceDelta,
		GasAllowance:   gasAllowance,
	})
}

// Estimate runs the gas search described by req.
func (s *Simulator) Estimate(req SearchRequest) (*TargetCallResult, error) {
	return isolated(s, req.Kind.String(), func() (*TargetCallResult, error) {
		return s.estimate(req)
	})
}

// EstimateBulk runs every search in order with cumulative state.
func (s *Simulator) EstimateBulk(reqs []SearchRequest) []BulkResult[TargetCallResult] {
	return bulk(s, "estimate", reqs, s.estimate)
}

// EstimateLast runs EstimateBulk and returns the result of the final search.
func (s *Simulator) EstimateLast(reqs []SearchRequest) (*TargetCallResult, error) {
	return Last(s.EstimateBulk(reqs))
}

func (s *Simulator) estimate(req SearchRequest) (*TargetCallResult, error) {
	op := req.Target.Op
	if op == nil {
		return nil, ErrNoOperation
	}

	phase, err := req.Kind.phase()
	if err != nil {
		return nil, err
	}

	if req.Kind == SearchPaymasterVerificationGas && !op.HasPaymaster() {
		return nil, userop.ErrNoPaymaster
	}

	tolerance := req.ToleranceDelta
	if tolerance == 0 {
		tolerance = s.config.ToleranceDelta
	}

	allowance := req.GasAllowance
	if allowance == 0 {
		allowance = s.config.GasAllowance
	}

	cc := s.newContext(req.Kind.String())
	log := s.log.WithFields(logrus.Fields{
		"operation": cc.Operation,
		"sender":    op.Sender.Hex(),
	})

	if len(req.Queued) > 0 {
		report := s.replayer.Replay(cc, req.Queued)

		log.WithFields(logrus.Fields{
			"queued": len(req.Queued),
			"failed": report.Failed(),
		}).Debug("Replayed queued operations")
	}

	if err := s.gate.Check(cc, op); err != nil {
		return nil, err
	}

	if req.Kind == SearchPaymasterVerificationGas {
		// The paymaster sees the sender deployed and the nonce consumed.
		if _, err := s.engine.ValidateAccount(cc.Env(), op); err != nil {
			return nil, err
		}
	}

	if req.Kind == SearchCallGas {
		// Execution runs against the state validation leaves behind.
		if _, err := s.engine.Validate(cc.Env(), op); err != nil {
			return nil, err
		}

		if req.Target.Target != nil {
			if _, err := s.target.call(cc, *req.Target.Target, req.Target.TargetCallData); err != nil {
				log.WithError(err).Debug("Target side effect failed")
			}
		}
	}

	trial := func(m *gas.Meter) ([]byte, error) {
		return s.engine.RunPhase(phase, cc.EnvWith(m), op)
	}

	res, err := s.searcher.Search(cc, trial, req.InitialMinGas, tolerance, allowance)
	if err != nil {
		return nil, err
	}

	if res.Success {
		pcommon.EstimatedGas.WithLabelValues(cc.Operation).Observe(float64(res.GasUsed))
	}

	return res, nil
}
