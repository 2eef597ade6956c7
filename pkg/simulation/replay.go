package simulation

import (
	pcommon "github.com/ethpandaops/userop-simulator/pkg/common"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/sirupsen/logrus"
)

// ReplayEntry records what happened to one queued operation.
type ReplayEntry struct {
	Index int
	// Err is the gate or validation failure, if any. A failed entry has no
	// effect on the world.
	Err error
	// TargetCalled is set when the side effect ran.
	TargetCalled  bool
	TargetSuccess bool
	TargetResult  []byte
}

// ReplayReport lists the outcome of every queued operation in order.
type ReplayReport struct {
	Entries []ReplayEntry
}

// Failed returns how many entries failed validation.
func (r *ReplayReport) Failed() int {
	var n int

	for _, e := range r.Entries {
		if e.Err != nil {
			n++
		}
	}

	return n
}

// Replayer rebuilds the state a target operation will see by validating the
// operations queued ahead of it.
type Replayer struct {
	log    logrus.FieldLogger
	world  World
	engine Engine
	gate   *Gate
	target *targetCaller
}

// NewReplayer creates a Replayer. Side effects of queued operations each run
// with at most sideEffectLimit gas.
func NewReplayer(log logrus.FieldLogger, world World, engine Engine, gate *Gate, sideEffectLimit uint64) *Replayer {
	return &Replayer{
		log:    log.WithField("component", "replayer"),
		world:  world,
		engine: engine,
		gate:   gate,
		target: &targetCaller{world: world, engine: engine, limit: sideEffectLimit},
	}
}

// Replay validates queued in list order, keeping the state each validation
// leaves behind, and applies each entry's side effect once its validation
// succeeded. Failures are recorded and the replay carries on.
func (r *Replayer) Replay(cc *CallContext, queued []userop.SimulationArgs) *ReplayReport {
	report := &ReplayReport{Entries: make([]ReplayEntry, 0, len(queued))}

	for i, args := range queued {
		entry := ReplayEntry{Index: i}
		log := r.log.WithField("index", i)

		if err := r.validate(cc, args.Op); err != nil {
			entry.Err = err
			report.Entries = append(report.Entries, entry)

			pcommon.ReplayItemsTotal.WithLabelValues("validation", "failure").Inc()
			log.WithError(err).Debug("Queued operation failed validation")

			continue
		}

		pcommon.ReplayItemsTotal.WithLabelValues("validation", "success").Inc()

		if args.Target != nil {
			ret, err := r.target.call(cc, *args.Target, args.TargetCallData)

			entry.TargetCalled = true
			entry.TargetSuccess = err == nil
			entry.TargetResult = ret

			if err != nil {
				pcommon.ReplayItemsTotal.WithLabelValues("target", "failure").Inc()
				log.WithError(err).Debug("Queued side effect failed")
			} else {
				pcommon.ReplayItemsTotal.WithLabelValues("target", "success").Inc()
			}
		}

		report.Entries = append(report.Entries, entry)
	}

	return report
}

// validate runs the gate and the engine validation atomically: a failure
// leaves no trace in the world.
func (r *Replayer) validate(cc *CallContext, op *userop.Operation) error {
	if op == nil {
		return ErrNoOperation
	}

	snap := r.world.Snapshot()

	err := r.gate.Check(cc, op)
	if err == nil {
		_, err = r.engine.Validate(cc.Env(), op)
	}

	if err != nil {
		r.world.RevertToSnapshot(snap)
	}

	return err
}
