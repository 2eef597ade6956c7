package simulation

import (
	"errors"
	"fmt"

	"github.com/0xsequence/ethkit/go-ethereum/common"
	pcommon "github.com/ethpandaops/userop-simulator/pkg/common"
	"github.com/ethpandaops/userop-simulator/pkg/gas"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/ethpandaops/userop-simulator/pkg/vm"
	"github.com/sirupsen/logrus"
)

// ErrTrialPanicked is reported for a trial that panicked.
var ErrTrialPanicked = errors.New("trial panicked")

// Trial is one attempt at running a piece of work with the budget held by m.
type Trial func(m *gas.Meter) ([]byte, error)

// DryRun runs trials inside a snapshot that is always reverted.
type DryRun struct {
	log      logrus.FieldLogger
	world    World
	overhead uint64
}

// NewDryRun creates a DryRun charging overhead per trial on top of the gas
// the trial used.
func NewDryRun(log logrus.FieldLogger, world World, overhead uint64) *DryRun {
	return &DryRun{
		log:      log.WithField("component", "dryrun"),
		world:    world,
		overhead: overhead,
	}
}

// TryTrial runs trial with exactly budget gas, capped at what cc has left.
// The world is left untouched. On failure the result is the revert payload,
// or empty when there is none.
func (d *DryRun) TryTrial(cc *CallContext, trial Trial, budget uint64) (bool, []byte) {
	before := cc.Gas.Used()
	child := cc.Gas.Child(budget)
	snap := d.world.Snapshot()

	ret, err := d.run(trial, child)

	d.world.RevertToSnapshot(snap)
	cc.Gas.Settle(child)
	// A drained estimator meter is picked up by the search's budget check.
	_ = cc.Gas.Consume(d.overhead)

	pcommon.TrialGasUsed.Observe(float64(cc.Gas.Used() - before))

	if err != nil {
		pcommon.TrialsTotal.WithLabelValues("failure").Inc()

		d.log.WithError(err).WithFields(logrus.Fields{
			"budget":   budget,
			"gas_used": child.Used(),
		}).Trace("Trial failed")

		payload := revertPayload(err)
		if payload == nil {
			payload = []byte{}
		}

		return false, payload
	}

	pcommon.TrialsTotal.WithLabelValues("success").Inc()

	if ret == nil {
		ret = []byte{}
	}

	return true, ret
}

// TryCall runs a plain call from caller to target as a trial.
func (d *DryRun) TryCall(cc *CallContext, caller, target common.Address, payload []byte, budget uint64) (bool, []byte) {
	return d.TryTrial(cc, func(m *gas.Meter) ([]byte, error) {
		return d.world.Call(m, caller, target, payload)
	}, budget)
}

func (d *DryRun) run(trial Trial, m *gas.Meter) (ret []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.Drain()

			ret, err = nil, fmt.Errorf("%w: %v", ErrTrialPanicked, r)
		}
	}()

	return trial(m)
}

// revertPayload returns the bytes a failure would have reverted with.
func revertPayload(err error) []byte {
	var failed *userop.FailedOp
	if errors.As(err, &failed) {
		return failed.Data()
	}

	return vm.RevertData(err)
}
