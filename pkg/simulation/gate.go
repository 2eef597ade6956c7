package simulation

import (
	"errors"
	"fmt"

	pcommon "github.com/ethpandaops/userop-simulator/pkg/common"
	"github.com/ethpandaops/userop-simulator/pkg/gas"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/ethpandaops/userop-simulator/pkg/vm"
	"github.com/sirupsen/logrus"
)

// Gate runs the cheap deployment pre-checks in front of every validation so
// callers get a diagnostic instead of an opaque failure.
type Gate struct {
	log    logrus.FieldLogger
	world  World
	engine Engine
}

// NewGate creates a gate for engine.
func NewGate(log logrus.FieldLogger, world World, engine Engine) *Gate {
	return &Gate{
		log:    log.WithField("component", "gate"),
		world:  world,
		engine: engine,
	}
}

// Check re-derives the sender creator on cc and runs the pre-checks for op.
// A diagnostic is returned as a *userop.FailedOp at index 0.
func (g *Gate) Check(cc *CallContext, op *userop.Operation) error {
	cc.SenderCreator = senderCreatorOf(g.engine.Address())

	var revert *vm.RevertError
	if err := g.precheck(cc.Gas, op); !errors.As(err, &revert) {
		return fmt.Errorf("pre-check: %w", err)
	}

	reason, ok := vm.RevertReason(revert.Data)
	if !ok || reason == "" {
		return nil
	}

	pcommon.GateFailuresTotal.WithLabelValues(reason).Inc()

	g.log.WithFields(logrus.Fields{
		"sender": op.Sender.Hex(),
		"reason": reason,
	}).Debug("Operation rejected by pre-check")

	return userop.NewFailedOp(0, reason)
}

// precheck always fails. Its effects are rolled back and only the revert
// reason survives: the diagnostic, or empty when every check passed. Any
// other error means the checks could not run. The account accesses are still
// charged so the access pattern matches a real validation.
func (g *Gate) precheck(m *gas.Meter, op *userop.Operation) error {
	snap := g.world.Snapshot()
	defer g.world.RevertToSnapshot(snap)

	var reason string

	if err := g.world.AccessAccount(m, op.Sender); err != nil {
		return err
	}

	if len(op.InitCode) == 0 && g.world.CodeSize(op.Sender) == 0 {
		reason = "AA20 account not deployed"
	}

	if op.HasPaymaster() {
		paymaster := op.Paymaster()

		if err := g.world.AccessAccount(m, paymaster); err != nil {
			return err
		}

		if g.world.CodeSize(paymaster) == 0 {
			reason = "AA30 paymaster not deployed"
		}
	}

	if reason == "" {
		return &vm.RevertError{}
	}

	return vm.Revert(reason)
}
