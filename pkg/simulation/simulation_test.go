package simulation

import (
	"errors"
	"testing"

	"github.com/ethpandaops/userop-simulator/internal/testutil"
	"github.com/ethpandaops/userop-simulator/pkg/userop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSimulator(t *testing.T, w *testutil.World) *Simulator {
	t.Helper()

	s, err := New(testutil.NewLogger(), &Config{}, w.VM, w.EntryPoint)
	require.NoError(t, err)

	return s
}

func requireFailedOp(t *testing.T, err error, reason string) {
	t.Helper()

	var failed *userop.FailedOp
	require.True(t, errors.As(err, &failed), "expected FailedOp, got %v", err)
	assert.Equal(t, reason, failed.Reason)
}
