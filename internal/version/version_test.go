package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFull(t *testing.T) {
	assert.Equal(t, "userop-simulator/dev-unknown", Full())
	assert.Equal(t, "dev", GetRelease())
	assert.Equal(t, "unknown", GetGitCommit())
}
