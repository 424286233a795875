package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerIsNopBeforeInitialize(t *testing.T) {
	require.NotNil(t, Logger)
	// Must not panic when used before Initialize.
	Logger.Infow("pre-init message", "key", "value")
}

func TestInitializeJSON(t *testing.T) {
	err := Initialize(true, false)
	require.NoError(t, err)
	assert.True(t, JSONOutput)
	require.NotNil(t, Logger)
	Logger.Debugw("suppressed at info level")
}

func TestInitializeConsoleDebug(t *testing.T) {
	err := Initialize(false, true)
	require.NoError(t, err)
	assert.False(t, JSONOutput)
	Logger.Debugw("visible at debug level", "component", "test")
}

func TestNamed(t *testing.T) {
	require.NoError(t, Initialize(true, false))
	child := Named("analyze")
	require.NotNil(t, child)
	child.Infow("scoped message")
}
