package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerDefaults(t *testing.T) {
	log, err := NewLogger(nil)
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	_, err := NewLogger(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewLoggerDebugOverridesLevel(t *testing.T) {
	log, err := NewLogger(&Config{Level: "error", Debug: true})
	require.NoError(t, err)

	// Debug events must be enabled when Debug is set.
	assert.True(t, log.Debug().Enabled())
}

func TestSetDebugTogglesLevel(t *testing.T) {
	log := NewTestLogger()
	log.SetDebug(true)
	log.SetLevel(zerolog.ErrorLevel)
	log.SetDebug(false)
}

func TestComponentLogger(t *testing.T) {
	log, err := NewComponentLogger("viewer", &Config{Level: "info"})
	require.NoError(t, err)
	require.NotNil(t, log)
}
