package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/cyphera/emailsend/internal/helpers"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for input, want := range tests {
		assert.Equal(t, want, ParseLevel(input), input)
	}
}

func TestBuild(t *testing.T) {
	prod, err := Build(LoggerConfig{Level: "warn", Stage: helpers.StageProd, Service: "emailsend"})
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, prod.Core().Enabled(zapcore.WarnLevel))

	dev, err := Build(LoggerConfig{Level: "debug", Stage: helpers.StageLocal, EnableColor: true})
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
}

func TestL_BeforeInit(t *testing.T) {
	saved := Log
	t.Cleanup(func() { Log = saved })

	Log = nil
	require.NotNil(t, L())
	assert.NotPanics(t, func() { Info("no logger configured") })
}
