package log_test

import (
	"errors"
	"testing"

	"github.com/abhissng/conduit/adapters/log"
	"github.com/abhissng/conduit/blame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBlameFieldCarriesCodeAndCauses(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger, err := log.NewLogger(log.NewLoggerConfig(false, log.WithZapOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core {
		return core
	}))))
	require.NoError(t, err)

	logger.Error("publish failed", log.Blame(blame.PublishFailed("events.rpc", errors.New("nats: timeout"))))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "publish failed", entry.Message)

	fields := entry.ContextMap()
	b, ok := fields["blame"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(blame.ErrorPublishFailed), b["code"])
	assert.Equal(t, "transport", b["component"])
	assert.Equal(t, []any{"nats: timeout"}, b["causes"])
}

func TestLevelsAndNop(t *testing.T) {
	cfg := log.NewLoggerConfig(true, log.WithServiceName("gateway"), log.WithLevel(log.WarnLevel))
	assert.Equal(t, log.WarnLevel, cfg.Level)
	assert.Equal(t, "gateway", cfg.ServiceName)

	assert.Equal(t, log.InfoLevel, log.NewLoggerConfig(true).Level)
	assert.Equal(t, log.DebugLevel, log.NewLoggerConfig(false).Level)

	nop := log.NewNopLogger()
	nop.Info("discarded", log.Blame(nil))
	assert.NoError(t, nop.Sync())
}
