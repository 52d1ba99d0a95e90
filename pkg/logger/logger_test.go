package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appctx "contabil/internal/core/context"
)

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{zap.New(core).Sugar()}, logs
}

func TestFromContext_AddsTraceAndActor(t *testing.T) {
	log, logs := observed(zapcore.DebugLevel)

	ctx := WithLogger(context.Background(), log)
	ctx = appctx.WithTrace(ctx, &appctx.TraceContext{TraceID: "t-1", RequestID: "r-1"})
	ctx = appctx.WithActor(ctx, &appctx.ActorContext{ActorID: "ana", CompanyID: "c-9", Source: "cli"})

	Info(ctx, "entry posted", "journal_number", 7)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "entry posted", entry.Message)
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "t-1", fields["trace_id"])
	assert.Equal(t, "r-1", fields["request_id"])
	assert.Equal(t, "ana", fields["actor_id"])
	assert.Equal(t, "c-9", fields["company_id"])
	assert.Equal(t, "cli", fields["source"])
	assert.EqualValues(t, 7, fields["journal_number"])
}

func TestFromContext_BareContext(t *testing.T) {
	log, logs := observed(zapcore.WarnLevel)
	ctx := WithLogger(context.Background(), log)

	Debug(ctx, "dropped")
	Info(ctx, "dropped")
	Warn(ctx, "lock wait", "attempt", 2)
	Error(ctx, "posting failed")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "lock wait", logs.All()[0].Message)
	assert.Equal(t, map[string]any{"attempt": int64(2)}, logs.All()[0].ContextMap())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
}

func TestWithComponent(t *testing.T) {
	log, logs := observed(zapcore.InfoLevel)

	log.WithComponent("outbox").Infow("relay started")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "outbox", logs.All()[0].ContextMap()["component"])
}

func TestNew_FallsBackToInfo(t *testing.T) {
	log, err := New(Config{Level: "loud", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.False(t, log.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Desugar().Core().Enabled(zapcore.InfoLevel))

	assert.Same(t, Default(), Default())
}
