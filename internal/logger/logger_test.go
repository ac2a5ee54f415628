package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("nonsense"))
}

func TestNew(t *testing.T) {
	l := New(Config{Level: "debug", Format: "json", Output: "stderr"})
	assert.NotNil(t, l)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestContext(t *testing.T) {
	fallback := zap.NewExample()

	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.NotNil(t, FromContext(context.Background(), nil))

	ctx, enriched := WithRequestID(context.Background(), fallback, "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Same(t, enriched, FromContext(ctx, fallback))
	assert.Empty(t, RequestID(context.Background()))
}

func TestGormLogger_Trace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Warn)
	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-9")

	sql := func() (string, int64) { return "SELECT 1", 1 }

	gl.Trace(ctx, time.Now(), sql, errors.New("boom"))
	gl.Trace(ctx, time.Now(), sql, gormlogger.ErrRecordNotFound)
	gl.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	gl.Trace(ctx, time.Now(), sql, nil)

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "SQL Error", entries[0].Message)
		assert.Equal(t, "req-9", entries[0].ContextMap()["request_id"])
		assert.Contains(t, entries[1].Message, "SLOW SQL")
	}

	silent := gl.LogMode(gormlogger.Silent)
	silent.Trace(ctx, time.Now(), sql, errors.New("ignored"))
	assert.Len(t, logs.All(), 2)
}
