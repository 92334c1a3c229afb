package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"membersync/pkg/logging"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestNewWithOptions_Console(t *testing.T) {
	log, err := NewWithOptions(Options{Level: "debug", Format: "console", ServiceName: "membership-service"})
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestSugaredLogger_ContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &SugaredLogger{SugaredLogger: zap.New(core).Sugar(), serviceName: "membership-service"}

	ctx := logging.WithStoreID(context.Background(), "store-1")
	ctx = logging.WithContainerID(ctx, "col-1")

	log.InfowCtx(ctx, "Refresh completed", "member_count", 3)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "store-1", fields["store_id"])
	assert.Equal(t, "col-1", fields["container_id"])
	assert.Equal(t, "membership-service", fields["service_name"])
	assert.EqualValues(t, 3, fields["member_count"])
}
