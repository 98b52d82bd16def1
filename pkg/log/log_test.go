package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type bufferSyncer struct {
	bytes.Buffer
}

func (b *bufferSyncer) Sync() error { return nil }

func TestInitLoggerWithWriteSyncer(t *testing.T) {
	out := &bufferSyncer{}
	lg, props, err := InitLoggerWithWriteSyncer(&Config{Level: "info", Format: FormatJSON, DisableTimestamp: true}, out)
	require.NoError(t, err)

	lg.Debug("hidden")
	lg.Info("relay started", FieldEndpoint("127.0.0.1:9999"))

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), `"msg":"relay started"`)
	assert.Contains(t, out.String(), `"endpoint":"127.0.0.1:9999"`)
	assert.Equal(t, zapcore.InfoLevel, props.Level.Level())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	_, _, err := InitLoggerWithWriteSyncer(&Config{Level: "loud"}, &bufferSyncer{})
	assert.Error(t, err)
}

func TestInitTestLogger(t *testing.T) {
	lg, _, err := InitTestLogger(t, &Config{Level: "debug"})
	require.NoError(t, err)
	lg.Debug("test logger", zap.String("k", "v"))
}

func TestCtxLogger(t *testing.T) {
	ctx := WithModule(context.Background(), "relay")
	l := Ctx(ctx)
	require.NotNil(t, l)
	assert.NotSame(t, L(), l.Logger)

	// nil context 退回全局 logger。
	//nolint:staticcheck
	assert.Same(t, L(), Ctx(nil).Logger)
}

func TestMLoggerRateGroup(t *testing.T) {
	l := With(FieldComponent("test")).WithRateGroup("test.rated", 1, 1)
	assert.True(t, l.RatedWarn(1, "first"))
	assert.False(t, l.RatedWarn(1, "second"))
}

func TestComponentBind(t *testing.T) {
	var c Component
	assert.NotNil(t, c.Logger())

	bound := c.Bind("relay-service", zap.String("k", "v"))
	assert.Same(t, bound, c.Logger())

	rated := c.BindRated("relay-listener", "test.component", 1, 1)
	assert.Same(t, rated, c.Logger())
	assert.True(t, c.Logger().RatedWarn(1, "first"))
	assert.False(t, c.Logger().RatedWarn(1, "second"))
}

func TestNewIntentContext(t *testing.T) {
	//nolint:staticcheck
	ctx, span := NewIntentContext(nil, "relay", "start")
	defer span.End()
	assert.NotNil(t, span)
	assert.NotSame(t, L(), Ctx(ctx).Logger)
}
