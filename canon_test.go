package canon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/componentize-go/canon/cm"
	"github.com/componentize-go/canon/internal/logging"
)

func TestConfigWithMethodsDoNotMutateReceiver(t *testing.T) {
	base := NewConfig()
	derived := base.WithEncoding(cm.EncodingUTF16).WithFutexTimeout(5 * time.Second)

	assert.Equal(t, cm.EncodingUTF8, base.encoding)
	assert.Equal(t, time.Duration(0), base.futexTimeout)
	assert.Equal(t, cm.EncodingUTF16, derived.encoding)
	assert.Equal(t, 5*time.Second, derived.futexTimeout)
}

func TestConfigCodecContextCarriesEncoding(t *testing.T) {
	cfg := NewConfig().WithEncoding(cm.EncodingLatin1UTF16).WithKeepOption(true)
	ctx := cfg.CodecContext()
	assert.Equal(t, cm.EncodingLatin1UTF16, ctx.Encoding)
	assert.True(t, ctx.KeepOption)
	require.NotNil(t, ctx.Logger)
}

func TestConfigValidateRejectsUnknownEncoding(t *testing.T) {
	cfg := NewConfig().WithEncoding(cm.Encoding(99))
	assert.Error(t, cfg.Validate())
}

func TestConfigValidateAcceptsDefault(t *testing.T) {
	assert.NoError(t, NewConfig().Validate())
}

func TestConfigDisabledScopeLogsNothing(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	cfg := NewConfig().WithLogger(zap.New(core)).WithLogScopes(logging.ScopeCall)
	// ScopeResource was not included; ResourceLogger must be a no-op, but
	// CallLogger must not be.
	assert.NotNil(t, cfg.ResourceLogger())
	assert.NotNil(t, cfg.CallLogger())
	assert.False(t, cfg.ResourceLogger().Core().Enabled(zapcore.ErrorLevel))
	assert.True(t, cfg.CallLogger().Core().Enabled(zapcore.ErrorLevel))
}
