package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		pretty bool
		want   zapcore.Level
	}{
		{name: "json info", level: "info", want: zapcore.InfoLevel},
		{name: "pretty debug", level: "debug", pretty: true, want: zapcore.DebugLevel},
		{name: "upper case", level: "WARN", want: zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, zapLogger, err := New(tt.level, tt.pretty)
			require.NoError(t, err)
			assert.NotNil(t, logger)
			assert.True(t, zapLogger.Core().Enabled(tt.want))
			assert.False(t, zapLogger.Core().Enabled(tt.want-1))
		})
	}

	t.Run("unknown level", func(t *testing.T) {
		_, _, err := New("chatty", false)
		assert.Error(t, err)
	})
}
