package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		debug bool
		info  bool
	}{
		{level: "debug", debug: true, info: true},
		{level: " WARN ", debug: false, info: false},
		{level: "nonsense", debug: false, info: true},
		{level: "", debug: false, info: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log, err := New(tt.level, "production")
			require.NoError(t, err)
			assert.Equal(t, tt.debug, log.Core().Enabled(zapcore.DebugLevel))
			assert.Equal(t, tt.info, log.Core().Enabled(zapcore.InfoLevel))
		})
	}
}

func TestNew_Development(t *testing.T) {
	log, err := New("info", "development")
	require.NoError(t, err)
	assert.NotNil(t, log)
}
