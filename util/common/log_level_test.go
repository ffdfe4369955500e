package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-sub/logger"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected logger.Level
	}{
		{"error", logger.ERROR},
		{"warn", logger.WARNING},
		{"Warning", logger.WARNING},
		{"notice", logger.NOTICE},
		{" INFO ", logger.INFO},
		{"debug", logger.DEBUG},
	}
	for _, tc := range tests {
		got, err := ParseLogLevel(tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.expected, got, "ParseLogLevel(%q)", tc.input)
	}

	_, err := ParseLogLevel("verbose")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ParseLogLevel("")
	assert.Error(t, err)
}

func TestLogLevelName(t *testing.T) {
	for _, s := range []string{"error", "warning", "notice", "info", "debug"} {
		level, err := ParseLogLevel(s)
		require.NoError(t, err)
		assert.Equal(t, s, LogLevelName(level))
	}
}
