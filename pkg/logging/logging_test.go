package logging

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		input string
		want  log.Level
	}{
		{"debug", log.DebugLevel},
		{"info", log.InfoLevel},
		{"WARN", log.WarnLevel},
		{" error ", log.ErrorLevel},
		{"", log.InfoLevel},
		{"bogus", log.InfoLevel},
	}

	for _, tt := range tests {
		logger := New(&bytes.Buffer{}, tt.input)
		assert.Equal(t, tt.want, logger.GetLevel(), "level %q", tt.input)
	}
}

func TestNewWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info")

	logger.Info("queue restored", "guild_id", "123")

	assert.Contains(t, buf.String(), "queue restored")
	assert.Contains(t, buf.String(), "guild_id")
}
