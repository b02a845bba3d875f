package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG", slog.LevelInfo))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning", slog.LevelInfo))
	assert.Equal(t, slog.LevelError, ParseLevel(" error ", slog.LevelInfo))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose", slog.LevelInfo))
	assert.Equal(t, slog.LevelWarn, ParseLevel("", slog.LevelWarn))
}

func TestShortPath(t *testing.T) {
	assert.Equal(t, "internal/usecase/provider.go", shortPath("/home/dev/src/treb-anvil/internal/usecase/provider.go"))
	assert.Equal(t, "main.go", shortPath("/elsewhere/main.go"))
}
