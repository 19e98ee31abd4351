package log

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})

	SetLevel(LevelWarn)
	assert.Equal(t, LevelWarn, CurrentLevel())

	Info("hidden line")
	Warn("shown line", "id", "quiz-night")
	Error("broken", errors.New("boom"), "status", 502)

	out := buf.String()
	assert.NotContains(t, out, "hidden line")
	assert.Contains(t, out, "shown line")
	assert.Contains(t, out, "id=quiz-night")
	assert.Contains(t, out, "err=boom")
	assert.Contains(t, out, "status=502")
}
