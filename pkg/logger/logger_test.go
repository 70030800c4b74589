package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func TestFieldsAreEncoded(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel).With("underlying", "SPY")

	l.Warn("day failed",
		Date("date", civil.Date{Year: 2024, Month: 11, Day: 15}),
		Int("attempt", 1),
		Float64("ref", 101.5),
		Duration("took", 1500*time.Millisecond),
		Error(errors.New("timeout")),
	)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "warn", got["level"])
	assert.Equal(t, "SPY", got["underlying"])
	assert.Equal(t, "2024-11-15", got["date"])
	assert.Equal(t, 101.5, got["ref"])
	assert.Equal(t, 1500.0, got["took"])
	assert.Equal(t, "timeout", got["error"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.InfoLevel)
	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	NewNop().Error("dropped")
}
