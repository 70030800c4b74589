package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runPayload struct {
	RunID      string `json:"run_id"`
	Underlying string `json:"underlying"`
}

func TestParsePayload(t *testing.T) {
	raw := json.RawMessage(`{"run_id":"r1","underlying":"SPY"}`)
	got, err := ParsePayload[runPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, runPayload{RunID: "r1", Underlying: "SPY"}, *got)

	got, err = ParsePayload[runPayload](map[string]interface{}{"run_id": "r2"})
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RunID)

	direct := runPayload{RunID: "r3"}
	got, err = ParsePayload[runPayload](direct)
	require.NoError(t, err)
	assert.Equal(t, "r3", got.RunID)

	_, err = ParsePayload[runPayload](42)
	assert.Error(t, err)
}

func TestMessageKeepsPayloadVerbatim(t *testing.T) {
	msg := Message{ID: "m", Type: "t", Payload: json.RawMessage(`{"run_id":"x"}`)}
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var back Message
	require.NoError(t, json.Unmarshal(data, &back))
	p, err := ParsePayload[runPayload](back.Payload)
	require.NoError(t, err)
	assert.Equal(t, "x", p.RunID)
}
