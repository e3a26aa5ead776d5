package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRequestRoundTrip(t *testing.T) {
	req := ExecRequest{
		Shell:     ShellCmd,
		Command:   "echo hi",
		Args:      []string{},
		TimeoutMs: 5000,
		Encoding:  "utf-8",
		Env:       map[string]string{},
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	var out ExecRequest
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, req, out)
}

func TestExecStreamEventRoundTrip(t *testing.T) {
	events := []ExecStreamEvent{
		{Type: ExecEventStdout, Chunk: "a"},
		{Type: ExecEventStderr, Chunk: "b"},
		{Type: ExecEventExit, ExitCode: 0, DurationMs: 12},
		{Type: ExecEventError, Error: "boom"},
	}
	for _, ev := range events {
		data, err := json.Marshal(ev)
		require.NoError(t, err)

		var out ExecStreamEvent
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, ev, out)

		var tagged map[string]any
		require.NoError(t, json.Unmarshal(data, &tagged))
		assert.Equal(t, string(ev.Type), tagged["type"])
	}
}

func TestSessionCreateRoundTrip(t *testing.T) {
	req := SessionCreateRequest{
		Shell:          ShellPowerShell,
		Cols:           80,
		Rows:           24,
		IdleTimeoutSec: 60,
		Init:           SessionInit{ForceUTF8: true},
		Env:            map[string]string{"FOO": "bar"},
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	var out SessionCreateRequest
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, req, out)
}

func TestControlFrameUnknownTypeParses(t *testing.T) {
	cf, err := ParseControlFrame([]byte(`{"type":"wat","foo":1}`))
	require.NoError(t, err)
	assert.Equal(t, ControlFrameType("wat"), cf.Type)
}

func TestControlFrameResize(t *testing.T) {
	cf, err := ParseControlFrame([]byte(`{"type":"resize","cols":100,"rows":40}`))
	require.NoError(t, err)
	assert.Equal(t, ControlResize, cf.Type)
	assert.EqualValues(t, 100, cf.Cols)
	assert.EqualValues(t, 40, cf.Rows)
}

func TestControlFrameMalformedErrors(t *testing.T) {
	_, err := ParseControlFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestShellValid(t *testing.T) {
	assert.True(t, ShellCmd.Valid())
	assert.True(t, ShellPowerShell.Valid())
	assert.False(t, Shell("bash").Valid())
}

func TestSignalKindValid(t *testing.T) {
	assert.True(t, SignalCtrlC.Valid())
	assert.True(t, SignalCtrlBreak.Valid())
	assert.True(t, SignalTerminate.Valid())
	assert.False(t, SignalKind("sigkill").Valid())
}

func TestApiErrorRoundTrip(t *testing.T) {
	ae := ApiError{Error: ApiErrorBody{
		Code:    "TIMEOUT",
		Message: "execution exceeded timeout",
		Details: map[string]any{"timeout_ms": float64(200)},
	}}
	data, err := json.Marshal(ae)
	require.NoError(t, err)

	var out ApiError
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, ae, out)
}
