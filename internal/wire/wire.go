// Package wire defines the fixed JSON request/response/event schemas
// consumed and produced at the boundary between the core and the
// outer request-routing layer.
package wire

import (
	"encoding/json"
	"fmt"
)

// Shell identifies the interactive or one-shot shell kind.
type Shell string

const (
	ShellCmd        Shell = "cmd"
	ShellPowerShell Shell = "powershell"
)

// Valid reports whether s is a recognized shell kind.
func (s Shell) Valid() bool {
	return s == ShellCmd || s == ShellPowerShell
}

// ExecRequest is the body of POST /automation/exec and /automation/exec_stream.
type ExecRequest struct {
	Shell     Shell             `json:"shell"`
	Command   string            `json:"command"`
	Args      []string          `json:"args"`
	Cwd       string            `json:"cwd,omitempty"`
	Env       map[string]string `json:"env"`
	TimeoutMs int64             `json:"timeout_ms"`
	Encoding  string            `json:"encoding"`
}

// ExecResponse is returned by the synchronous /automation/exec endpoint.
type ExecResponse struct {
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	DurationMs int64  `json:"duration_ms"`
}

// ExecStreamEventType tags one server-sent event of /automation/exec_stream.
type ExecStreamEventType string

const (
	ExecEventStdout ExecStreamEventType = "stdout"
	ExecEventStderr ExecStreamEventType = "stderr"
	ExecEventExit   ExecStreamEventType = "exit"
	ExecEventError  ExecStreamEventType = "error"
)

// ExecStreamEvent is one server-sent event. Only the fields relevant to
// Type are populated; the others are zero.
type ExecStreamEvent struct {
	Type       ExecStreamEventType `json:"-"`
	Chunk      string              `json:"chunk,omitempty"`
	ExitCode   int                 `json:"exit_code,omitempty"`
	DurationMs int64               `json:"duration_ms,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// MarshalJSON renders the event as {"type": "...", ...fields}.
func (e ExecStreamEvent) MarshalJSON() ([]byte, error) {
	type alias ExecStreamEvent
	return json.Marshal(struct {
		Type ExecStreamEventType `json:"type"`
		alias
	}{Type: e.Type, alias: alias(e)})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *ExecStreamEvent) UnmarshalJSON(data []byte) error {
	type alias ExecStreamEvent
	var tmp struct {
		Type ExecStreamEventType `json:"type"`
		alias
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*e = ExecStreamEvent(tmp.alias)
	e.Type = tmp.Type
	return nil
}

// SessionInit carries session-creation initialization flags.
type SessionInit struct {
	ForceUTF8 bool `json:"force_utf8"`
}

// SessionCreateRequest is the body of POST /sessions.
type SessionCreateRequest struct {
	Shell          Shell             `json:"shell"`
	Cwd            string            `json:"cwd,omitempty"`
	Env            map[string]string `json:"env"`
	Cols           uint16            `json:"cols"`
	Rows           uint16            `json:"rows"`
	IdleTimeoutSec int64             `json:"idle_timeout_sec"`
	Init           SessionInit       `json:"init"`
}

// SessionCreateResponse is returned on successful session creation.
type SessionCreateResponse struct {
	ID        string `json:"id"`
	WSURL     string `json:"ws_url"`
	CreatedAt string `json:"created_at"` // RFC 3339
}

// SessionState is one of a session's lifecycle states.
type SessionState string

const (
	SessionRunning SessionState = "running"
	SessionExited  SessionState = "exited"
)

// SessionInfo is a point-in-time snapshot of one session's metadata.
type SessionInfo struct {
	ID             string       `json:"id"`
	Shell          Shell        `json:"shell"`
	PID            int          `json:"pid"`
	State          SessionState `json:"state"`
	Attached       bool         `json:"attached"`
	Cols           uint16       `json:"cols"`
	Rows           uint16       `json:"rows"`
	CreatedAt      string       `json:"created_at"`
	LastActivityAt string       `json:"last_activity_at"`
}

// SignalKind is one of the recognized session signals.
type SignalKind string

const (
	SignalCtrlC     SignalKind = "ctrl_c"
	SignalCtrlBreak SignalKind = "ctrl_break"
	SignalTerminate SignalKind = "terminate"
)

// Valid reports whether k is a recognized signal kind.
func (k SignalKind) Valid() bool {
	switch k {
	case SignalCtrlC, SignalCtrlBreak, SignalTerminate:
		return true
	}
	return false
}

// SignalRequest is the body of POST /sessions/{id}/signal.
type SignalRequest struct {
	Signal SignalKind `json:"signal"`
}

// ApiError is the JSON error envelope returned for every non-2xx response.
type ApiError struct {
	Error ApiErrorBody `json:"error"`
}

// ApiErrorBody is the nested error payload inside ApiError.
type ApiErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ─── Attachment control frames ─────────────────────────────────────────────
//
// Text frames on the attachment WebSocket carry one of these tagged
// objects. Binary frames carry raw terminal bytes and are not
// represented here.

// ControlFrameType tags a text control frame on the attachment.
type ControlFrameType string

const (
	ControlResize ControlFrameType = "resize"
	ControlSignal ControlFrameType = "signal"
	ControlPing   ControlFrameType = "ping"
	ControlPong   ControlFrameType = "pong"
)

// ControlFrame is the superset of every recognized control-frame payload.
// Unrecognized Type values decode successfully; callers check Type and
// ignore what they don't recognize.
type ControlFrame struct {
	Type   ControlFrameType `json:"type"`
	Cols   uint16           `json:"cols,omitempty"`
	Rows   uint16           `json:"rows,omitempty"`
	Signal SignalKind       `json:"signal,omitempty"`
	T      uint64           `json:"t,omitempty"`
}

// ParseControlFrame decodes a text frame payload into a ControlFrame.
// Malformed JSON returns a plain wrapped decode error (not an apierr
// code); the caller is expected to log and ignore it rather than close
// the attachment.
func ParseControlFrame(data []byte) (ControlFrame, error) {
	var cf ControlFrame
	if err := json.Unmarshal(data, &cf); err != nil {
		return ControlFrame{}, fmt.Errorf("parse control frame: %w", err)
	}
	return cf, nil
}
