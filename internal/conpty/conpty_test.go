package conpty

import (
	"testing"

	"github.com/ianremillard/agentcore/internal/apierr"
	"github.com/ianremillard/agentcore/internal/wire"
	"github.com/stretchr/testify/assert"
)

func TestPrimingLineCmd(t *testing.T) {
	assert.Equal(t, "chcp 65001\r\n", PrimingLine(wire.ShellCmd))
}

func TestPrimingLinePowerShell(t *testing.T) {
	line := PrimingLine(wire.ShellPowerShell)
	assert.Contains(t, line, "InputEncoding")
	assert.Contains(t, line, "OutputEncoding")
	assert.Contains(t, line, "UTF8")
}

// TestPrimingNotSentWhenNotRequested documents that UTF-8 priming is
// conditional: PrimingLine is a pure function the caller only invokes
// when Init.ForceUTF8 is set. A session created without that flag never
// calls PrimingLine at all, so nothing is queued onto the input channel.
// The check lives in internal/session's newSession; this test mirrors
// that condition on a local flag rather than driving a real session.
func TestPrimingNotSentWhenNotRequested(t *testing.T) {
	forceUTF8 := false
	var queued []string
	if forceUTF8 {
		queued = append(queued, PrimingLine(wire.ShellCmd))
	}
	assert.Empty(t, queued)
}

func TestNewOffWindowsReturnsNotSupported(t *testing.T) {
	_, err := New(Config{Cols: 80, Rows: 24})
	if assert.Error(t, err) {
		assert.True(t, apierr.Is(err, apierr.NotSupported))
	}
}
