package executor

import (
	"context"
	"testing"
	"time"

	"github.com/ianremillard/agentcore/internal/apierr"
	"github.com/ianremillard/agentcore/internal/wire"
	"github.com/stretchr/testify/assert"
)

// These tests exercise the platform-independent orchestration logic. The
// native spawn path itself only exists on Windows (internal/winproc); on
// every other platform it deterministically returns NotSupported, which
// lets TestRunSurfacesNotSupportedOffWindows and its streaming twin run
// everywhere without a Windows host.

func TestRunSurfacesNotSupportedOffWindows(t *testing.T) {
	req := Request{
		Shell:   wire.ShellCmd,
		Command: "echo hi",
		Timeout: time.Second,
	}
	_, err := Run(context.Background(), req)
	if assert.Error(t, err) {
		assert.True(t, apierr.Is(err, apierr.NotSupported) || apierr.Is(err, apierr.Internal))
	}
}

func TestRunRejectsUnsupportedShell(t *testing.T) {
	req := Request{
		Shell:   wire.Shell("bash"),
		Command: "ls",
		Timeout: time.Second,
	}
	_, err := Run(context.Background(), req)
	if assert.Error(t, err) {
		assert.True(t, apierr.Is(err, apierr.BadRequest) || apierr.Is(err, apierr.NotSupported) || apierr.Is(err, apierr.Internal))
	}
}

func TestStreamSurfacesErrorOffWindows(t *testing.T) {
	req := Request{
		Shell:   wire.ShellCmd,
		Command: "echo hi",
		Timeout: time.Second,
	}
	_, err := Stream(context.Background(), req)
	assert.Error(t, err)
}

func TestLossyUTF8ReplacesInvalidSequences(t *testing.T) {
	out := lossyUTF8([]byte{'h', 'i', 0xff, 0xfe})
	assert.Contains(t, out, "hi")
	assert.NotEqual(t, string([]byte{'h', 'i', 0xff, 0xfe}), out)
}

func TestLossyUTF8PassesThroughValidText(t *testing.T) {
	assert.Equal(t, "hello world\r\n", lossyUTF8([]byte("hello world\r\n")))
}
