package session

import (
	"testing"

	"github.com/ianremillard/agentcore/internal/apierr"
	"github.com/ianremillard/agentcore/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests exercise registry bookkeeping that doesn't require a real
// pseudo-console (Windows-only, internal/conpty): validation, lookup
// failures, and idempotence. Successful session creation needs a real
// pseudo-console and is not exercised by any test in this module.

func TestCreateRejectsUnknownShell(t *testing.T) {
	r := NewRegistry()
	defer r.Shutdown()

	_, err := r.Create(wire.SessionCreateRequest{Shell: wire.Shell("bash")})
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.BadRequest))
}

func TestGetUnknownSessionReturnsNotFound(t *testing.T) {
	r := NewRegistry()
	defer r.Shutdown()

	_, err := r.Get("01ARZ3NDEKTSV4RRFFQ69G5FAV")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.NotFound))
}

func TestExistsFalseForUnknownSession(t *testing.T) {
	r := NewRegistry()
	defer r.Shutdown()
	assert.False(t, r.Exists("01ARZ3NDEKTSV4RRFFQ69G5FAV"))
}

func TestTerminateUnknownSessionReturnsNotFound(t *testing.T) {
	r := NewRegistry()
	defer r.Shutdown()

	err := r.Terminate("01ARZ3NDEKTSV4RRFFQ69G5FAV")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.NotFound))
}

func TestListOnEmptyRegistryIsEmpty(t *testing.T) {
	r := NewRegistry()
	defer r.Shutdown()
	assert.Empty(t, r.List())
}

func TestSignalRejectsUnrecognizedKind(t *testing.T) {
	r := NewRegistry()
	defer r.Shutdown()

	err := r.Signal("01ARZ3NDEKTSV4RRFFQ69G5FAV", wire.SignalKind("reboot"))
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.BadRequest))
}

func TestSignalOnMissingSessionAfterValidationIsNotFound(t *testing.T) {
	r := NewRegistry()
	defer r.Shutdown()

	err := r.Signal("01ARZ3NDEKTSV4RRFFQ69G5FAV", wire.SignalCtrlC)
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.NotFound))
}

func TestSubscribeUnknownSessionReturnsNotFound(t *testing.T) {
	r := NewRegistry()
	defer r.Shutdown()

	_, err := r.Subscribe("01ARZ3NDEKTSV4RRFFQ69G5FAV")
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.NotFound))
}
