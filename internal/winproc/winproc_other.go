//go:build !windows

package winproc

import (
	"time"

	"github.com/ianremillard/agentcore/internal/apierr"
)

// PipeEnd selects which end of a new anonymous pipe is marked inheritable.
type PipeEnd int

const (
	InheritRead PipeEnd = iota
	InheritWrite
)

func unsupported(op string) error {
	return apierr.New(apierr.NotSupported, op+" requires Windows")
}

// NewPipe is unavailable outside Windows.
func NewPipe(PipeEnd) (*PipePair, error) {
	return nil, unsupported("anonymous pipe creation")
}

// Job is an owning wrapper around a Windows job object. On non-Windows
// platforms it is an inert placeholder; every method returns NotSupported.
type Job struct{}

// NewJob is unavailable outside Windows.
func NewJob() (*Job, error) {
	return nil, unsupported("job object creation")
}

func (j *Job) Assign(process *Handle) error { return unsupported("job object assignment") }
func (j *Job) Terminate() error              { return unsupported("job object termination") }
func (j *Job) Close() error                  { return nil }

// SpawnOpts describes a child process launch. Unused outside Windows.
type SpawnOpts struct {
	CmdLineUTF16 []uint16
	EnvBlock     []uint16
	Cwd          string
	Stdout       *Handle
	Stderr       *Handle
	Suspended    bool
}

// Spawned is the result of a successful spawn.
type Spawned struct {
	Process *Handle
	Thread  *Handle
	PID     int
}

// Spawn is unavailable outside Windows.
func Spawn(SpawnOpts) (*Spawned, error) {
	return nil, unsupported("process creation")
}

// Resume is unavailable outside Windows.
func Resume(thread *Handle) error {
	return unsupported("process resume")
}

// WaitResult is the outcome of a bounded wait on a process handle.
type WaitResult int

const (
	WaitExited WaitResult = iota
	WaitTimedOut
)

// Wait is unavailable outside Windows.
func Wait(process *Handle, d time.Duration) (WaitResult, error) {
	return 0, unsupported("process wait")
}

// ExitCode is unavailable outside Windows.
func ExitCode(process *Handle) (uint32, error) {
	return 0, unsupported("process exit code")
}

// Terminate is unavailable outside Windows.
func Terminate(process *Handle) error {
	return unsupported("process termination")
}

// ReadAll is unavailable outside Windows.
func ReadAll(r *Handle) []byte {
	return nil
}

// ReadChunk is unavailable outside Windows.
func ReadChunk(r *Handle, buf []byte) (int, bool, error) {
	return 0, true, unsupported("pipe read")
}

// WriteAll is unavailable outside Windows.
func WriteAll(w *Handle, p []byte) error {
	return unsupported("pipe write")
}
