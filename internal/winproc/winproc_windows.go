//go:build windows

package winproc

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

func wrapHandle(h windows.Handle) *Handle {
	if h == 0 || h == windows.InvalidHandle {
		return nil
	}
	return &Handle{
		value: uintptr(h),
		closeFn: func(v uintptr) error {
			return windows.CloseHandle(windows.Handle(v))
		},
	}
}

// PipeEnd selects which end of a new anonymous pipe is marked inheritable:
// the child-side end is inheritable, the parent-side end is not.
type PipeEnd int

const (
	InheritRead PipeEnd = iota
	InheritWrite
)

// NewPipe creates an anonymous pipe pair with exactly one end inheritable.
func NewPipe(inheritable PipeEnd) (*PipePair, error) {
	var rh, wh windows.Handle
	sa := &windows.SecurityAttributes{Length: uint32(unsafe.Sizeof(windows.SecurityAttributes{}))}
	if err := windows.CreatePipe(&rh, &wh, sa, 0); err != nil {
		return nil, fmt.Errorf("CreatePipe: %w", err)
	}

	var inheritTarget windows.Handle
	switch inheritable {
	case InheritRead:
		inheritTarget = rh
	case InheritWrite:
		inheritTarget = wh
	}
	if err := windows.SetHandleInformation(inheritTarget, windows.HANDLE_FLAG_INHERIT, windows.HANDLE_FLAG_INHERIT); err != nil {
		windows.CloseHandle(rh)
		windows.CloseHandle(wh)
		return nil, fmt.Errorf("SetHandleInformation: %w", err)
	}

	return &PipePair{Read: wrapHandle(rh), Write: wrapHandle(wh)}, nil
}

// ─── Job objects ────────────────────────────────────────────────────────────

// Job is an owning wrapper around a Windows job object configured so that
// closing (or explicitly terminating) it kills every process assigned to
// it, including descendants spawned by the assigned process.
type Job struct {
	handle *Handle
}

// NewJob creates a job object with JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE set.
func NewJob() (*Job, error) {
	h, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateJobObject: %w", err)
	}

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}
	if _, err := windows.SetInformationJobObject(
		h,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	); err != nil {
		windows.CloseHandle(h)
		return nil, fmt.Errorf("SetInformationJobObject: %w", err)
	}

	return &Job{handle: wrapHandle(h)}, nil
}

// Assign places process under the job's containment.
func (j *Job) Assign(process *Handle) error {
	if j == nil || !j.handle.Valid() {
		return fmt.Errorf("job: not created")
	}
	if err := windows.AssignProcessToJobObject(
		windows.Handle(j.handle.Value()),
		windows.Handle(process.Value()),
	); err != nil {
		return fmt.Errorf("AssignProcessToJobObject: %w", err)
	}
	return nil
}

// Terminate kills every process currently assigned to the job.
func (j *Job) Terminate() error {
	if j == nil || !j.handle.Valid() {
		return nil
	}
	if err := windows.TerminateJobObject(windows.Handle(j.handle.Value()), 1); err != nil {
		return fmt.Errorf("TerminateJobObject: %w", err)
	}
	return nil
}

// Close releases the job object handle. Because the job was created with
// JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE, this also terminates any process
// still assigned to it.
func (j *Job) Close() error {
	if j == nil {
		return nil
	}
	return j.handle.Close()
}

// ─── Process spawn (redirected stdio, no pseudo console) ───────────────────

// SpawnOpts describes a child process launch for the one-shot executor:
// redirected stdout/stderr, no visible window, stdin set to an invalid
// handle.
type SpawnOpts struct {
	CmdLineUTF16 []uint16
	EnvBlock     []uint16 // nil means inherit the current process environment
	Cwd          string
	Stdout       *Handle
	Stderr       *Handle
	Suspended    bool // start CREATE_SUSPENDED so the caller can assign a job before resuming
}

// Spawned is the result of a successful spawn: owning wrappers for the
// process and primary thread handles, plus the OS process id.
type Spawned struct {
	Process *Handle
	Thread  *Handle
	PID     int
}

// Spawn launches a child process with redirected stdio per SpawnOpts.
func Spawn(opts SpawnOpts) (*Spawned, error) {
	si := &windows.StartupInfo{
		Flags:      windows.STARTF_USESTDHANDLES | windows.STARTF_USESHOWWINDOW,
		ShowWindow: windows.SW_HIDE,
		StdInput:   windows.Handle(0), // invalid handle: the child gets no stdin
	}
	if opts.Stdout != nil {
		si.StdOutput = windows.Handle(opts.Stdout.Value())
	}
	if opts.Stderr != nil {
		si.StdErr = windows.Handle(opts.Stderr.Value())
	}

	var cwdPtr *uint16
	if opts.Cwd != "" {
		p, err := windows.UTF16PtrFromString(opts.Cwd)
		if err != nil {
			return nil, fmt.Errorf("invalid cwd: %w", err)
		}
		cwdPtr = p
	}

	creationFlags := uint32(windows.CREATE_UNICODE_ENVIRONMENT | windows.CREATE_NO_WINDOW)
	if opts.Suspended {
		creationFlags |= windows.CREATE_SUSPENDED
	}

	var envPtr *uint16
	if len(opts.EnvBlock) > 0 {
		envPtr = &opts.EnvBlock[0]
	}

	var pi windows.ProcessInformation
	if err := windows.CreateProcess(
		nil,
		&opts.CmdLineUTF16[0],
		nil, nil,
		true, // inherit handles: required for the redirected stdio pipes
		creationFlags,
		envPtr,
		cwdPtr,
		si,
		&pi,
	); err != nil {
		return nil, fmt.Errorf("CreateProcess: %w", err)
	}

	return &Spawned{
		Process: wrapHandle(pi.Process),
		Thread:  wrapHandle(pi.Thread),
		PID:     int(pi.ProcessId),
	}, nil
}

// Resume resumes a process started with Suspended: true.
func Resume(thread *Handle) error {
	if thread == nil {
		return nil
	}
	if _, err := windows.ResumeThread(windows.Handle(thread.Value())); err != nil {
		return fmt.Errorf("ResumeThread: %w", err)
	}
	return nil
}

// WaitResult is the outcome of a bounded wait on a process handle.
type WaitResult int

const (
	WaitExited WaitResult = iota
	WaitTimedOut
)

// Wait blocks for up to d for process to exit.
func Wait(process *Handle, d time.Duration) (WaitResult, error) {
	ms := uint32(d.Milliseconds())
	ev, err := windows.WaitForSingleObject(windows.Handle(process.Value()), ms)
	if err != nil {
		return 0, fmt.Errorf("WaitForSingleObject: %w", err)
	}
	switch ev {
	case uint32(windows.WAIT_OBJECT_0):
		return WaitExited, nil
	case uint32(windows.WAIT_TIMEOUT):
		return WaitTimedOut, nil
	default:
		return 0, fmt.Errorf("WaitForSingleObject: unexpected result %d", ev)
	}
}

// ExitCode returns the exit code of an already-exited process.
func ExitCode(process *Handle) (uint32, error) {
	var code uint32
	if err := windows.GetExitCodeProcess(windows.Handle(process.Value()), &code); err != nil {
		return 0, fmt.Errorf("GetExitCodeProcess: %w", err)
	}
	return code, nil
}

// Terminate forcibly ends process. Used for a pseudo-console shell's
// terminate signal and close path, and by the executor as the fallback
// when terminating the job object fails.
func Terminate(process *Handle) error {
	if process == nil {
		return nil
	}
	if err := windows.TerminateProcess(windows.Handle(process.Value()), 1); err != nil {
		return fmt.Errorf("TerminateProcess: %w", err)
	}
	return nil
}

// ─── Pipe reads/writes ──────────────────────────────────────────────────────

// readChunk is sized to match the bounded chunks the streaming executor
// and pseudo-console readers emit.
const readChunk = 4096

// ReadAll drains r to end-of-stream (the writer end closing) and returns
// the accumulated bytes. Used by the synchronous executor variant, which
// discards whatever has been read so far if its timeout expires first.
func ReadAll(r *Handle) []byte {
	var buf []byte
	tmp := make([]byte, readChunk)
	for {
		var n uint32
		err := windows.ReadFile(windows.Handle(r.Value()), tmp, &n, nil)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			// ERROR_BROKEN_PIPE: the write end closed, which is the
			// expected end-of-stream signal for an anonymous pipe.
			return buf
		}
		if n == 0 {
			return buf
		}
	}
}

// ReadChunk performs a single bounded read, returning (n, eof, err). Used
// by the streaming executor and pseudo-console readers, which emit each
// chunk as a separate event rather than accumulating to end-of-stream.
func ReadChunk(r *Handle, buf []byte) (int, bool, error) {
	var n uint32
	err := windows.ReadFile(windows.Handle(r.Value()), buf, &n, nil)
	if err != nil {
		return int(n), true, nil
	}
	if n == 0 {
		return 0, true, nil
	}
	return int(n), false, nil
}

// WriteAll writes the entirety of p to w, looping over partial writes.
func WriteAll(w *Handle, p []byte) error {
	for len(p) > 0 {
		var n uint32
		if err := windows.WriteFile(windows.Handle(w.Value()), p, &n, nil); err != nil {
			return fmt.Errorf("WriteFile: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("WriteFile: zero-length write")
		}
		p = p[n:]
	}
	return nil
}
