//go:build windows

package conpty

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/ianremillard/agentcore/internal/winproc"
	"golang.org/x/sys/windows"
)

// Raw kernel32 procs: CreatePseudoConsole/ResizePseudoConsole/
// ClosePseudoConsole have no golang.org/x/sys/windows wrapper, so this
// module calls them directly the way every pseudo-console host does.
var (
	kernel32                = syscall.NewLazyDLL("kernel32.dll")
	procCreatePseudoConsole = kernel32.NewProc("CreatePseudoConsole")
	procResizePseudoConsole = kernel32.NewProc("ResizePseudoConsole")
	procClosePseudoConsole  = kernel32.NewProc("ClosePseudoConsole")
)

// pseudoConsoleThreadAttribute is PROC_THREAD_ATTRIBUTE_PSEUDOCONSOLE, not
// exported by golang.org/x/sys/windows.
const pseudoConsoleThreadAttribute = 0x00020016

func makeCoord(cols, rows uint16) uintptr {
	return uintptr(cols) | (uintptr(rows) << 16)
}

// PTY is one live pseudo-console session: the HPCON object, the
// manager-side pipe ends, and the spawned shell's process handle.
type PTY struct {
	hpc       uintptr
	pipeIn    *winproc.Handle // manager writes here; pseudo-console reads
	pipeOut   *winproc.Handle // manager reads here; pseudo-console writes
	process   *winproc.Handle
	pid       int
	closeOnce sync.Once
}

// New creates two pipe pairs, a pseudo-console bound to one end of each,
// and spawns the shell with the pseudo-console attached as a thread
// attribute.
func New(cfg Config) (*PTY, error) {
	inPipe, err := winproc.NewPipe(winproc.InheritRead) // child/console reads, manager writes
	if err != nil {
		return nil, fmt.Errorf("create input pipe: %w", err)
	}
	outPipe, err := winproc.NewPipe(winproc.InheritWrite) // console writes, manager reads
	if err != nil {
		inPipe.Close()
		return nil, fmt.Errorf("create output pipe: %w", err)
	}

	var hpc uintptr
	r1, _, _ := procCreatePseudoConsole.Call(
		makeCoord(cfg.Cols, cfg.Rows),
		inPipe.Read.Value(),
		outPipe.Write.Value(),
		0,
		uintptr(unsafe.Pointer(&hpc)),
	)
	if r1 != 0 {
		inPipe.Close()
		outPipe.Close()
		return nil, fmt.Errorf("CreatePseudoConsole failed: HRESULT 0x%08x", r1)
	}
	// The pseudo-console now owns the input-read and output-write ends.
	inPipe.Read.Close()
	outPipe.Write.Close()

	spawned, err := spawnWithConsole(hpc, cfg.CmdLineUTF16, cfg.Cwd, cfg.EnvBlock)
	if err != nil {
		procClosePseudoConsole.Call(hpc)
		inPipe.Write.Close()
		outPipe.Read.Close()
		return nil, fmt.Errorf("spawn with pseudo console: %w", err)
	}
	spawned.Thread.Close()

	return &PTY{
		hpc:     hpc,
		pipeIn:  inPipe.Write,
		pipeOut: outPipe.Read,
		process: spawned.Process,
		pid:     spawned.PID,
	}, nil
}

func spawnWithConsole(hpc uintptr, cmdLineUTF16 []uint16, cwd string, envBlock []uint16) (*winproc.Spawned, error) {
	attrList, err := windows.NewProcThreadAttributeList(1)
	if err != nil {
		return nil, fmt.Errorf("NewProcThreadAttributeList: %w", err)
	}
	defer attrList.Delete()

	if err := attrList.Update(
		pseudoConsoleThreadAttribute,
		unsafe.Pointer(&hpc),
		unsafe.Sizeof(hpc),
	); err != nil {
		return nil, fmt.Errorf("UpdateProcThreadAttribute: %w", err)
	}

	si := &windows.StartupInfoEx{
		ProcThreadAttributeList: attrList.List(),
	}
	si.StartupInfo.Cb = uint32(unsafe.Sizeof(*si))

	var cwdPtr *uint16
	if cwd != "" {
		p, err := windows.UTF16PtrFromString(cwd)
		if err != nil {
			return nil, fmt.Errorf("invalid cwd: %w", err)
		}
		cwdPtr = p
	}
	var envPtr *uint16
	if len(envBlock) > 0 {
		envPtr = &envBlock[0]
	}

	var pi windows.ProcessInformation
	if err := windows.CreateProcess(
		nil,
		&cmdLineUTF16[0],
		nil, nil,
		false, // the pseudo-console path inherits no standard handles
		windows.EXTENDED_STARTUPINFO_PRESENT|windows.CREATE_UNICODE_ENVIRONMENT,
		envPtr,
		cwdPtr,
		&si.StartupInfo,
		&pi,
	); err != nil {
		return nil, fmt.Errorf("CreateProcess: %w", err)
	}

	return &winproc.Spawned{
		Process: wrapProcessHandle(pi.Process),
		Thread:  wrapProcessHandle(pi.Thread),
		PID:     int(pi.ProcessId),
	}, nil
}

func wrapProcessHandle(h windows.Handle) *winproc.Handle {
	return winproc.WrapForeign(uintptr(h), func(v uintptr) error {
		return windows.CloseHandle(windows.Handle(v))
	})
}

// PID returns the spawned shell's process id.
func (p *PTY) PID() int { return p.pid }

// WriteInput writes b to the pseudo-console's input pipe, the writer
// worker's only responsibility.
func (p *PTY) WriteInput(b []byte) error {
	return winproc.WriteAll(p.pipeIn, b)
}

// SignalCtrlC injects the ctrl_c byte into the shell's input stream.
func (p *PTY) SignalCtrlC() error { return p.WriteInput([]byte{ctrlByte}) }

// SignalCtrlBreak injects the ctrl_break byte; consoles don't distinguish
// it from ctrl_c at the single-byte-injection level, so this is the same
// write as SignalCtrlC.
func (p *PTY) SignalCtrlBreak() error { return p.WriteInput([]byte{ctrlByte}) }

// ReadOutput performs one bounded read from the pseudo-console's output
// pipe, the reader worker's only responsibility.
func (p *PTY) ReadOutput(buf []byte) (n int, eof bool, err error) {
	return winproc.ReadChunk(p.pipeOut, buf)
}

// Resize re-invokes the pseudo-console resize primitive. On failure the
// caller (internal/session) is responsible for leaving its stored
// dimensions unchanged.
func (p *PTY) Resize(cols, rows uint16) error {
	r1, _, err := procResizePseudoConsole.Call(p.hpc, makeCoord(cols, rows))
	if r1 != 0 {
		return fmt.Errorf("ResizePseudoConsole: %v", err)
	}
	return nil
}

// Terminate calls the OS process-terminate primitive on the shell handle.
func (p *PTY) Terminate() error {
	return winproc.Terminate(p.process)
}

// Close drops the pseudo-console wrapper (closing the pseudo-console and
// the pipe ends it owns), terminates the process if still running, and
// closes the process handle. Safe to call multiple times.
func (p *PTY) Close() error {
	p.closeOnce.Do(func() {
		procClosePseudoConsole.Call(p.hpc)
		winproc.Terminate(p.process)
		p.pipeIn.Close()
		p.pipeOut.Close()
		p.process.Close()
	})
	return nil
}
