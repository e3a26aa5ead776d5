// Package session implements the session data model and concurrent
// registry: a pseudo-console-backed session record guarded by its own
// readers-writer lock, an input sink and output fan-out, and a registry
// with idle reaping.
package session

import (
	"sync"
	"time"

	"github.com/ianremillard/agentcore/internal/apierr"
	"github.com/ianremillard/agentcore/internal/conpty"
	"github.com/ianremillard/agentcore/internal/wire"
	"github.com/sirupsen/logrus"
)

// inputChanCapacity bounds the multi-producer single-consumer input
// sink.
const inputChanCapacity = 32

// readChunkSize is the reader worker's fixed buffer size.
const readChunkSize = 4096

var log = logrus.WithField("component", "session")

// Session is one pseudo-console-backed shell, guarded by its own
// readers-writer lock rather than a registry-wide lock so one session's
// mutation doesn't stall a registry-wide list() or a sibling session.
type Session struct {
	id          string
	shell       wire.Shell
	cwd         string
	idleTimeout time.Duration
	createdAt   time.Time

	mu           sync.RWMutex
	cols, rows   uint16
	state        wire.SessionState
	attached     bool
	lastActivity time.Time

	pty    *conpty.PTY
	input  chan []byte
	output *fanout
	stopCh chan struct{}

	notifyOnce sync.Once
	onExit     func(id string)

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSession(id string, req wire.SessionCreateRequest, pty *conpty.PTY) *Session {
	now := time.Now()
	s := &Session{
		id:           id,
		shell:        req.Shell,
		cwd:          req.Cwd,
		idleTimeout:  time.Duration(req.IdleTimeoutSec) * time.Second,
		createdAt:    now,
		cols:         req.Cols,
		rows:         req.Rows,
		state:        wire.SessionRunning,
		lastActivity: now,
		pty:          pty,
		input:        make(chan []byte, inputChanCapacity),
		output:       newFanout(),
		stopCh:       make(chan struct{}),
	}

	s.wg.Add(2)
	go s.writerLoop()
	go s.readerLoop()

	if req.Init.ForceUTF8 {
		s.enqueueInput([]byte(conpty.PrimingLine(req.Shell)))
	}

	return s
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// PID returns the spawned shell's process id.
func (s *Session) PID() int { return s.pty.PID() }

// writerLoop drains the input channel and writes each chunk to the
// pseudo-console's input pipe. It exits when the session is stopped
// (stopCh closed) or on write failure.
func (s *Session) writerLoop() {
	defer s.wg.Done()
	for {
		select {
		case chunk := <-s.input:
			if err := s.pty.WriteInput(chunk); err != nil {
				log.WithField("session_id", s.id).WithError(err).Warn("writer thread write failure, ending session")
				s.onFatal()
				return
			}
			s.touch()
		case <-s.stopCh:
			return
		}
	}
}

// readerLoop reads from the pseudo-console's output pipe into a fixed
// buffer and publishes each non-empty chunk to the output fan-out. It
// exits on pipe EOF or read failure, which is the shell-exit detection
// path.
func (s *Session) readerLoop() {
	defer s.wg.Done()
	buf := make([]byte, readChunkSize)
	for {
		n, eof, err := s.pty.ReadOutput(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.output.publish(chunk)
			s.touch()
		}
		if eof || err != nil {
			log.WithField("session_id", s.id).WithField("pid", s.pty.PID()).Info("shell exited")
			s.onFatal()
			return
		}
	}
}

// onFatal is the convergence point for shell exit, writer failure, and
// reader failure: mark exited and close the output fan-out so every
// attachment observes the shell is gone.
func (s *Session) onFatal() {
	s.mu.Lock()
	s.state = wire.SessionExited
	s.mu.Unlock()
	s.output.close()
	s.notifyOnce.Do(func() {
		if s.onExit != nil {
			go s.onExit(s.id)
		}
	})
}

// setExitNotifier registers a callback the registry uses to promptly
// terminate and remove a session once its shell has exited, rather than
// waiting for the next reaper pass or an explicit delete.
func (s *Session) setExitNotifier(fn func(id string)) {
	s.onExit = fn
}

// Touch updates last_activity from an attachment-side event that isn't
// already covered by SendInput/Resize/Signal, e.g. a ping or a malformed
// control frame.
func (s *Session) Touch() { s.touch() }

// Resize is the attachment-facing entry point for changing the
// pseudo-console's dimensions.
func (s *Session) Resize(cols, rows uint16) error { return s.resize(cols, rows) }

// Signal is the attachment-facing entry point for delivering a signal to
// the shell.
func (s *Session) Signal(kind wire.SignalKind) error { return s.signal(kind) }

// touch updates last_activity, which must be monotonic non-decreasing
// while the session exists.
func (s *Session) touch() {
	s.mu.Lock()
	now := time.Now()
	if now.After(s.lastActivity) {
		s.lastActivity = now
	}
	s.mu.Unlock()
}

// enqueueInput pushes a chunk onto the input sink. Returns an error
// (session input closed) if the channel cannot accept it; the caller of
// the public API terminates the attachment on this condition.
func (s *Session) enqueueInput(chunk []byte) error {
	select {
	case s.input <- chunk:
		s.touch()
		return nil
	case <-s.stopCh:
		return apierr.New(apierr.Internal, "session input closed")
	default:
	}
	// Bounded channel full: block briefly rather than drop input bytes.
	// Every input byte should reach the shell unless the attachment
	// closes first.
	select {
	case s.input <- chunk:
		s.touch()
		return nil
	case <-s.stopCh:
		return apierr.New(apierr.Internal, "session input closed")
	case <-time.After(5 * time.Second):
		return apierr.New(apierr.Internal, "session input channel stalled")
	}
}

// snapshotLocked builds the wire representation assuming the caller
// already holds s.mu for reading.
func (s *Session) snapshotLocked() wire.SessionInfo {
	return wire.SessionInfo{
		ID:             s.id,
		Shell:          s.shell,
		PID:            s.pty.PID(),
		State:          s.state,
		Attached:       s.attached,
		Cols:           s.cols,
		Rows:           s.rows,
		CreatedAt:      s.createdAt.UTC().Format(time.RFC3339),
		LastActivityAt: s.lastActivity.UTC().Format(time.RFC3339),
	}
}

// snapshot returns the wire representation of the session's current
// metadata, taken under a read lock. Used by get(id), which may block
// briefly on an in-flight mutation.
func (s *Session) snapshot() wire.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// trySnapshot is List's non-blocking best-effort read: if the entry is
// currently locked for writing, ok is false and the caller skips it.
func (s *Session) trySnapshot() (info wire.SessionInfo, ok bool) {
	if !s.mu.TryRLock() {
		return wire.SessionInfo{}, false
	}
	defer s.mu.RUnlock()
	return s.snapshotLocked(), true
}

// tryCheckIdle is the reaper's non-blocking idle test: if the entry is
// currently locked for writing, locked is false and the reaper
// re-examines it next interval.
func (s *Session) tryCheckIdle(now time.Time) (idle bool, locked bool) {
	if !s.mu.TryLock() {
		return false, false
	}
	defer s.mu.Unlock()
	if s.attached {
		return false, true
	}
	return now.Sub(s.lastActivity) >= s.idleTimeout, true
}

// tryAttach sets attached = true if it was false. Returns false if
// another attachment already holds it.
func (s *Session) tryAttach() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return false
	}
	s.attached = true
	return true
}

// detach clears attached.
func (s *Session) detach() {
	s.mu.Lock()
	s.attached = false
	s.mu.Unlock()
}

// subscribeOutput registers a new output subscriber.
func (s *Session) subscribeOutput() (int, <-chan []byte) {
	return s.output.subscribe()
}

// unsubscribeOutput removes an output subscriber.
func (s *Session) unsubscribeOutput(id int) {
	s.output.unsubscribe(id)
}

// resize invokes the pseudo-console resize primitive and, only if it
// succeeds, stores the new dimensions. On failure the stored dimensions
// are left unchanged.
func (s *Session) resize(cols, rows uint16) error {
	if err := s.pty.Resize(cols, rows); err != nil {
		log.WithField("session_id", s.id).WithError(err).Warn("resize failed")
		return err
	}
	s.mu.Lock()
	s.cols, s.rows = cols, rows
	s.mu.Unlock()
	s.touch()
	return nil
}

// signal delivers kind to the shell.
func (s *Session) signal(kind wire.SignalKind) error {
	var err error
	switch kind {
	case wire.SignalCtrlC:
		err = s.pty.SignalCtrlC()
	case wire.SignalCtrlBreak:
		err = s.pty.SignalCtrlBreak()
	case wire.SignalTerminate:
		err = s.pty.Terminate()
	default:
		return apierr.New(apierr.BadRequest, "unrecognized signal kind")
	}
	if err == nil {
		s.touch()
	}
	return err
}

// terminate is the shared termination sequence: abort I/O workers by
// closing the pseudo-console, which closes the pipes the workers block
// on, then wait for both workers to exit.
func (s *Session) terminate() {
	s.closeOnce.Do(func() {
		s.pty.Close()
		close(s.stopCh)
		s.wg.Wait()
		s.output.close()
		s.mu.Lock()
		s.state = wire.SessionExited
		s.mu.Unlock()
	})
}
