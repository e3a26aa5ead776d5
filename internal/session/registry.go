package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ianremillard/agentcore/internal/apierr"
	"github.com/ianremillard/agentcore/internal/cmdline"
	"github.com/ianremillard/agentcore/internal/conpty"
	"github.com/ianremillard/agentcore/internal/sessionid"
	"github.com/ianremillard/agentcore/internal/wire"
)

// inheritedEnviron returns the current process's environment, the base
// onto which a creation request's Env overrides are overlaid.
func inheritedEnviron() []string {
	return os.Environ()
}

// reapInterval is the reaper's fixed period.
const reapInterval = 30 * time.Second

// defaultIdleTimeout is used when a creation request omits one.
const defaultIdleTimeout = 5 * time.Minute

// Registry is the process-wide, concurrent session map: a map keyed by
// session identifier with each value behind its own readers-writer
// guard, plus a background idle reaper.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	stopReaper chan struct{}
	reaperDone chan struct{}
}

// NewRegistry constructs a registry and starts its idle reaper. The
// caller should call Shutdown when the process exits.
func NewRegistry() *Registry {
	r := &Registry{
		sessions:   make(map[string]*Session),
		stopReaper: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}
	go r.reapLoop()
	return r
}

// Create allocates a new pseudo-console session, inserts it into the
// registry, and returns it.
func (r *Registry) Create(req wire.SessionCreateRequest) (*Session, error) {
	if !req.Shell.Valid() {
		return nil, apierr.New(apierr.BadRequest, "unknown shell")
	}
	if req.IdleTimeoutSec <= 0 {
		req.IdleTimeoutSec = int64(defaultIdleTimeout.Seconds())
	}

	cmdLine, err := shellLaunchLine(req.Shell)
	if err != nil {
		return nil, apierr.New(apierr.BadRequest, err.Error())
	}
	env := cmdline.EnvOverlay(inheritedEnviron(), req.Env)

	pty, err := conpty.New(conpty.Config{
		Cols:         req.Cols,
		Rows:         req.Rows,
		CmdLineUTF16: cmdline.CommandLineUTF16(cmdLine),
		EnvBlock:     cmdline.EnvBlock(env),
		Cwd:          req.Cwd,
	})
	if err != nil {
		if apierr.Is(err, apierr.NotSupported) {
			return nil, apierr.New(apierr.NotSupported, "pseudo console unavailable on this host")
		}
		return nil, apierr.Wrap(apierr.Internal, "create pseudo console session", err)
	}

	id := sessionid.New()
	sess := newSession(id, req, pty)

	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()

	sess.setExitNotifier(r.onSessionExit)

	log.WithField("session_id", id).WithField("pid", sess.PID()).Info("session created")
	return sess, nil
}

// shellLaunchLine builds the bare interactive shell command line (no
// command/args, since a session's shell runs interactively rather than
// one-shot): the executable itself, plus -NoLogo for powershell.
func shellLaunchLine(shell wire.Shell) (string, error) {
	switch shell {
	case wire.ShellCmd:
		return "cmd.exe", nil
	case wire.ShellPowerShell:
		return "powershell.exe -NoLogo", nil
	default:
		return "", fmt.Errorf("unsupported shell: %s", shell)
	}
}

// onSessionExit is the Session exit notifier: it promptly terminates and
// removes a session whose shell has already exited, instead of waiting
// for an explicit delete or the next reaper pass.
func (r *Registry) onSessionExit(id string) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if ok {
		sess.terminate()
		log.WithField("session_id", id).Info("session removed after shell exit")
	}
}

// List returns a non-blocking best-effort snapshot of every session;
// entries locked for writing are skipped.
func (r *Registry) List() []wire.SessionInfo {
	r.mu.RLock()
	ids := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		ids = append(ids, s)
	}
	r.mu.RUnlock()

	out := make([]wire.SessionInfo, 0, len(ids))
	for _, s := range ids {
		if info, ok := s.trySnapshot(); ok {
			out = append(out, info)
		}
	}
	return out
}

// Get returns a point-in-time snapshot of one session's metadata.
func (r *Registry) Get(id string) (wire.SessionInfo, error) {
	s, err := r.lookup(id)
	if err != nil {
		return wire.SessionInfo{}, err
	}
	return s.snapshot(), nil
}

// Exists reports whether id refers to a live session.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Terminate removes the session, then terminates the shell and closes
// its handles. Idempotent: a second call returns NotFound.
func (r *Registry) Terminate(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return apierr.NotFoundf("no such session: %s", id)
	}
	s.terminate()
	log.WithField("session_id", id).Info("session terminated")
	return nil
}

// Signal delivers kind to the session's shell.
func (r *Registry) Signal(id string, kind wire.SignalKind) error {
	if !kind.Valid() {
		return apierr.New(apierr.BadRequest, "unrecognized signal kind")
	}
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	return s.signal(kind)
}

// Resize changes the session's pseudo-console dimensions.
func (r *Registry) Resize(id string, cols, rows uint16) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	return s.resize(cols, rows)
}

// Attachment bundles what Subscribe hands back to the attachment layer:
// an input sink, an output subscriber, and a metadata snapshot. Release
// must be called when the attachment ends.
type Attachment struct {
	Session    *Session
	subID      int
	Output     <-chan []byte
	Snapshot   wire.SessionInfo
	alreadyHad bool
}

// Release unsubscribes from the output fan-out and clears the session's
// attached flag.
func (a *Attachment) Release() {
	a.Session.unsubscribeOutput(a.subID)
	a.Session.detach()
}

// Subscribe enforces the one-attachment-at-a-time exclusivity rule and
// returns an Attachment handle.
func (r *Registry) Subscribe(id string) (*Attachment, error) {
	s, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if !s.tryAttach() {
		return nil, apierr.New(apierr.BadRequest, "session already attached").
			WithDetails(map[string]any{"close_code": 1008})
	}
	subID, out := s.subscribeOutput()
	return &Attachment{
		Session:  s,
		subID:    subID,
		Output:   out,
		Snapshot: s.snapshot(),
	}, nil
}

// SendInput forwards a binary frame's payload to the session's input
// sink.
func (a *Attachment) SendInput(b []byte) error {
	return a.Session.enqueueInput(b)
}

func (r *Registry) lookup(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apierr.NotFoundf("no such session: %s", id)
	}
	return s, nil
}

// reapLoop runs the fixed-interval idle reaper.
func (r *Registry) reapLoop() {
	defer close(r.reaperDone)
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.reapOnce(time.Now())
		case <-r.stopReaper:
			return
		}
	}
}

func (r *Registry) reapOnce(now time.Time) {
	r.mu.RLock()
	candidates := make(map[string]*Session, len(r.sessions))
	for id, s := range r.sessions {
		candidates[id] = s
	}
	r.mu.RUnlock()

	for id, s := range candidates {
		idle, locked := s.tryCheckIdle(now)
		if !locked {
			continue // contested entry: re-examined next interval
		}
		if !idle {
			continue
		}
		r.mu.Lock()
		delete(r.sessions, id)
		r.mu.Unlock()
		s.terminate()
		log.WithField("session_id", id).Info("session reaped (idle)")
	}
}

// Shutdown stops the idle reaper and terminates every live session, for
// process shutdown.
func (r *Registry) Shutdown() {
	close(r.stopReaper)
	<-r.reaperDone

	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.terminate()
	}
}
