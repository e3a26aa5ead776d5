//go:build !windows

package conpty

import "github.com/ianremillard/agentcore/internal/apierr"

// PTY is an inert placeholder outside Windows; every method returns
// NotSupported since the pseudo-console API is Windows-only.
type PTY struct{}

func unsupported() error {
	return apierr.New(apierr.NotSupported, "pseudo console requires Windows")
}

// New is unavailable outside Windows.
func New(cfg Config) (*PTY, error) {
	return nil, unsupported()
}

func (p *PTY) PID() int                                 { return 0 }
func (p *PTY) WriteInput(b []byte) error                { return unsupported() }
func (p *PTY) SignalCtrlC() error                       { return unsupported() }
func (p *PTY) SignalCtrlBreak() error                   { return unsupported() }
func (p *PTY) ReadOutput(buf []byte) (int, bool, error) { return 0, true, unsupported() }
func (p *PTY) Resize(cols, rows uint16) error           { return unsupported() }
func (p *PTY) Terminate() error                         { return unsupported() }
func (p *PTY) Close() error                             { return nil }
