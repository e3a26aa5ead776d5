// Package conpty implements pseudo-console session creation: the
// manager-side pipe pair, the pseudo-console object, the extended spawn
// that binds it as a thread attribute, and the resize/signal/termination
// primitives a session needs.
package conpty

import (
	"github.com/ianremillard/agentcore/internal/wire"
)

// Config is the fully-resolved input to New.
type Config struct {
	Cols         uint16
	Rows         uint16
	CmdLineUTF16 []uint16
	EnvBlock     []uint16
	Cwd          string
}

// PrimingLine returns the shell-specific line that forces UTF-8 on both
// input and output streams. The caller only queues this onto the input
// channel when the creation request's Init.ForceUTF8 is set — priming is
// opt-in rather than automatic, since it types text into a shell the
// operator may not expect to see echoed.
func PrimingLine(shell wire.Shell) string {
	switch shell {
	case wire.ShellPowerShell:
		return "[Console]::InputEncoding = [System.Text.Encoding]::UTF8; " +
			"[Console]::OutputEncoding = [System.Text.Encoding]::UTF8\r\n"
	default:
		return "chcp 65001\r\n"
	}
}

// ctrlByte is the single byte injected into the input channel for both
// ctrl_c and ctrl_break.
const ctrlByte = 0x03
