// Package cmdline assembles shell-specific command lines and Unicode
// environment blocks for Windows process creation.
package cmdline

import (
	"sort"
	"strings"

	"github.com/ianremillard/agentcore/internal/wire"
)

// quoteArg wraps arg in double quotes if it contains a space. No further
// escaping is attempted — shells invoked this way (cmd.exe /c,
// powershell.exe -Command) receive the joined string as a single opaque
// command and perform their own parsing.
func quoteArg(arg string) string {
	if strings.Contains(arg, " ") {
		return `"` + arg + `"`
	}
	return arg
}

// Build assembles the full command line for the given shell kind,
// command, and argument list.
//
//	cmd:        cmd.exe /c <command> [args...]
//	powershell: powershell.exe -NoLogo -NoProfile -Command <command> [args...]
func Build(shell wire.Shell, command string, args []string) (string, error) {
	var parts []string
	switch shell {
	case wire.ShellCmd:
		parts = append(parts, "cmd.exe", "/c", command)
	case wire.ShellPowerShell:
		parts = append(parts, "powershell.exe", "-NoLogo", "-NoProfile", "-Command", command)
	default:
		return "", &unsupportedShellError{shell: shell}
	}
	for _, a := range args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " "), nil
}

type unsupportedShellError struct{ shell wire.Shell }

func (e *unsupportedShellError) Error() string {
	return "unsupported shell: " + string(e.shell)
}

// EnvOverlay builds the child process environment block: enumerate base
// (normally the inherited parent environment), replace
// entries whose name (compared case-sensitively up to the first '=')
// matches an override, append remaining overrides, then sort the whole
// sequence lexicographically. The caller is responsible for converting
// the returned "NAME=VALUE" entries to a NUL-terminated UTF-16 block at
// the point of spawn (internal/winproc on Windows).
func EnvOverlay(base []string, overrides map[string]string) []string {
	remaining := make(map[string]string, len(overrides))
	for k, v := range overrides {
		remaining[k] = v
	}

	result := make([]string, 0, len(base)+len(overrides))
	for _, entry := range base {
		name, _, found := strings.Cut(entry, "=")
		if !found {
			result = append(result, entry)
			continue
		}
		if v, ok := remaining[name]; ok {
			result = append(result, name+"="+v)
			delete(remaining, name)
			continue
		}
		result = append(result, entry)
	}

	// Appending order for new entries must itself be deterministic before
	// the final sort, or two calls with the same overrides in different
	// map iteration orders could observe different intermediate slices
	// (harmless here since we sort next, but keeps this function testable
	// without relying on sort to mask a bug).
	var newNames []string
	for name := range remaining {
		newNames = append(newNames, name)
	}
	sort.Strings(newNames)
	for _, name := range newNames {
		result = append(result, name+"="+remaining[name])
	}

	sort.Strings(result)
	return result
}
