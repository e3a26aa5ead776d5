// Package executor implements the one-shot process executor: a
// synchronous Run and a streaming Stream variant, both spawned under
// job-object containment so a timeout or cancellation kills the whole
// process tree, not just the root process.
package executor

import (
	"context"
	"strings"
	"time"

	"github.com/ianremillard/agentcore/internal/apierr"
	"github.com/ianremillard/agentcore/internal/cmdline"
	"github.com/ianremillard/agentcore/internal/wire"
	"github.com/ianremillard/agentcore/internal/winproc"
	"github.com/sirupsen/logrus"
)

// pollQuantum is the wait-object poll interval.
const pollQuantum = 100 * time.Millisecond

var log = logrus.WithField("component", "executor")

// Request is the fully-resolved input to Run/Stream: the wire.ExecRequest
// with Env already overlaid onto the inherited environment by the caller.
type Request struct {
	Shell   wire.Shell
	Command string
	Args    []string
	Cwd     string
	Env     []string // NAME=VALUE, already overlaid and sorted (internal/cmdline.EnvOverlay)
	Timeout time.Duration
}

// Result is the outcome of a successful synchronous run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// contained bundles everything spawnContained hands back so both Run and
// Stream can wait on, read from, and tear down the same child uniformly.
type contained struct {
	job       *winproc.Job
	spawned   *winproc.Spawned
	stdoutPipe *winproc.PipePair
	stderrPipe *winproc.PipePair
}

func (c *contained) closeParentHandles() {
	c.stdoutPipe.Write.Close()
	c.stderrPipe.Write.Close()
}

func (c *contained) teardown() {
	c.spawned.Process.Close()
	c.spawned.Thread.Close()
	c.stdoutPipe.Close()
	c.stderrPipe.Close()
	c.job.Close()
}

// spawnContained validates the shell kind, then sets up two pipe pairs, a
// job object, a suspended spawn, job assignment, then resume — so
// assignment happens before the child executes user code.
func spawnContained(req Request) (*contained, error) {
	cmdLine, err := cmdline.Build(req.Shell, req.Command, req.Args)
	if err != nil {
		return nil, apierr.New(apierr.BadRequest, err.Error())
	}

	stdoutPipe, err := winproc.NewPipe(winproc.InheritWrite)
	if err != nil {
		return nil, processCreationFailed("create stdout pipe", err)
	}
	stderrPipe, err := winproc.NewPipe(winproc.InheritWrite)
	if err != nil {
		stdoutPipe.Close()
		return nil, processCreationFailed("create stderr pipe", err)
	}

	job, err := winproc.NewJob()
	if err != nil {
		stdoutPipe.Close()
		stderrPipe.Close()
		return nil, processCreationFailed("create job object", err)
	}

	spawned, err := winproc.Spawn(winproc.SpawnOpts{
		CmdLineUTF16: cmdline.CommandLineUTF16(cmdLine),
		EnvBlock:     cmdline.EnvBlock(req.Env),
		Cwd:          req.Cwd,
		Stdout:       stdoutPipe.Write,
		Stderr:       stderrPipe.Write,
		Suspended:    true,
	})
	if err != nil {
		stdoutPipe.Close()
		stderrPipe.Close()
		job.Close()
		return nil, processCreationFailed("spawn process", err)
	}

	if err := job.Assign(spawned.Process); err != nil {
		spawned.Process.Close()
		spawned.Thread.Close()
		stdoutPipe.Close()
		stderrPipe.Close()
		job.Close()
		return nil, processCreationFailed("assign process to job", err)
	}
	if err := winproc.Resume(spawned.Thread); err != nil {
		spawned.Process.Close()
		spawned.Thread.Close()
		stdoutPipe.Close()
		stderrPipe.Close()
		job.Close()
		return nil, processCreationFailed("resume process", err)
	}

	c := &contained{job: job, spawned: spawned, stdoutPipe: stdoutPipe, stderrPipe: stderrPipe}
	c.closeParentHandles() // close child-side ends in the parent
	return c, nil
}

func processCreationFailed(step string, cause error) *apierr.Error {
	code := apierr.Internal
	if apierr.Is(cause, apierr.NotSupported) {
		code = apierr.NotSupported
	}
	return apierr.Wrap(code, "process creation failed: "+step, cause).
		WithDetails(map[string]any{"step": step})
}

// lossyUTF8 decodes b as UTF-8 with the standard replacement character
// substituted for invalid sequences.
func lossyUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// Run spawns the command and waits for it with a bounded poll quantum,
// reading both pipes to end of stream on normal exit. Partial output
// collected before a timeout is discarded.
func Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	c, err := spawnContained(req)
	if err != nil {
		return nil, err
	}
	entry := log.WithField("pid", c.spawned.PID)
	entry.Info("process started")

	stdoutCh := readAll(c.stdoutPipe.Read)
	stderrCh := readAll(c.stderrPipe.Read)

	deadline := time.Now().Add(req.Timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			entry.Warn("process timed out, terminating job")
			terminateContained(c)
			<-stdoutCh
			<-stderrCh
			c.teardown()
			return nil, apierr.New(apierr.Timeout, "process exceeded timeout").
				WithDetails(map[string]any{"timeout_ms": req.Timeout.Milliseconds()})
		}

		wait := pollQuantum
		if remaining < wait {
			wait = remaining
		}
		result, err := winproc.Wait(c.spawned.Process, wait)
		if err != nil {
			c.teardown()
			return nil, apierr.Wrap(apierr.Internal, "wait failed", err)
		}
		if result == winproc.WaitExited {
			code, err := winproc.ExitCode(c.spawned.Process)
			if err != nil {
				c.teardown()
				return nil, apierr.Wrap(apierr.Internal, "exit code read failed", err)
			}
			stdout := <-stdoutCh
			stderr := <-stderrCh
			c.teardown()
			duration := time.Since(start)
			entry.WithField("exit_code", code).Info("process exited")
			return &Result{
				ExitCode: int(code),
				Stdout:   lossyUTF8(stdout),
				Stderr:   lossyUTF8(stderr),
				Duration: duration,
			}, nil
		}

		select {
		case <-ctx.Done():
			terminateContained(c)
			<-stdoutCh
			<-stderrCh
			c.teardown()
			return nil, apierr.Wrap(apierr.Internal, "canceled", ctx.Err())
		default:
		}
	}
}

func terminateContained(c *contained) {
	if err := c.job.Terminate(); err != nil {
		log.WithField("pid", c.spawned.PID).WithError(err).
			Warn("job termination failed, falling back to process termination")
		winproc.Terminate(c.spawned.Process)
	}
}

// readAll drains r to EOF on a dedicated goroutine and delivers the
// accumulated bytes on the returned channel when the pipe closes (either
// because the child exited and the last writer handle closed, or because
// the caller closed the pipe during teardown).
func readAll(r *winproc.Handle) <-chan []byte {
	out := make(chan []byte, 1)
	go func() {
		out <- winproc.ReadAll(r)
	}()
	return out
}
