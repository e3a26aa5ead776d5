package executor

import (
	"context"
	"sync"
	"time"

	"github.com/ianremillard/agentcore/internal/apierr"
	"github.com/ianremillard/agentcore/internal/wire"
	"github.com/ianremillard/agentcore/internal/winproc"
)

// streamEventCapacity bounds the event channel; producers block on
// backpressure once it fills.
const streamEventCapacity = 64

// Stream runs the command with one reader per pipe emitting bounded
// chunks tagged {stdout, stderr} into a single event channel, plus a
// terminal {exit} or {error} event. The channel is closed after the
// terminal event; callers range over it until closed.
func Stream(ctx context.Context, req Request) (<-chan wire.ExecStreamEvent, error) {
	c, err := spawnContained(req)
	if err != nil {
		return nil, err
	}
	entry := log.WithField("pid", c.spawned.PID)
	entry.Info("streaming process started")

	events := make(chan wire.ExecStreamEvent, streamEventCapacity)
	go runStream(ctx, c, req.Timeout, events)
	return events, nil
}

func runStream(ctx context.Context, c *contained, timeout time.Duration, events chan<- wire.ExecStreamEvent) {
	defer close(events)
	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(2)
	go pumpPipe(c.stdoutPipe.Read, wire.ExecEventStdout, events, &wg)
	go pumpPipe(c.stderrPipe.Read, wire.ExecEventStderr, events, &wg)

	deadline := start.Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			log.WithField("pid", c.spawned.PID).Warn("stream timed out, terminating job")
			terminateContained(c)
			wg.Wait()
			c.teardown()
			events <- wire.ExecStreamEvent{
				Type:  wire.ExecEventError,
				Error: apierr.New(apierr.Timeout, "process exceeded timeout").Error(),
			}
			return
		}

		wait := pollQuantum
		if remaining < wait {
			wait = remaining
		}
		result, err := winproc.Wait(c.spawned.Process, wait)
		if err != nil {
			wg.Wait()
			c.teardown()
			events <- wire.ExecStreamEvent{Type: wire.ExecEventError, Error: err.Error()}
			return
		}
		if result == winproc.WaitExited {
			code, err := winproc.ExitCode(c.spawned.Process)
			wg.Wait() // drain remaining buffered output before the terminal event
			c.teardown()
			if err != nil {
				events <- wire.ExecStreamEvent{Type: wire.ExecEventError, Error: err.Error()}
				return
			}
			events <- wire.ExecStreamEvent{
				Type:       wire.ExecEventExit,
				ExitCode:   int(code),
				DurationMs: time.Since(start).Milliseconds(),
			}
			return
		}

		select {
		case <-ctx.Done():
			terminateContained(c)
			wg.Wait()
			c.teardown()
			events <- wire.ExecStreamEvent{Type: wire.ExecEventError, Error: ctx.Err().Error()}
			return
		default:
		}
	}
}

// pumpPipe reads bounded chunks from r and emits one event per chunk until
// the pipe reaches end-of-stream.
func pumpPipe(r *winproc.Handle, typ wire.ExecStreamEventType, events chan<- wire.ExecStreamEvent, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, 4096)
	for {
		n, eof, err := winproc.ReadChunk(r, buf)
		if n > 0 {
			events <- wire.ExecStreamEvent{Type: typ, Chunk: lossyUTF8(buf[:n])}
		}
		if eof || err != nil {
			return
		}
	}
}
