// Package attach implements the attachment protocol: a bidirectional
// framed byte channel pairing one external client with one session's
// output fan-out and input sink. It is transport-agnostic (see Conn
// below); the gorilla/websocket adapter lives in wsconn.go.
package attach

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ianremillard/agentcore/internal/apierr"
	"github.com/ianremillard/agentcore/internal/session"
	"github.com/ianremillard/agentcore/internal/wire"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "attach")

// Close codes an attachment can send. These are the same numeric values
// gorilla/websocket names CloseNormalClosure, ClosePolicyViolation, and
// CloseInternalServerErr.
const (
	CodeNormal      = websocket.CloseNormalClosure
	CodePolicy      = websocket.ClosePolicyViolation
	CodeUnexpected  = websocket.CloseInternalServerErr
	reasonEnded     = "Session ended"
	reasonDuplicate = "Session already attached"
	reasonNotFound  = "Session not found"
)

// pongQueueSize bounds the number of outstanding ping timestamps awaiting
// a pong reply: the reader half enqueues, the writer half drains, and a
// slow writer drops rather than blocking input forwarding.
const pongQueueSize = 16

// Conn is the minimal bidirectional framed transport an attachment needs:
// binary frames (terminal bytes), text frames (JSON control objects), and
// a close frame. Message type constants match gorilla/websocket's
// TextMessage/BinaryMessage/CloseMessage so a *websocket.Conn implements
// this interface directly.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Handler serves attachments against a session registry.
type Handler struct {
	registry *session.Registry
}

// NewHandler constructs an attachment handler bound to reg.
func NewHandler(reg *session.Registry) *Handler {
	return &Handler{registry: reg}
}

// Serve runs one attachment to completion: subscribe → forward until
// either side closes → mark detached. It returns once the attachment has
// fully ended; conn is closed before Serve returns.
func (h *Handler) Serve(id string, conn Conn) {
	defer conn.Close()

	att, err := h.registry.Subscribe(id)
	if err != nil {
		if apierr.Is(err, apierr.NotFound) {
			sendClose(conn, CodeUnexpected, reasonNotFound)
			return
		}
		// The only other error Subscribe returns is the exclusivity
		// rejection: a session only ever has one live attachment.
		sendClose(conn, CodePolicy, reasonDuplicate)
		return
	}

	logger := log.WithField("session_id", id)
	logger.Info("attachment opened")

	pongs := make(chan uint64, pongQueueSize)
	readerDone := make(chan struct{})
	writerDone := make(chan struct{})
	go runWriter(conn, att, pongs, readerDone, writerDone)

	runReader(conn, att, pongs, readerDone, logger)

	<-writerDone
	att.Release()
	logger.Info("attachment closed")
}

// runWriter owns every call to conn.WriteMessage: it forwards output
// fan-out chunks as binary frames and drains the pong queue, since
// gorilla/websocket (and framed transports generally) require writes be
// serialized from a single goroutine. It exits when the output fan-out
// closes (shell exit) or when readerDone signals the peer is gone,
// whichever happens first.
func runWriter(conn Conn, att *session.Attachment, pongs <-chan uint64, readerDone <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case chunk, ok := <-att.Output:
			if !ok {
				// Fan-out closed: the shell exited.
				sendClose(conn, CodeNormal, reasonEnded)
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				return
			}
		case t := <-pongs:
			writePong(conn, t)
		case <-readerDone:
			return
		}
	}
}

func writePong(conn Conn, t uint64) {
	b, err := json.Marshal(wire.ControlFrame{Type: wire.ControlPong, T: t})
	if err != nil {
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

// runReader reads frames from conn until it closes or errors, dispatching
// binary frames as input and text frames as control frames. It closes
// done so runWriter's select can observe the end even if Output never
// closes.
func runReader(conn Conn, att *session.Attachment, pongs chan<- uint64, done chan<- struct{}, logger *logrus.Entry) {
	defer close(done)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		att.Session.Touch()
		switch mt {
		case websocket.BinaryMessage:
			if err := att.SendInput(data); err != nil {
				logger.WithError(err).Warn("input forwarding failed, closing attachment")
				return
			}
		case websocket.TextMessage:
			handleControlFrame(att, data, pongs, logger)
		case websocket.CloseMessage:
			return
		}
	}
}

// handleControlFrame dispatches one decoded control frame. Malformed
// payloads and unrecognized types are logged and ignored; the attachment
// stays open.
func handleControlFrame(att *session.Attachment, data []byte, pongs chan<- uint64, logger *logrus.Entry) {
	cf, err := wire.ParseControlFrame(data)
	if err != nil {
		logger.WithError(err).Warn("malformed control frame, ignoring")
		return
	}
	switch cf.Type {
	case wire.ControlResize:
		if err := att.Session.Resize(cf.Cols, cf.Rows); err != nil {
			logger.WithError(err).Warn("resize failed")
		}
	case wire.ControlSignal:
		if !cf.Signal.Valid() {
			logger.WithField("signal", cf.Signal).Warn("unrecognized signal in control frame, ignoring")
			return
		}
		if err := att.Session.Signal(cf.Signal); err != nil {
			logger.WithError(err).Warn("signal delivery failed")
		}
	case wire.ControlPing:
		select {
		case pongs <- cf.T:
		default:
			// Writer is behind; drop rather than block the reader.
		}
	default:
		logger.WithField("type", cf.Type).Warn("unrecognized control frame type, ignoring")
	}
}

// sendClose best-efforts a close frame; write errors are ignored since the
// connection is being torn down regardless.
func sendClose(conn Conn, code int, reason string) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}

// pingInterval is how often the websocket adapter sends a protocol-level
// ping to keep a half-open TCP connection from pinning an attachment
// slot indefinitely; see wsconn.go.
const pingInterval = 30 * time.Second
