package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // same trust model as the REST endpoints
	},
}

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type  string `json:"type"`
	Code  string `json:"code,omitempty"`
	Input string `json:"input,omitempty"`
}

// wsOutgoing is a message to the client.
type wsOutgoing struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Prompt string `json:"prompt,omitempty"`
	Error  string `json:"error,omitempty"`
}

// handleWebSocket is the control channel for interactive runs. One
// connection is one session; its id lives for the connection and every run
// event for the session flows over this socket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.New().String()
	defer s.registry.Remove(sessionID)

	cw := &connWriter{conn: conn}

	for {
		var msg wsIncoming
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			log.Printf("websocket read error: %v", err)
			return
		}

		switch msg.Type {
		case "run_code":
			if strings.TrimSpace(msg.Code) == "" {
				cw.write(wsOutgoing{Type: "error", Error: "No code provided"})
				continue
			}
			// A new submit replaces any prior run for this session.
			ctx, cancel := context.WithCancel(context.Background())
			run := s.registry.Create(sessionID, cancel)
			go s.runSession(ctx, run, msg.Code, cw)

		case "input_response":
			// Dropped silently when no input request is outstanding.
			s.registry.Deliver(sessionID, msg.Input)

		default:
			cw.write(wsOutgoing{Type: "error", Error: "invalid message"})
		}
	}
}

// runSession executes one submission on its own goroutine so the read loop
// stays responsive. Every started run ends with exactly one
// execution_complete, whether it finished, faulted, or was replaced.
func (s *Server) runSession(ctx context.Context, run *Run, code string, cw *connWriter) {
	defer s.registry.Release(run)

	ev := &sessionIO{ctx: ctx, run: run, cw: cw}
	if err := s.runner.RunInteractive(ctx, code, ev); err != nil && ctx.Err() == nil {
		log.Printf("session %s: %v", run.ID, err)
	}
	cw.write(wsOutgoing{Type: "execution_complete"})
}

// sessionIO binds one run's output relay and input broker to its websocket.
type sessionIO struct {
	ctx context.Context
	run *Run
	cw  *connWriter
}

// Output forwards one produced chunk immediately, preserving order.
func (io *sessionIO) Output(text string) {
	io.cw.write(wsOutgoing{Type: "output", Text: text})
}

// RequestInput signals the client and parks the sandbox goroutine on the
// session's pending-input queue. There is no timeout: the program may wait
// for user input indefinitely, until the session is torn down.
func (io *sessionIO) RequestInput(prompt string) (string, error) {
	if err := io.run.BeginInput(); err != nil {
		return "", err
	}
	io.cw.write(wsOutgoing{Type: "input_request", Prompt: prompt})
	return io.run.WaitInput(io.ctx)
}

// connWriter serializes websocket writes from the read loop and sandbox
// goroutines.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *connWriter) write(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}
