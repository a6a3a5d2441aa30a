// SPDX-License-Identifier: Apache-2.0

package wsserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/brindlebot/walkctl/internal/eyeclient"
	"github.com/brindlebot/walkctl/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Dispatcher is the subset of pipeline.Pipeline the server calls into
// on each decoded message, kept as an interface so tests can supply a
// fake.
type Dispatcher interface {
	QueueMotion(cmd pipeline.Command)
	Stop()
	Estop() error
	ClearEstop() error
}

// Server is a WebSocket endpoint for the remote/browser UI, accepting
// JSON protocol v3.1 envelopes and broadcasting responses to every
// connected client. Replaces the original's raw-socket skeleton
// (ws_server.cpp) with a real gorilla/websocket upgrade loop.
type Server struct {
	addr string
	task Dispatcher
	eyes *eyeclient.Client // may be nil; forwards "eyes" envelopes verbatim

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	httpServer *http.Server
}

// New builds a Server listening on addr (e.g. ":8080"), dispatching
// motion/stop/estop commands to task and forwarding eye envelopes
// through eyes if non-nil.
func New(addr string, task Dispatcher, eyes *eyeclient.Client) *Server {
	return &Server{
		addr:    addr,
		task:    task,
		eyes:    eyes,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Start begins serving in the background. Call Shutdown to stop.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("wsserver: listen on %s: %v", s.addr, err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server and closes every connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Broadcast sends json to every connected client, skipping any that
// error (left for the read loop to clean up).
func (s *Server) Broadcast(json []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if err := c.WriteMessage(websocket.TextMessage, json); err != nil {
			log.Printf("wsserver: broadcast to client failed: %v", err)
		}
	}
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("wsserver: upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(conn, data)
	}
}

func (s *Server) handleMessage(conn *websocket.Conn, data []byte) {
	result, err := ParseMessage(data)
	if err != nil {
		resp, _ := ErrorResponse(400, err.Error())
		conn.WriteMessage(websocket.TextMessage, resp)
		return
	}

	switch result.Type {
	case "motion":
		s.dispatchMotion(result.Motion)
	case "sys":
		s.dispatchSystem(result.System)
	case "eyes":
		s.dispatchEyes(result.Eye)
	}

	ack, _ := AckResponse(result.Type)
	conn.WriteMessage(websocket.TextMessage, ack)
}

func (s *Server) dispatchMotion(m *MotionMsg) {
	if m == nil || s.task == nil {
		return
	}
	s.task.QueueMotion(pipeline.Command{
		Name:      m.Cmd,
		VecFwd:    m.VecFwd,
		VecStrafe: m.VecStrafe,
		VecTurn:   m.VecTurn,
		Stride:    m.Stride,
		Speed:     m.Speed,
		Lift:      m.Lift,
	})
}

func (s *Server) dispatchSystem(sys *SystemMsg) {
	if sys == nil || s.task == nil {
		return
	}
	switch sys.Cmd {
	case "stop":
		s.task.Stop()
	case "estop":
		if err := s.task.Estop(); err != nil {
			log.Printf("wsserver: estop: %v", err)
		}
	case "clear_estop":
		if err := s.task.ClearEstop(); err != nil {
			log.Printf("wsserver: clear_estop: %v", err)
		}
	}
}

func (s *Server) dispatchEyes(e *EyeMsg) {
	if e == nil || s.eyes == nil {
		return
	}
	// The event is re-encoded from the parsed EyeMsg rather than
	// forwarded byte for byte, so the parser's defaults and clamping
	// apply and fields EyeMsg does not declare are dropped.
	payload, err := json.Marshal(struct {
		V    string  `json:"v"`
		Type string  `json:"type"`
		Msg  *EyeMsg `json:"msg"`
	}{V: ProtocolVersion, Type: "eyes", Msg: e})
	if err != nil {
		return
	}
	if err := s.eyes.SendEvent(string(payload)); err != nil {
		log.Printf("wsserver: forward eyes event: %v", err)
	}
}
