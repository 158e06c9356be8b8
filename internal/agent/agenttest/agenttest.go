// Package agenttest provides an in-process fake of the local signing agent
// for tests. The fake speaks wss:// with a self-signed httptest certificate.
package agenttest

import (
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/ncabridge-go/internal/agent/wire"
)

// Responder computes the frames sent back for one inbound request frame.
type Responder func(frame []byte) []string

// Server is a fake agent.
type Server struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader
	requests chan []byte

	mu        sync.Mutex
	conns     []*websocket.Conn
	responder Responder
	writeMu   sync.Mutex

	reject   atomic.Bool
	accepted atomic.Int32
}

// NewServer starts a fake agent that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		requests: make(chan []byte, 64),
	}
	s.srv = httptest.NewTLSServer(http.HandlerFunc(s.serveWS))
	t.Cleanup(s.Close)
	return s
}

// URL returns the wss:// endpoint of the fake agent.
func (s *Server) URL() string {
	return "wss" + strings.TrimPrefix(s.srv.URL, "https") + "/"
}

// TLSConfig returns a client TLS config that trusts the fake agent.
func (s *Server) TLSConfig() *tls.Config {
	return s.srv.Client().Transport.(*http.Transport).TLSClientConfig.Clone()
}

// SetResponder installs an automatic responder. nil disables it.
func (s *Server) SetResponder(r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = r
}

// RejectHandshakes makes the fake refuse WebSocket upgrades.
func (s *Server) RejectHandshakes(reject bool) {
	s.reject.Store(reject)
}

// Accepted returns the number of upgraded connections so far.
func (s *Server) Accepted() int {
	return int(s.accepted.Load())
}

// NextRequest waits for the next inbound frame.
func (s *Server) NextRequest(t testing.TB, timeout time.Duration) []byte {
	t.Helper()

	select {
	case frame := <-s.requests:
		return frame
	case <-time.After(timeout):
		t.Fatalf("agenttest: no request within %v", timeout)
		return nil
	}
}

// NextSignRequest waits for the next inbound frame and decodes it.
func (s *Server) NextSignRequest(t testing.TB, timeout time.Duration) *wire.SignRequest {
	t.Helper()

	frame := s.NextRequest(t, timeout)
	var req wire.SignRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		t.Fatalf("agenttest: decode request: %v", err)
	}
	return &req
}

// Push sends raw text frames on the most recent connection.
func (s *Server) Push(t testing.TB, frames ...string) {
	t.Helper()

	conn := s.latest()
	if conn == nil {
		t.Fatal("agenttest: no open connection")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("agenttest: push: %v", err)
		}
	}
}

// DropConnections closes every open connection without a close frame.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// Close stops the fake agent.
func (s *Server) Close() {
	s.DropConnections()
	s.srv.Close()
}

func (s *Server) latest() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return nil
	}
	return s.conns[len(s.conns)-1]
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if s.reject.Load() {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.accepted.Add(1)

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}

		select {
		case s.requests <- frame:
		default:
		}

		s.mu.Lock()
		respond := s.responder
		s.mu.Unlock()
		if respond == nil {
			continue
		}

		s.writeMu.Lock()
		for _, out := range respond(frame) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(out)); err != nil {
				break
			}
		}
		s.writeMu.Unlock()
	}
}

// SignWith answers every sign request with signature, echoing the request id.
func SignWith(signature string) Responder {
	return func(frame []byte) []string {
		return []string{Success(requestID(frame), signature)}
	}
}

// SignData answers every sign request with prefix+data, echoing the id.
func SignData(prefix string) Responder {
	return func(frame []byte) []string {
		var req wire.SignRequest
		if err := json.Unmarshal(frame, &req); err != nil {
			return []string{"not json"}
		}
		return []string{Success(req.ID, prefix+req.Args.Data)}
	}
}

// SignDataNoEcho answers like SignData but without echoing the id, like
// agents that know nothing about correlation.
func SignDataNoEcho(prefix string) Responder {
	return func(frame []byte) []string {
		var req wire.SignRequest
		if err := json.Unmarshal(frame, &req); err != nil {
			return []string{"not json"}
		}
		return []string{Success("", prefix+req.Args.Data)}
	}
}

// Success renders a success frame. An empty id is omitted.
func Success(id, signature string) string {
	body := map[string]any{
		"status": true,
		"body":   map[string]any{"result": []string{signature}},
	}
	if id != "" {
		body["id"] = id
	}
	data, _ := json.Marshal(body)
	return string(data)
}

// Failure renders an agent error frame.
func Failure(id, code, message string) string {
	body := map[string]any{
		"status":  false,
		"code":    code,
		"message": message,
	}
	if id != "" {
		body["id"] = id
	}
	data, _ := json.Marshal(body)
	return string(data)
}

func requestID(frame []byte) string {
	var req wire.SignRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return ""
	}
	return req.ID
}
