package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/ar-duel-backend/internal/types"
)

const outboxSize = 32

type Options struct {
	AllowedOrigins []string
	// ReadTimeout is how long a peer may go without answering a ping.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// PingInterval defaults to a third of ReadTimeout.
	PingInterval time.Duration
}

type client struct {
	id     string
	conn   *websocket.Conn
	out    chan []byte
	groups map[string]struct{}
	closed bool
}

// Server tracks live websocket connections and the named groups they belong
// to. It is safe for concurrent use; the hub calls it from its own goroutine
// while connection goroutines register and unregister.
type Server struct {
	mu      sync.RWMutex
	clients map[string]*client
	groups  map[string]map[string]struct{}

	log  *zap.Logger
	opts Options
}

func NewServer(log *zap.Logger, opts Options) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	if opts.PingInterval <= 0 || opts.PingInterval >= opts.ReadTimeout {
		opts.PingInterval = opts.ReadTimeout / 3
	}
	return &Server{
		clients: make(map[string]*client),
		groups:  make(map[string]map[string]struct{}),
		log:     log.Named("ws"),
		opts:    opts,
	}
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return
	}
	for g := range c.groups {
		s.removeFromGroup(g, id)
	}
	delete(s.clients, id)
	if !c.closed {
		c.closed = true
		close(c.out)
	}
}

// Send queues msg for one connection. A connection that can't keep up is
// closed instead of blocking the caller.
func (s *Server) Send(connID string, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("marshal message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	s.mu.RLock()
	c, ok := s.clients[connID]
	if ok {
		s.enqueue(c, payload)
	}
	s.mu.RUnlock()
}

func (s *Server) Broadcast(group string, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("marshal message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	s.mu.RLock()
	for id := range s.groups[group] {
		if c, ok := s.clients[id]; ok {
			s.enqueue(c, payload)
		}
	}
	s.mu.RUnlock()
}

// enqueue must be called with at least the read lock held.
func (s *Server) enqueue(c *client, payload []byte) {
	if c.closed {
		return
	}
	select {
	case c.out <- payload:
	default:
		s.log.Warn("outbox full, closing connection", zap.String("conn", c.id))
		go c.conn.Close(websocket.StatusPolicyViolation, "too slow")
	}
}

func (s *Server) Join(group, connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[connID]
	if !ok {
		return
	}
	members, ok := s.groups[group]
	if !ok {
		members = make(map[string]struct{})
		s.groups[group] = members
	}
	members[connID] = struct{}{}
	c.groups[group] = struct{}{}
}

func (s *Server) Leave(group, connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeFromGroup(group, connID)
	if c, ok := s.clients[connID]; ok {
		delete(c.groups, group)
	}
}

func (s *Server) removeFromGroup(group, connID string) {
	members, ok := s.groups[group]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(s.groups, group)
	}
}

// Close ends a connection. Its reader loop notices and reports the disconnect.
func (s *Server) Close(connID string) {
	s.mu.RLock()
	c, ok := s.clients[connID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	go c.conn.Close(websocket.StatusNormalClosure, "closed by server")
}

func (s *Server) InGroup(group, connID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.groups[group][connID]
	return ok
}

func (s *Server) GroupsOf(connID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[connID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.groups))
	for g := range c.groups {
		out = append(out, g)
	}
	return out
}


// CloseAll closes every connection. http.Server.Shutdown does not reach
// hijacked connections.
func (s *Server) CloseAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		go c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
