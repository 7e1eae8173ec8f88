// Package feed publishes production events to websocket observers.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tallyops/cutlog/internal/event"
	"github.com/tallyops/cutlog/internal/observability"
)

const clientBuffer = 64

// Server fans out every published event to each connected observer. Slow
// observers get events dropped rather than blocking the producers.
type Server struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

func NewServer(log zerolog.Logger) *Server {
	return &Server{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Publish serializes one event and queues it to every connected client.
func (s *Server) Publish(e event.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		s.log.Warn().Err(err).Msg("feed event marshal failed")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			s.log.Debug().Msg("feed client lagging, event dropped")
		}
	}
}

// ClientCount returns the number of connected observers.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ServeHTTP upgrades the request and streams events until the peer leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("feed upgrade failed")
		return
	}
	c := &client{
		conn: conn,
		send: make(chan []byte, clientBuffer),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	observability.SetFeedClients(len(s.clients))
	s.mu.Unlock()
	s.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("feed client connected")

	go s.writeLoop(c)
	s.readLoop(c)

	s.mu.Lock()
	delete(s.clients, c)
	observability.SetFeedClients(len(s.clients))
	s.mu.Unlock()
	close(c.done)
	conn.Close()
	s.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("feed client disconnected")
}

func (s *Server) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// readLoop drains control frames and returns when the peer disconnects.
func (s *Server) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
