// Package server accepts remote pointer input over a websocket and
// broadcasts engine status to every connected client.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"fluidsim/config"
	"fluidsim/core"
)

// Target receives remote interactions. Both methods are called from
// connection goroutines.
type Target interface {
	EnqueueInteraction(x, y, dx, dy float32, colorID int)
	SurfaceSize() (int, int)
}

// Controller is the part of the engine commands act on. Commands run on
// the goroutine that owns the engine.
type Controller interface {
	SetPalette(id int)
	Reset()
	SetQuality(gridSize, iterations int) error
}

// Command is a deferred engine call.
type Command func(c Controller)

// Message is a client request. Type selects which fields are used:
// splat (x, y, dx, dy, width, height, color), palette (id), reset, and
// quality (gridSize, iterations, clamped to the settings ranges).
// Coordinates are in client canvas pixels of the given width and height.
type Message struct {
	Type       string  `json:"type"`
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	DX         float32 `json:"dx"`
	DY         float32 `json:"dy"`
	Width      float32 `json:"width"`
	Height     float32 `json:"height"`
	Color      int     `json:"color"`
	ID         int     `json:"id"`
	GridSize   int     `json:"gridSize"`
	Iterations int     `json:"iterations"`
}

// StatusMessage is broadcast for every published status.
type StatusMessage struct {
	Type string `json:"type"`
	core.Status
}

const commandBuffer = 16

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Server is the websocket endpoint.
type Server struct {
	target   Target
	logger   *log.Logger
	commands chan Command

	clients      map[*websocket.Conn]*sync.Mutex
	clientsMutex sync.RWMutex

	status     chan core.Status
	lastStatus core.Status
	statusMu   sync.RWMutex
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup

	httpMu     sync.Mutex
	httpServer *http.Server
}

// New creates a server and starts its broadcast goroutine.
func New(target Target, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		target:   target,
		logger:   logger,
		commands: make(chan Command, commandBuffer),
		clients:  make(map[*websocket.Conn]*sync.Mutex),
		status:   make(chan core.Status, 1),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.broadcastLoop()
	return s
}

// Handler serves /ws and /status.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

// ListenAndServe serves the handler on addr until Close. It returns nil at
// once when the server is already closed.
func (s *Server) ListenAndServe(addr string) error {
	s.httpMu.Lock()
	select {
	case <-s.done:
		s.httpMu.Unlock()
		return nil
	default:
	}
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	s.httpServer = srv
	s.httpMu.Unlock()

	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Commands delivers engine commands received from clients.
func (s *Server) Commands() <-chan Command {
	return s.commands
}

// PublishStatus queues a status for broadcast. It never blocks; a status
// published while the previous one is still queued is not broadcast.
func (s *Server) PublishStatus(status core.Status) {
	s.statusMu.Lock()
	s.lastStatus = status
	s.statusMu.Unlock()

	select {
	case s.status <- status:
	default:
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

// Close stops broadcasting, disconnects every client and shuts the HTTP
// server down if ListenAndServe was used.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.httpMu.Lock()
		close(s.done)
		srv := s.httpServer
		s.httpMu.Unlock()
		s.wg.Wait()

		s.clientsMutex.Lock()
		for conn := range s.clients {
			conn.Close()
		}
		s.clients = make(map[*websocket.Conn]*sync.Mutex)
		s.clientsMutex.Unlock()

		if srv != nil {
			srv.Shutdown(context.Background())
		}
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.statusMu.RLock()
	status := s.lastStatus
	s.statusMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(StatusMessage{Type: "status", Status: status}); err != nil {
		s.logger.Println("Status encode error:", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Println("WebSocket upgrade error:", err)
		return
	}
	defer conn.Close()

	connMutex := &sync.Mutex{}
	s.clientsMutex.Lock()
	s.clients[conn] = connMutex
	s.clientsMutex.Unlock()
	defer func() {
		s.clientsMutex.Lock()
		delete(s.clients, conn)
		s.clientsMutex.Unlock()
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Println("WebSocket read error:", err)
			}
			return
		}
		s.handleMessage(msg)
	}
}

func (s *Server) handleMessage(msg Message) {
	switch msg.Type {
	case "splat":
		w, h := s.target.SurfaceSize()
		x, y := core.RescaleToSurface(msg.X, msg.Y, msg.Width, msg.Height, w, h)
		dx, dy := core.RescaleToSurface(msg.DX, msg.DY, msg.Width, msg.Height, w, h)
		sample := core.InteractionSample{X: x, Y: y, DX: dx, DY: dy, ColorID: msg.Color}
		if !sample.IsFinite() {
			s.logger.Printf("Warning: dropping non-finite remote splat")
			return
		}
		s.target.EnqueueInteraction(x, y, dx, dy, msg.Color)
	case "palette":
		id := msg.ID
		s.sendCommand(func(c Controller) { c.SetPalette(id) })
	case "reset":
		s.sendCommand(func(c Controller) { c.Reset() })
	case "quality":
		grid := config.ClampGridSize(msg.GridSize)
		iterations := config.ClampIterations(msg.Iterations)
		s.sendCommand(func(c Controller) {
			if err := c.SetQuality(grid, iterations); err != nil {
				s.logger.Printf("Warning: remote quality change rejected: %v", err)
			}
		})
	default:
		s.logger.Printf("Warning: unknown message type %q", msg.Type)
	}
}

func (s *Server) sendCommand(cmd Command) {
	select {
	case s.commands <- cmd:
	default:
		s.logger.Println("Warning: command queue full, dropping remote command")
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case status := <-s.status:
			s.broadcast(StatusMessage{Type: "status", Status: status})
		}
	}
}

func (s *Server) broadcast(msg StatusMessage) {
	s.clientsMutex.RLock()
	clientsToRemove := []*websocket.Conn{}
	for client, mutex := range s.clients {
		mutex.Lock()
		err := client.WriteJSON(msg)
		mutex.Unlock()
		if err != nil {
			s.logger.Println("WebSocket write error:", err)
			client.Close()
			clientsToRemove = append(clientsToRemove, client)
		}
	}
	s.clientsMutex.RUnlock()

	// Remove failed clients
	if len(clientsToRemove) > 0 {
		s.clientsMutex.Lock()
		for _, client := range clientsToRemove {
			delete(s.clients, client)
		}
		s.clientsMutex.Unlock()
	}
}
