package frame

import (
	"bytes"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// StreamControl is a message a stream client may send to steer the viewer.
type StreamControl struct {
	// Key is a key code from the common package, applied as a key press.
	Key uint32 `json:"key"`
}

// streamSink broadcasts frames to websocket clients.
type streamSink struct {
	upgrader websocket.Upgrader

	clientsMu *sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex

	controlMu *sync.Mutex
	onControl func(StreamControl)

	buf bytes.Buffer
}

// StreamSink is a Sink and an http.Handler. Mount it on a websocket path; every
// connected client receives each frame as one binary PNG message.
type StreamSink interface {
	Sink
	http.Handler

	// Clients returns the number of connected clients.
	Clients() int

	// SetControlCallback registers the function called for each control message a client sends.
	//
	// Parameters:
	//   - callback: function receiving the decoded message, or nil to ignore messages
	SetControlCallback(callback func(StreamControl))
}

var _ StreamSink = &streamSink{}

// NewStreamSink creates a websocket frame stream that accepts connections from any origin.
func NewStreamSink() StreamSink {
	return &streamSink{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clientsMu: &sync.RWMutex{},
		clients:   make(map[*websocket.Conn]*sync.Mutex),
		controlMu: &sync.Mutex{},
	}
}

func (s *streamSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("stream: upgrade error: %v", err)
		return
	}
	defer conn.Close()

	s.clientsMu.Lock()
	s.clients[conn] = &sync.Mutex{}
	s.clientsMu.Unlock()
	log.Printf("stream: client %s connected", conn.RemoteAddr())
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
	}()

	for {
		var msg StreamControl
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("stream: read error: %v", err)
			}
			return
		}
		s.controlMu.Lock()
		cb := s.onControl
		s.controlMu.Unlock()
		if cb != nil {
			cb(msg)
		}
	}
}

func (s *streamSink) Consume(out Output) error {
	if s.Clients() == 0 {
		return nil
	}
	if out.Image == nil {
		return fmt.Errorf("stream sink: %w", ErrNoImage)
	}
	s.buf.Reset()
	if err := png.Encode(&s.buf, out.Image); err != nil {
		return fmt.Errorf("stream sink: %w", err)
	}
	payload := s.buf.Bytes()

	var failed []*websocket.Conn
	s.clientsMu.RLock()
	for conn, mu := range s.clients {
		mu.Lock()
		err := conn.WriteMessage(websocket.BinaryMessage, payload)
		mu.Unlock()
		if err != nil {
			log.Printf("stream: write error: %v", err)
			failed = append(failed, conn)
		}
	}
	s.clientsMu.RUnlock()

	if len(failed) > 0 {
		s.clientsMu.Lock()
		for _, conn := range failed {
			conn.Close()
			delete(s.clients, conn)
		}
		s.clientsMu.Unlock()
	}
	return nil
}

func (s *streamSink) Clients() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *streamSink) SetControlCallback(callback func(StreamControl)) {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()
	s.onControl = callback
}

func (s *streamSink) Close() error {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for conn, mu := range s.clients {
		mu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "viewer closed"))
		mu.Unlock()
		conn.Close()
		delete(s.clients, conn)
	}
	return nil
}
