package api

import (
	"net/http"
	"sync"
	"time"

	"PetroPulse/internal/domain/models"
	xlogger "PetroPulse/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	streamWriteWait = 10 * time.Second
	streamPingEvery = 30 * time.Second
	streamSendBuf   = 4
)

// snapshotEvent is the wire format pushed to websocket subscribers after
// each successful refresh.
type snapshotEvent struct {
	Event      string                 `json:"event"`
	ComputedAt time.Time              `json:"computed_at"`
	Summary    models.SnapshotSummary `json:"summary"`
}

// SnapshotStream fans snapshot-published events out to websocket
// subscribers. Dashboards use it to know when to re-fetch /api/snapshot.
type SnapshotStream struct {
	logger   *xlogger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

type streamClient struct {
	conn *websocket.Conn
	send chan snapshotEvent
}

// NewSnapshotStream creates the websocket hub.
func NewSnapshotStream(logger *xlogger.Logger) *SnapshotStream {
	return &SnapshotStream{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
	}
}

// Serve upgrades the connection and keeps it subscribed until the peer
// goes away.
func (s *SnapshotStream) Serve(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &streamClient{
		conn: conn,
		send: make(chan snapshotEvent, streamSendBuf),
	}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Debug("snapshot stream subscribed", xlogger.Int("clients", n))
	}

	go s.writeLoop(client)
	go s.readLoop(client)
	return nil
}

// Broadcast queues the event for every subscriber. Slow subscribers are
// dropped rather than allowed to block the refresh path.
func (s *SnapshotStream) Broadcast(snap *models.AnalyticsSnapshot) {
	ev := snapshotEvent{
		Event:      "snapshot_published",
		ComputedAt: snap.ComputedAt,
		Summary:    snap.Summary,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		select {
		case client.send <- ev:
		default:
			delete(s.clients, client)
			close(client.send)
		}
	}
}

// Close disconnects all subscribers.
func (s *SnapshotStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		delete(s.clients, client)
		close(client.send)
	}
}

func (s *SnapshotStream) writeLoop(client *streamClient) {
	ticker := time.NewTicker(streamPingEvery)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := client.conn.WriteJSON(ev); err != nil {
				s.drop(client)
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.drop(client)
				return
			}
		}
	}
}

func (s *SnapshotStream) readLoop(client *streamClient) {
	defer s.drop(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *SnapshotStream) drop(client *streamClient) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
	s.mu.Unlock()
	_ = client.conn.Close()
}
