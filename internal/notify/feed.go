package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/safedrive/reminderd/internal/domain"
)

// feedWriteTimeout bounds a single write to a display client.
const feedWriteTimeout = 5 * time.Second

// Feed streams posted notifications to connected display clients over
// WebSocket. It is both an http.Handler (the /ws/notifications endpoint)
// and a Sink registered with the Center.
type Feed struct {
	center *Center
	logger *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewFeed creates a feed replaying the center's current notification to
// late-joining clients.
func NewFeed(center *Center, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		center: center,
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the connection and keeps it registered until the client
// goes away. The feed is write-only; client frames are drained and ignored.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		f.logger.Error("Failed to accept notification feed client", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed closed"); closeErr != nil {
			f.logger.Debug("Failed to close feed client", "error", closeErr)
		}
	}()

	f.register(ws)
	defer f.unregister(ws)
	f.logger.Info("Notification feed client connected", "ip", r.RemoteAddr)

	// Late joiners still get the currently posted notification.
	if n, ok := f.center.Current(ChannelID, SlotTag); ok {
		if err := f.write(r.Context(), ws, n); err != nil {
			f.logger.Debug("Failed to replay current notification", "error", err)
			return
		}
	}

	for {
		if _, _, err := ws.Read(r.Context()); err != nil {
			return
		}
	}
}

// Deliver implements Sink by broadcasting to all connected clients. Clients
// that fail a write are dropped.
func (f *Feed) Deliver(ctx context.Context, n *domain.Notification) error {
	f.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(f.conns))
	for ws := range f.conns {
		conns = append(conns, ws)
	}
	f.mu.Unlock()

	for _, ws := range conns {
		if err := f.write(ctx, ws, n); err != nil {
			f.logger.Debug("Dropping feed client after write failure", "error", err)
			f.unregister(ws)
			ws.CloseNow()
		}
	}
	return nil
}

func (f *Feed) write(ctx context.Context, ws *websocket.Conn, n *domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}

func (f *Feed) register(ws *websocket.Conn) {
	f.mu.Lock()
	f.conns[ws] = struct{}{}
	f.mu.Unlock()
}

func (f *Feed) unregister(ws *websocket.Conn) {
	f.mu.Lock()
	delete(f.conns, ws)
	f.mu.Unlock()
}
