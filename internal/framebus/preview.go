// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package framebus

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// previewWriteTimeout bounds one websocket write.
const previewWriteTimeout = 5 * time.Second

// FrameHeader precedes every binary frame on a preview socket.
type FrameHeader struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Topic     string    `json:"topic"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Format    Format    `json:"format"`
	Timestamp time.Time `json:"timestamp"`
}

// PreviewHandler streams frames to browsers over websocket. Each frame is
// a JSON FrameHeader text message followed by one binary message with the
// pixels. The topic comes from the "topic" query parameter, falling back to
// defaultTopic.
type PreviewHandler struct {
	bus          *Broadcaster
	defaultTopic string
	upgrader     websocket.Upgrader
}

// NewPreviewHandler creates a preview endpoint for bus.
func NewPreviewHandler(bus *Broadcaster, defaultTopic string) *PreviewHandler {
	return &PreviewHandler{
		bus:          bus,
		defaultTopic: defaultTopic,
		upgrader: websocket.Upgrader{
			// Preview is read-only; any page may watch.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler.
func (h *PreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = h.defaultTopic
	}
	if topic == "" {
		http.Error(w, "topic is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("preview upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	slog.Debug("preview client connected", "remote", r.RemoteAddr, "topic", topic)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go discardReads(conn, cancel)

	ch := h.bus.Subscribe(topic)
	defer h.bus.Unsubscribe(topic, ch)

	if f, ok := h.bus.Latest(topic); ok {
		if err := writeFrame(conn, f); err != nil {
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-ch:
			if !ok {
				return
			}
			if err := writeFrame(conn, f); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("preview write failed", "topic", topic, "error", err)
				}
				return
			}
		}
	}
}

// discardReads drains client messages so control frames are processed, and
// cancels once the client goes away.
func discardReads(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	if err := conn.SetWriteDeadline(time.Now().Add(previewWriteTimeout)); err != nil {
		return err
	}
	header := FrameHeader{
		ID:        f.ID.String(),
		Seq:       f.Seq,
		Topic:     f.Topic,
		Width:     f.Width,
		Height:    f.Height,
		Format:    f.Format,
		Timestamp: f.Timestamp,
	}
	if err := conn.WriteJSON(header); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, f.Data)
}
