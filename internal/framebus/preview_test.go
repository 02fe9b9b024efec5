// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package framebus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialPreview(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/preview" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return conn
}

func TestPreviewHandler_StreamsLatestFrame(t *testing.T) {
	bus := NewBroadcaster(0)
	f := testFrame("out")
	f.Data[5] = 77
	bus.Publish(context.Background(), f)

	mux := http.NewServeMux()
	mux.Handle("/preview", NewPreviewHandler(bus, "out"))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialPreview(t, srv, "")
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var header FrameHeader
	require.NoError(t, conn.ReadJSON(&header))
	assert.Equal(t, "out", header.Topic)
	assert.Equal(t, uint64(1), header.Seq)
	assert.Equal(t, 2, header.Width)
	assert.Equal(t, FormatRGBA8, header.Format)

	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.Len(t, data, 16)
	assert.Equal(t, byte(77), data[5])
}

func TestPreviewHandler_TopicFromQuery(t *testing.T) {
	bus := NewBroadcaster(0)
	bus.Publish(context.Background(), testFrame("other"))

	srv := httptest.NewServer(NewPreviewHandler(bus, "out"))
	defer srv.Close()

	conn := dialPreview(t, srv, "?topic=other")
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var header FrameHeader
	require.NoError(t, conn.ReadJSON(&header))
	assert.Equal(t, "other", header.Topic)
}

func TestPreviewHandler_RequiresTopic(t *testing.T) {
	rec := httptest.NewRecorder()
	NewPreviewHandler(NewBroadcaster(0), "").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewHandler_UnsubscribesOnDisconnect(t *testing.T) {
	bus := NewBroadcaster(0)
	srv := httptest.NewServer(NewPreviewHandler(bus, "out"))
	defer srv.Close()

	conn := dialPreview(t, srv, "")
	require.Eventually(t, func() bool { return subscriberCount(bus, "out") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return subscriberCount(bus, "out") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func subscriberCount(b *Broadcaster, topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
