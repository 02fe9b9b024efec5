// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package framebus

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

// startBus serves bus on an in-memory listener and returns a connected client.
func startBus(t *testing.T, bus *Broadcaster) (*Client, func()) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(ServerOptions()...)
	RegisterFrameBusServer(srv, NewServer(bus))
	go func() { _ = srv.Serve(lis) }()

	client, err := NewClient(context.Background(), ClientConfig{
		Address:    "passthrough:///bufnet",
		Dialer:     func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) },
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	stop := func() {
		_ = client.Close()
		srv.Stop()
	}
	return client, stop
}

func testFrame(topic string) Frame {
	return Frame{Topic: topic, Width: 2, Height: 2, Format: FormatRGBA8, Data: make([]byte, 16)}
}

func TestNewClient_MissingAddress(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{})
	require.Error(t, err)
}

func TestServer_PublishReachesLocalSubscribers(t *testing.T) {
	bus := NewBroadcaster(0)
	client, stop := startBus(t, bus)
	defer stop()

	local := bus.Subscribe("out")
	defer bus.Unsubscribe("out", local)

	f := testFrame("out")
	f.Data[0] = 200
	ack, err := client.Send(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ack.Seq)

	select {
	case got := <-local:
		assert.Equal(t, byte(200), got.Data[0])
		assert.Equal(t, uint64(1), got.Seq)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
	}
}

func TestServer_PublishRejectsInvalidFrames(t *testing.T) {
	client, stop := startBus(t, NewBroadcaster(0))
	defer stop()

	_, err := client.Send(context.Background(), Frame{Width: 2, Height: 2, Data: make([]byte, 16)})
	require.Error(t, err, "no topic")

	bad := testFrame("out")
	bad.Data = bad.Data[:3]
	_, err = client.Send(context.Background(), bad)
	require.Error(t, err, "short data")
}

func TestClient_SubscribeStreamsLatestThenLive(t *testing.T) {
	bus := NewBroadcaster(0)
	client, stop := startBus(t, bus)
	defer stop()

	bus.Publish(context.Background(), testFrame("out"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := client.Subscribe(ctx, &SubscribeRequest{Topic: "out", Latest: true})
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Seq)

	// The live frame may race the subscription; publish until one arrives.
	got := make(chan *Frame, 1)
	go func() {
		f, err := stream.Recv()
		if err == nil {
			got <- f
		}
	}()
	deadline := time.After(2 * time.Second)
	for {
		bus.Publish(context.Background(), testFrame("out"))
		select {
		case f := <-got:
			assert.Greater(t, f.Seq, uint64(1))
			return
		case <-deadline:
			t.Fatal("timeout waiting for live frame")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestClient_PublishIsFireAndForget(t *testing.T) {
	bus := NewBroadcaster(0)
	client, stop := startBus(t, bus)
	defer stop()

	var p Publisher = client
	p.Publish(context.Background(), testFrame("remote"))
	latest, ok := bus.Latest("remote")
	require.True(t, ok)
	assert.Equal(t, uint64(1), latest.Seq)

	// Invalid frames are logged, not returned.
	p.Publish(context.Background(), Frame{})
}

func TestClient_FollowDeliversAndStopsOnCancel(t *testing.T) {
	bus := NewBroadcaster(0)
	client, stop := startBus(t, bus)
	defer stop()

	bus.Publish(context.Background(), testFrame("out"))

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var seqs []uint64
	done := make(chan error, 1)
	go func() {
		done <- client.Follow(ctx, "out", func(f Frame) {
			mu.Lock()
			seqs = append(seqs, f.Seq)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seqs) > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
	mu.Lock()
	assert.Equal(t, uint64(1), seqs[0], "follow starts with the latest frame")
	mu.Unlock()
}

func TestClient_FollowRetriesUntilServerAppears(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	client, err := NewClient(context.Background(), ClientConfig{
		Address:    "passthrough:///bufnet",
		Dialer:     func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) },
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	received := make(chan Frame, 1)
	go func() {
		_ = client.Follow(ctx, "late", func(f Frame) {
			select {
			case received <- f:
			default:
			}
		})
	}()

	// Let a few attempts fail before the server starts.
	time.Sleep(50 * time.Millisecond)
	bus := NewBroadcaster(0)
	bus.Publish(context.Background(), testFrame("late"))
	srv := grpc.NewServer(ServerOptions()...)
	RegisterFrameBusServer(srv, NewServer(bus))
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	select {
	case f := <-received:
		assert.Equal(t, "late", f.Topic)
	case <-time.After(5 * time.Second):
		t.Fatal("Follow never connected")
	}
}
