// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/frei0rhost/frei0rhost/internal/framebus"
	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// serveBus serves bus in memory and returns a dialer that reaches it for any
// address, recording the addresses asked for.
func serveBus(t *testing.T, bus *framebus.Broadcaster) (dialFunc, *[]string) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(framebus.ServerOptions()...)
	framebus.RegisterFrameBusServer(srv, framebus.NewServer(bus))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	var dialed []string
	dial := func(ctx context.Context, address, _ string) (*framebus.Client, error) {
		dialed = append(dialed, address)
		return framebus.NewClient(ctx, framebus.ClientConfig{
			Address:    "passthrough:///bufnet",
			Dialer:     func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) },
			MinBackoff: 10 * time.Millisecond,
			MaxBackoff: 50 * time.Millisecond,
		})
	}
	return dial, &dialed
}

func redFrame(topic string) framebus.Frame {
	f := framebus.Frame{Topic: topic, Width: 2, Height: 2, Format: framebus.FormatRGBA8, Data: make([]byte, 16)}
	for i := 0; i < len(f.Data); i += 4 {
		f.Data[i], f.Data[i+3] = 0xff, 0xff
	}
	return f
}

func TestSource_BlackUntilFirstFrame(t *testing.T) {
	dial, _ := serveBus(t, framebus.NewBroadcaster(0))
	s := newSource(8, 8, dial)
	defer s.close()

	out := make([]uint32, 64)
	for i := range out {
		out[i] = 0xdeadbeef
	}
	s.update(out)

	assert.Equal(t, make([]uint32, 64), out)
}

func TestSource_ShowsLatestFrameAsBGRA(t *testing.T) {
	bus := framebus.NewBroadcaster(0)
	dial, dialed := serveBus(t, bus)
	bus.Publish(context.Background(), redFrame(defaultTopic))

	s := newSource(8, 8, dial)
	defer s.close()

	out := make([]uint32, 64)
	want := frei0r.ColorModelBGRA8888.Pack(frei0r.RGBA{R: 0xff, A: 0xff})
	require.Eventually(t, func() bool {
		s.update(out)
		return out[0] == want && out[63] == want
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{defaultAddress}, *dialed)
}

func TestSource_ParamsResubscribe(t *testing.T) {
	bus := framebus.NewBroadcaster(0)
	dial, dialed := serveBus(t, bus)
	bus.Publish(context.Background(), redFrame("cams/left"))

	s := newSource(8, 8, dial)
	defer s.close()
	out := make([]uint32, 64)
	s.update(out)

	s.set(paramAddress, "bus.local:9400")
	s.set(paramTopic, "cams/left")
	assert.Equal(t, "bus.local:9400", s.get(paramAddress))
	assert.Equal(t, "cams/left", s.get(paramTopic))

	require.Eventually(t, func() bool {
		s.update(out)
		return out[0] != 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{defaultAddress, "bus.local:9400"}, *dialed)
}

func TestSource_UnchangedParamKeepsSubscription(t *testing.T) {
	dial, dialed := serveBus(t, framebus.NewBroadcaster(0))
	s := newSource(8, 8, dial)
	defer s.close()

	out := make([]uint32, 64)
	s.update(out)
	s.set(paramTopic, defaultTopic)
	s.update(out)

	assert.Len(t, *dialed, 1)
}

func TestSource_EmptyTopicStaysBlack(t *testing.T) {
	dial, dialed := serveBus(t, framebus.NewBroadcaster(0))
	s := newSource(8, 8, dial)
	defer s.close()

	s.set(paramTopic, "")
	out := make([]uint32, 64)
	s.update(out)

	assert.Empty(t, *dialed)
	assert.Equal(t, make([]uint32, 64), out)
}

func TestDialBus_MissingCertificates(t *testing.T) {
	_, err := dialBus(context.Background(), defaultAddress, t.TempDir())
	assert.Error(t, err)
}

func TestSet_CertsResubscribes(t *testing.T) {
	dial, dialed := serveBus(t, framebus.NewBroadcaster(0))
	s := newSource(8, 8, dial)
	defer s.close()

	out := make([]uint32, 64)
	s.update(out)
	s.set(paramCerts, "/etc/frei0rhost/certs")
	assert.Equal(t, "/etc/frei0rhost/certs", s.get(paramCerts))
	s.update(out)

	assert.Len(t, *dialed, 2)
}

func TestParams_AreStrings(t *testing.T) {
	require.Len(t, params, 3)
	for _, p := range params {
		assert.Equal(t, frei0r.ParamString, p.Kind, p.Name)
	}
}
