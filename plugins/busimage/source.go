// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/frei0rhost/frei0rhost/internal/framebus"
	"github.com/frei0rhost/frei0rhost/internal/frei0r"
	bustls "github.com/frei0rhost/frei0rhost/internal/tls"
)

// Parameter indexes.
const (
	paramAddress = 0
	paramTopic   = 1
	paramCerts   = 2
)

// Defaults match a frei0rhost run with --bus-addr.
const (
	defaultAddress = "127.0.0.1:9400"
	defaultTopic   = "frei0r/image"
)

// params describes the plugin's parameters in index order.
var params = []frei0r.ParamInfo{
	{Name: "address", Kind: frei0r.ParamString, Explanation: "Frame bus gRPC address"},
	{Name: "topic", Kind: frei0r.ParamString, Explanation: "Topic to display"},
	{Name: "certs", Kind: frei0r.ParamString, Explanation: "Bus certificate directory, empty for plaintext"},
}

// dialFunc connects to a frame bus. Tests swap it for an in-memory one.
type dialFunc func(ctx context.Context, address, certs string) (*framebus.Client, error)

func dialBus(ctx context.Context, address, certs string) (*framebus.Client, error) {
	cfg := framebus.ClientConfig{Address: address}
	if certs != "" {
		tlsConfig, err := bustls.ClientConfig(certs, bustls.PeerName)
		if err != nil {
			return nil, err
		}
		cfg.TLSConfig = tlsConfig
	}
	return framebus.NewClient(ctx, cfg)
}

// source is one plugin instance: a subscription to a topic and the newest
// frame it delivered.
type source struct {
	width  int
	height int
	dial   dialFunc

	mu      sync.Mutex
	address string
	topic   string
	certs   string
	dirty   bool
	latest  framebus.Frame
	have    bool

	cancel context.CancelFunc
	client *framebus.Client
	done   chan struct{}
}

func newSource(width, height int, dial dialFunc) *source {
	return &source{
		width:   width,
		height:  height,
		dial:    dial,
		address: defaultAddress,
		topic:   defaultTopic,
		dirty:   true,
	}
}

func (s *source) set(index int, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch index {
	case paramAddress:
		if value != s.address {
			s.address, s.dirty = value, true
		}
	case paramTopic:
		if value != s.topic {
			s.topic, s.dirty = value, true
		}
	case paramCerts:
		if value != s.certs {
			s.certs, s.dirty = value, true
		}
	}
}

func (s *source) get(index int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch index {
	case paramAddress:
		return s.address
	case paramTopic:
		return s.topic
	case paramCerts:
		return s.certs
	default:
		return ""
	}
}

// update writes the newest frame into out, scaled to the instance size, or
// black when nothing arrived yet. A changed parameter resubscribes.
func (s *source) update(out []uint32) {
	s.mu.Lock()
	resubscribe := s.dirty
	s.dirty = false
	address, topic, certs := s.address, s.topic, s.certs
	s.mu.Unlock()

	if resubscribe {
		s.stop()
		s.start(address, topic, certs)
	}

	s.mu.Lock()
	f, ok := s.latest, s.have
	s.mu.Unlock()
	if !ok {
		clear(out)
		return
	}
	framebus.Scale(f, out, s.width, s.height, frei0r.ColorModelBGRA8888)
}

func (s *source) start(address, topic, certs string) {
	s.mu.Lock()
	s.have = false
	s.mu.Unlock()
	if address == "" || topic == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client, err := s.dial(ctx, address, certs)
	if err != nil {
		cancel()
		slog.Warn("busimage: cannot reach frame bus", "address", address, "error", err)
		return
	}
	s.cancel, s.client, s.done = cancel, client, make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		err := client.Follow(ctx, topic, func(f framebus.Frame) {
			s.mu.Lock()
			s.latest, s.have = f, true
			s.mu.Unlock()
		})
		if err != nil {
			slog.Warn("busimage: subscription ended", "address", address, "topic", topic, "error", err)
		}
	}(s.done)
}

// stop ends the current subscription and waits for it.
func (s *source) stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	_ = s.client.Close()
	s.cancel, s.client, s.done = nil, nil, nil
}

func (s *source) close() {
	s.stop()
}
