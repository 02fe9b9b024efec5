// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package framebus

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// MaxMessageSize bounds one frame on the wire. A 2048x2048 frame is 16 MiB.
const MaxMessageSize = 64 << 20

// errStreamEnded reports a subscription the server closed cleanly.
var errStreamEnded = errors.New("frame stream ended")

// ServerOptions returns the gRPC server options a frame bus server needs.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
	}
}

// ClientConfig holds configuration for the frame bus client.
type ClientConfig struct {
	// Address is the target gRPC server address (e.g., "localhost:9400")
	Address string

	// TLSConfig enables TLS. If nil, an insecure connection is used.
	TLSConfig *tls.Config

	// KeepaliveTime is how often to ping the server (default: 10s)
	KeepaliveTime time.Duration

	// KeepaliveTimeout is how long to wait for ping response (default: 5s)
	KeepaliveTimeout time.Duration

	// PublishTimeout bounds one fire-and-forget Publish (default: 2s)
	PublishTimeout time.Duration

	// MinBackoff and MaxBackoff bound Follow's reconnect delay
	// (defaults: 100ms and 5s).
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// Dialer overrides how connections are made, e.g. for in-memory tests.
	Dialer func(ctx context.Context, addr string) (net.Conn, error)
}

// Client talks to a remote frame bus.
type Client struct {
	conn *grpc.ClientConn
	cfg  ClientConfig
}

// Compile-time interface check.
var _ Publisher = (*Client)(nil)

// NewClient creates a frame bus client. The connection is established
// lazily on the first call.
func NewClient(_ context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("address is required")
	}

	if cfg.KeepaliveTime == 0 {
		cfg.KeepaliveTime = 10 * time.Second
	}
	if cfg.KeepaliveTimeout == 0 {
		cfg.KeepaliveTimeout = 5 * time.Second
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.MinBackoff == 0 {
		cfg.MinBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 5 * time.Second
	}

	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(codecName),
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
			grpc.MaxCallSendMsgSize(MaxMessageSize),
		),
	}
	if cfg.TLSConfig != nil {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(cfg.TLSConfig)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	if cfg.Dialer != nil {
		opts = append(opts, grpc.WithContextDialer(cfg.Dialer))
	}

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to frame bus: %w", err)
	}
	return &Client{conn: conn, cfg: cfg}, nil
}

// Close closes the underlying gRPC connection.
func (c *Client) Close() error {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	return nil
}

// Send publishes a frame and waits for the bus to accept it.
func (c *Client) Send(ctx context.Context, f Frame) (*Ack, error) {
	ack := new(Ack)
	if err := c.conn.Invoke(ctx, publishMethod, &f, ack); err != nil {
		return nil, fmt.Errorf("publish RPC failed: %w", err)
	}
	return ack, nil
}

// Publish implements Publisher. Failures are logged and otherwise ignored.
func (c *Client) Publish(ctx context.Context, f Frame) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PublishTimeout)
	defer cancel()
	if _, err := c.Send(ctx, f); err != nil {
		slog.WarnContext(ctx, "remote frame publish failed",
			"address", c.cfg.Address,
			"topic", f.Topic,
			"error", err,
		)
	}
}

// Subscribe opens a stream of frames for one topic.
func (c *Client) Subscribe(ctx context.Context, req *SubscribeRequest) (grpc.ServerStreamingClient[Frame], error) {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], subscribeMethod)
	if err != nil {
		return nil, fmt.Errorf("subscribe RPC failed: %w", err)
	}
	x := &grpc.GenericClientStream[SubscribeRequest, Frame]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return nil, fmt.Errorf("subscribe RPC failed: %w", err)
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, fmt.Errorf("subscribe RPC failed: %w", err)
	}
	return x, nil
}

// Follow calls fn for every frame on topic, starting with the latest one,
// and reconnects with capped exponential backoff when the stream breaks.
// It returns nil once ctx is done.
func (c *Client) Follow(ctx context.Context, topic string, fn func(Frame)) error {
	backoff := retry.WithCappedDuration(c.cfg.MaxBackoff,
		retry.WithJitterPercent(10, retry.NewExponential(c.cfg.MinBackoff)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.follow(ctx, topic, fn)
		if ctx.Err() != nil {
			return nil
		}
		slog.DebugContext(ctx, "frame subscription lost, reconnecting",
			"address", c.cfg.Address,
			"topic", topic,
			"error", err,
		)
		return retry.RetryableError(err)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Client) follow(ctx context.Context, topic string, fn func(Frame)) error {
	stream, err := c.Subscribe(ctx, &SubscribeRequest{Topic: topic, Latest: true})
	if err != nil {
		return err
	}
	for {
		f, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return errStreamEnded
		}
		if err != nil {
			return err
		}
		fn(*f)
	}
}
