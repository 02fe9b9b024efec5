// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package framebus

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"google.golang.org/grpc"
)

// Fully qualified gRPC names of the frame bus service.
const (
	serviceName     = "frei0rhost.framebus.v1.FrameBus"
	publishMethod   = "/" + serviceName + "/Publish"
	subscribeMethod = "/" + serviceName + "/Subscribe"
)

// FrameBusServer is the server API of the frame bus service.
type FrameBusServer interface {
	Publish(ctx context.Context, f *Frame) (*Ack, error)
	Subscribe(req *SubscribeRequest, stream grpc.ServerStreamingServer[Frame]) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*FrameBusServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: publishHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "framebus",
}

// RegisterFrameBusServer registers srv with s.
func RegisterFrameBusServer(s grpc.ServiceRegistrar, srv FrameBusServer) {
	s.RegisterService(&serviceDesc, srv)
}

func publishHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Frame)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FrameBusServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: publishMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FrameBusServer).Publish(ctx, req.(*Frame))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(FrameBusServer).Subscribe(in, &grpc.GenericServerStream[SubscribeRequest, Frame]{ServerStream: stream})
}

// Server serves a Broadcaster over gRPC.
type Server struct {
	bus *Broadcaster
}

// Compile-time interface check.
var _ FrameBusServer = (*Server)(nil)

// NewServer creates a gRPC frame bus backed by bus.
func NewServer(bus *Broadcaster) *Server {
	return &Server{bus: bus}
}

// Publish accepts a frame from a remote producer.
func (s *Server) Publish(ctx context.Context, f *Frame) (*Ack, error) {
	if f.Topic == "" {
		return nil, oops.Code("FRAME_INVALID").Errorf("frame has no topic")
	}
	if err := f.Validate(); err != nil {
		return nil, oops.Code("FRAME_INVALID").With("topic", f.Topic).Wrap(err)
	}
	stamped := s.bus.publish(*f)
	slog.DebugContext(ctx, "remote frame published", "topic", stamped.Topic, "seq", stamped.Seq)
	return &Ack{Seq: stamped.Seq}, nil
}

// Subscribe streams frames of one topic until the client goes away.
func (s *Server) Subscribe(req *SubscribeRequest, stream grpc.ServerStreamingServer[Frame]) error {
	ctx := stream.Context()
	slog.DebugContext(ctx, "frame subscription", "topic", req.Topic)

	ch := s.bus.Subscribe(req.Topic)
	defer s.bus.Unsubscribe(req.Topic, ch)

	if req.Latest {
		if f, ok := s.bus.Latest(req.Topic); ok {
			if err := stream.Send(&f); err != nil {
				return oops.Code("SEND_FAILED").With("topic", req.Topic).Wrap(err)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "frame subscription ended",
				"topic", req.Topic,
				"reason", ctx.Err(),
			)
			return nil
		case f, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(&f); err != nil {
				return oops.Code("SEND_FAILED").With("topic", req.Topic).Wrap(err)
			}
		}
	}
}
