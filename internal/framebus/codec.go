// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package framebus

import (
	"fmt"
	"time"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"
)

// codecName is the gRPC content-subtype of the frame bus messages.
const codecName = "framebus"

func init() {
	encoding.RegisterCodec(wireCodec{})
}

// message is a frame bus RPC message with a protobuf wire encoding.
type message interface {
	marshalWire() []byte
	unmarshalWire(b []byte) error
}

// wireCodec encodes frame bus messages in protobuf wire format without
// generated code.
type wireCodec struct{}

func (wireCodec) Name() string { return codecName }

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(message)
	if !ok {
		return nil, fmt.Errorf("framebus codec: cannot marshal %T", v)
	}
	return m.marshalWire(), nil
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(message)
	if !ok {
		return fmt.Errorf("framebus codec: cannot unmarshal into %T", v)
	}
	return m.unmarshalWire(data)
}

// Frame field numbers.
const (
	frameID        protowire.Number = 1
	frameSeq       protowire.Number = 2
	frameTopic     protowire.Number = 3
	frameWidth     protowire.Number = 4
	frameHeight    protowire.Number = 5
	frameFormat    protowire.Number = 6
	frameTimestamp protowire.Number = 7
	frameData      protowire.Number = 8
)

func (f *Frame) marshalWire() []byte {
	b := make([]byte, 0, len(f.Data)+64)
	if !f.ID.IsZero() {
		b = protowire.AppendTag(b, frameID, protowire.BytesType)
		b = protowire.AppendBytes(b, f.ID[:])
	}
	b = appendVarint(b, frameSeq, f.Seq)
	b = appendString(b, frameTopic, f.Topic)
	b = appendVarint(b, frameWidth, uint64(f.Width))   //nolint:gosec // sizes are small and positive
	b = appendVarint(b, frameHeight, uint64(f.Height)) //nolint:gosec // sizes are small and positive
	b = appendString(b, frameFormat, string(f.Format))
	if !f.Timestamp.IsZero() {
		b = appendVarint(b, frameTimestamp, uint64(f.Timestamp.UnixNano())) //nolint:gosec // post-1970 clock
	}
	if len(f.Data) > 0 {
		b = protowire.AppendTag(b, frameData, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Data)
	}
	return b
}

func (f *Frame) unmarshalWire(b []byte) error {
	*f = Frame{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == frameID && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			if len(v) != len(f.ID) {
				return 0, fmt.Errorf("framebus: frame id is %d bytes", len(v))
			}
			copy(f.ID[:], v)
			return n, nil
		case num == frameSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			f.Seq = v
			return n, nil
		case num == frameTopic && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			f.Topic = v
			return n, nil
		case num == frameWidth && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			f.Width = int(v) //nolint:gosec // validated by Frame.Validate
			return n, nil
		case num == frameHeight && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			f.Height = int(v) //nolint:gosec // validated by Frame.Validate
			return n, nil
		case num == frameFormat && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			f.Format = Format(v)
			return n, nil
		case num == frameTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			f.Timestamp = time.Unix(0, int64(v)) //nolint:gosec // written by marshalWire
			return n, nil
		case num == frameData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			f.Data = append([]byte(nil), v...)
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
}

// SubscribeRequest selects the topic of a Subscribe stream.
type SubscribeRequest struct {
	Topic string
	// Latest asks for the topic's most recent frame before live frames.
	Latest bool
}

func (r *SubscribeRequest) marshalWire() []byte {
	b := appendString(nil, 1, r.Topic)
	if r.Latest {
		b = appendVarint(b, 2, 1)
	}
	return b
}

func (r *SubscribeRequest) unmarshalWire(b []byte) error {
	*r = SubscribeRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			r.Topic = v
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.Latest = protowire.DecodeBool(v)
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
}

// Ack answers Publish with the sequence number the bus assigned.
type Ack struct {
	Seq uint64
}

func (a *Ack) marshalWire() []byte {
	return appendVarint(nil, 1, a.Seq)
}

func (a *Ack) unmarshalWire(b []byte) error {
	*a = Ack{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			a.Seq = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// consumeFields walks b field by field. field returns the number of bytes
// it consumed, or a negative protowire error code.
func consumeFields(b []byte, field func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}
