// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package framebus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestWireCodec_Registered(t *testing.T) {
	c := encoding.GetCodec(codecName)
	require.NotNil(t, c)
	assert.Equal(t, codecName, c.Name())
}

func TestWireCodec_Frame(t *testing.T) {
	in := Frame{
		ID:        NewID(),
		Seq:       42,
		Topic:     "out",
		Width:     2,
		Height:    1,
		Format:    FormatBGRA8,
		Timestamp: time.Unix(1700000000, 123),
		Data:      []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	data, err := wireCodec{}.Marshal(&in)
	require.NoError(t, err)

	var out Frame
	require.NoError(t, wireCodec{}.Unmarshal(data, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Seq, out.Seq)
	assert.Equal(t, in.Topic, out.Topic)
	assert.Equal(t, in.Width, out.Width)
	assert.Equal(t, in.Height, out.Height)
	assert.Equal(t, in.Format, out.Format)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))
	assert.Equal(t, in.Data, out.Data)
}

func TestWireCodec_SkipsUnknownFields(t *testing.T) {
	b := protowire.AppendTag(nil, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "out")

	var req SubscribeRequest
	require.NoError(t, wireCodec{}.Unmarshal(b, &req))
	assert.Equal(t, SubscribeRequest{Topic: "out"}, req)
}

func TestWireCodec_Errors(t *testing.T) {
	_, err := wireCodec{}.Marshal("not a message")
	assert.Error(t, err)
	assert.Error(t, wireCodec{}.Unmarshal(nil, new(string)))

	var f Frame
	assert.Error(t, f.unmarshalWire([]byte{0x0a, 0x05, 1}), "truncated bytes field")

	bad := protowire.AppendTag(nil, frameID, protowire.BytesType)
	bad = protowire.AppendBytes(bad, []byte{1, 2, 3})
	assert.Error(t, f.unmarshalWire(bad), "short frame id")
}

func TestWireCodec_SubscribeRequestAndAck(t *testing.T) {
	var req SubscribeRequest
	require.NoError(t, req.unmarshalWire((&SubscribeRequest{Topic: "a", Latest: true}).marshalWire()))
	assert.Equal(t, SubscribeRequest{Topic: "a", Latest: true}, req)

	var ack Ack
	require.NoError(t, ack.unmarshalWire((&Ack{Seq: 7}).marshalWire()))
	assert.Equal(t, uint64(7), ack.Seq)
}
