package gossip

import (
	"testing"

	"github.com/multiformats/go-varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-bridge/pkg/types"
)

func testTopic(b byte) types.TopicID {
	var id types.TopicID
	for i := range id {
		id[i] = b
	}
	return id
}

func TestFrame_Data(t *testing.T) {
	var origin types.PeerID
	origin[0] = 7
	in := &frame{
		kind:    kindData,
		topic:   testTopic(1),
		id:      newMessageID(origin, []byte("hi"), 1),
		origin:  origin,
		payload: []byte("hi"),
	}

	out, err := unmarshalFrame(in.marshal())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFrame_ControlOmitsPayload(t *testing.T) {
	in := &frame{kind: kindJoin, topic: testTopic(2), payload: []byte("ignored")}

	out, err := unmarshalFrame(in.marshal())
	require.NoError(t, err)
	assert.Equal(t, kindJoin, out.kind)
	assert.Equal(t, testTopic(2), out.topic)
	assert.Nil(t, out.payload)
}

func TestFrame_SkipsUnknownFields(t *testing.T) {
	topic := testTopic(3)
	body := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(kindLeave))
	body = protowire.AppendTag(body, 99, protowire.BytesType)
	body = protowire.AppendBytes(body, []byte("future"))
	body = protowire.AppendTag(body, fieldTopic, protowire.BytesType)
	body = protowire.AppendBytes(body, topic[:])
	data := append(varint.ToUvarint(uint64(len(body))), body...)

	out, err := unmarshalFrame(data)
	require.NoError(t, err)
	assert.Equal(t, kindLeave, out.kind)
	assert.Equal(t, topic, out.topic)
}

func TestFrame_Invalid(t *testing.T) {
	valid := (&frame{kind: kindJoin, topic: testTopic(4)}).marshal()

	noTopic := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	noTopic = protowire.AppendVarint(noTopic, uint64(kindJoin))

	badKind := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	badKind = protowire.AppendVarint(badKind, 42)

	shortTopic := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	shortTopic = protowire.AppendVarint(shortTopic, uint64(kindJoin))
	shortTopic = protowire.AppendTag(shortTopic, fieldTopic, protowire.BytesType)
	shortTopic = protowire.AppendBytes(shortTopic, []byte{1, 2, 3})

	prefixed := func(body []byte) []byte {
		return append(varint.ToUvarint(uint64(len(body))), body...)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"空数据", nil},
		{"长度不符", valid[:len(valid)-1]},
		{"缺少主题", prefixed(noTopic)},
		{"未知类型", prefixed(badKind)},
		{"主题长度错误", prefixed(shortTopic)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := unmarshalFrame(tt.data)
			assert.ErrorIs(t, err, ErrInvalidFrame)
		})
	}
}

func TestMessageID_DependsOnSeq(t *testing.T) {
	var origin types.PeerID
	a := newMessageID(origin, []byte("x"), 1)
	b := newMessageID(origin, []byte("x"), 2)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, newMessageID(origin, []byte("x"), 1))
}
