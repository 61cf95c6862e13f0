package gossip

import (
	"encoding/binary"
	"fmt"

	"github.com/multiformats/go-varint"
	"google.golang.org/protobuf/encoding/protowire"
	"lukechampine.com/blake3"

	"github.com/dep2p/go-bridge/pkg/types"
)

// ============================================================================
//                              帧格式
// ============================================================================
//
// 每个帧独占一条单向流：
//
//	uvarint(len(body)) || body
//
// body 使用 protobuf 线格式：
//
//	1: kind    varint
//	2: topic   bytes(32)
//	3: id      bytes(32)
//	4: origin  bytes(32)
//	5: payload bytes

// frameKind 帧类型
type frameKind uint64

const (
	kindJoin     frameKind = 1
	kindNeighbor frameKind = 2
	kindData     frameKind = 3
	kindLeave    frameKind = 4
)

func (k frameKind) String() string {
	switch k {
	case kindJoin:
		return "join"
	case kindNeighbor:
		return "neighbor"
	case kindData:
		return "data"
	case kindLeave:
		return "leave"
	default:
		return fmt.Sprintf("unknown(%d)", uint64(k))
	}
}

const (
	fieldKind    protowire.Number = 1
	fieldTopic   protowire.Number = 2
	fieldID      protowire.Number = 3
	fieldOrigin  protowire.Number = 4
	fieldPayload protowire.Number = 5
)

// frameOverhead 除负载外帧的最大开销
const frameOverhead = 256

// MessageID 消息标识
type MessageID [32]byte

// String 返回十六进制前缀
func (id MessageID) String() string {
	return fmt.Sprintf("%x", id[:6])
}

// newMessageID 计算 blake3(origin || payload || seq)
func newMessageID(origin types.PeerID, payload []byte, seq uint64) MessageID {
	buf := make([]byte, 0, len(origin)+len(payload)+8)
	buf = append(buf, origin[:]...)
	buf = append(buf, payload...)
	buf = binary.BigEndian.AppendUint64(buf, seq)
	return blake3.Sum256(buf)
}

// frame 线上帧
type frame struct {
	kind    frameKind
	topic   types.TopicID
	id      MessageID
	origin  types.PeerID
	payload []byte
}

// marshal 编码为带长度前缀的帧
func (f *frame) marshal() []byte {
	body := make([]byte, 0, 3*34+len(f.payload)+16)
	body = protowire.AppendTag(body, fieldKind, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(f.kind))
	body = protowire.AppendTag(body, fieldTopic, protowire.BytesType)
	body = protowire.AppendBytes(body, f.topic[:])
	if f.kind == kindData {
		body = protowire.AppendTag(body, fieldID, protowire.BytesType)
		body = protowire.AppendBytes(body, f.id[:])
		body = protowire.AppendTag(body, fieldOrigin, protowire.BytesType)
		body = protowire.AppendBytes(body, f.origin[:])
		body = protowire.AppendTag(body, fieldPayload, protowire.BytesType)
		body = protowire.AppendBytes(body, f.payload)
	}

	out := varint.ToUvarint(uint64(len(body)))
	return append(out, body...)
}

// unmarshalFrame 解析带长度前缀的帧，未知字段被跳过
func unmarshalFrame(data []byte) (*frame, error) {
	size, n, err := varint.FromUvarint(data)
	if err != nil {
		return nil, fmt.Errorf("%w: length prefix: %v", ErrInvalidFrame, err)
	}
	body := data[n:]
	if uint64(len(body)) != size {
		return nil, fmt.Errorf("%w: length %d, body %d", ErrInvalidFrame, size, len(body))
	}

	f := &frame{}
	var hasTopic bool
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, protowire.ParseError(n))
		}
		body = body[n:]

		switch {
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, protowire.ParseError(n))
			}
			f.kind = frameKind(v)
			body = body[n:]

		case typ == protowire.BytesType && num >= fieldTopic && num <= fieldPayload:
			v, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, protowire.ParseError(n))
			}
			body = body[n:]
			if err := f.setBytes(num, v); err != nil {
				return nil, err
			}
			if num == fieldTopic {
				hasTopic = true
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, protowire.ParseError(n))
			}
			body = body[n:]
		}
	}

	if f.kind < kindJoin || f.kind > kindLeave {
		return nil, fmt.Errorf("%w: kind %s", ErrInvalidFrame, f.kind)
	}
	if !hasTopic {
		return nil, fmt.Errorf("%w: missing topic", ErrInvalidFrame)
	}
	return f, nil
}

func (f *frame) setBytes(num protowire.Number, v []byte) error {
	switch num {
	case fieldTopic:
		id, err := types.TopicIDFromBytes(v)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFrame, err)
		}
		f.topic = id
	case fieldID:
		if len(v) != len(f.id) {
			return fmt.Errorf("%w: message id length %d", ErrInvalidFrame, len(v))
		}
		copy(f.id[:], v)
	case fieldOrigin:
		if len(v) != len(f.origin) {
			return fmt.Errorf("%w: origin length %d", ErrInvalidFrame, len(v))
		}
		copy(f.origin[:], v)
	case fieldPayload:
		f.payload = append([]byte(nil), v...)
	}
	return nil
}
