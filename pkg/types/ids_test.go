package types

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerID(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	id, err := PeerIDFromPublicKey(pub)
	require.NoError(t, err)

	t.Run("String 与 ParsePeerID 互逆", func(t *testing.T) {
		parsed, err := ParsePeerID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
		assert.Equal(t, pub, parsed.PublicKey())
	})

	t.Run("ParsePeerID 非法输入", func(t *testing.T) {
		tests := []struct {
			name  string
			input string
		}{
			{"空字符串", ""},
			{"非 base58 字符", "0OIl-not-base58"},
			{"长度不足", base58.Encode([]byte("short"))},
			{"长度超出", base58.Encode(make([]byte, 33))},
			{"全零公钥", strings.Repeat("1", 32)},
			{"单位元", base58.Encode(identityPoint())},
			{"二阶点", base58.Encode(orderTwoPoint())},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ParsePeerID(tt.input)
				assert.True(t, errors.Is(err, ErrInvalidPeerID))
			})
		}
	})

	t.Run("ShortString", func(t *testing.T) {
		assert.Len(t, id.ShortString(), 8)
		assert.Equal(t, id.String()[:8], id.ShortString())
	})

	t.Run("空 ID", func(t *testing.T) {
		assert.True(t, EmptyPeerID.IsEmpty())
		assert.Equal(t, "", EmptyPeerID.String())
		assert.False(t, id.IsEmpty())
	})

	t.Run("公钥长度错误", func(t *testing.T) {
		_, err := PeerIDFromPublicKey(pub[:16])
		assert.ErrorIs(t, err, ErrInvalidPeerID)
	})

	t.Run("小阶公钥", func(t *testing.T) {
		_, err := PeerIDFromPublicKey(make([]byte, 32))
		assert.ErrorIs(t, err, ErrInvalidPeerID)
		_, err = PeerIDFromPublicKey(identityPoint())
		assert.ErrorIs(t, err, ErrInvalidPeerID)
	})
}

// identityPoint 单位元的编码（y = 1）
func identityPoint() []byte {
	b := make([]byte, 32)
	b[0] = 1
	return b
}

// orderTwoPoint 二阶点的编码（y = p - 1）
func orderTwoPoint() []byte {
	b := make([]byte, 32)
	for i := range b {
		b[i] = 0xff
	}
	b[0] = 0xec
	b[31] = 0x7f
	return b
}

func TestTopicID(t *testing.T) {
	raw := make([]byte, TopicIDSize)
	raw[0] = 0xab

	topic, err := TopicIDFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, topic.Bytes())
	assert.Equal(t, "ab000000", topic.ShortString())

	for _, n := range []int{0, 31, 33} {
		_, err := TopicIDFromBytes(make([]byte, n))
		assert.ErrorIs(t, err, ErrInvalidTopicID, "len=%d", n)
	}
}

func TestALPNStrings(t *testing.T) {
	assert.Equal(t, []string{"demo/1", "chat/2"}, ALPNStrings([]ALPN{"demo/1", "chat/2"}))
	assert.Empty(t, ALPNStrings(nil))
}
