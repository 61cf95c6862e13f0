// Package types 定义 go-bridge 的基础类型
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
package types

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ============================================================================
//                              PeerID - 节点标识
// ============================================================================

// PeerID 节点唯一标识符
//
// 即节点的 Ed25519 公钥（32 字节），身份与公钥一一对应，
// 因此可以直接在 TLS 握手中校验，不需要额外的派生步骤。
//
// 外部表示格式：
//   - String(): Base58 编码（用户可读、可分享）
//   - ShortString(): Base58 前缀（日志简短标识）
type PeerID [ed25519.PublicKeySize]byte

// EmptyPeerID 空节点 ID
var EmptyPeerID PeerID

// ErrInvalidPeerID 无效的节点 ID 错误
var ErrInvalidPeerID = errors.New("invalid peer ID: must be base58 of a 32-byte public key")

// String 返回 PeerID 的 Base58 字符串表示
func (id PeerID) String() string {
	if id.IsEmpty() {
		return ""
	}
	return base58.Encode(id[:])
}

// ShortString 返回 PeerID 的短字符串表示（日志用）
func (id PeerID) ShortString() string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Bytes 返回 PeerID 的字节切片
func (id PeerID) Bytes() []byte {
	return id[:]
}

// IsEmpty 检查 PeerID 是否为空
func (id PeerID) IsEmpty() bool {
	return id == EmptyPeerID
}

// PublicKey 返回对应的 Ed25519 公钥
func (id PeerID) PublicKey() ed25519.PublicKey {
	pk := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(pk, id[:])
	return pk
}

// PeerIDFromPublicKey 从 Ed25519 公钥创建 PeerID
func PeerIDFromPublicKey(pk ed25519.PublicKey) (PeerID, error) {
	if len(pk) != ed25519.PublicKeySize {
		return EmptyPeerID, ErrInvalidPeerID
	}
	if err := checkPublicKey(pk); err != nil {
		return EmptyPeerID, err
	}
	var id PeerID
	copy(id[:], pk)
	return id, nil
}

// ParsePeerID 从字符串解析 PeerID
//
// 仅支持 Base58 编码，前后空白会被忽略。
func ParsePeerID(s string) (PeerID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return EmptyPeerID, ErrInvalidPeerID
	}

	b, err := base58.Decode(s)
	if err != nil {
		return EmptyPeerID, ErrInvalidPeerID
	}
	return PeerIDFromPublicKey(b)
}

// checkPublicKey 拒绝无法作为身份的编码
//
// 解码失败的不是曲线点；乘以余因子后为单位元的是小阶点，
// 任何人都能为它伪造签名，全零编码也属于这一类。
func checkPublicKey(b []byte) error {
	p, err := new(edwards25519.Point).SetBytes(b)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPeerID, err)
	}
	if new(edwards25519.Point).MultByCofactor(p).Equal(edwards25519.NewIdentityPoint()) == 1 {
		return fmt.Errorf("%w: small-order point", ErrInvalidPeerID)
	}
	return nil
}

// ============================================================================
//                              ALPN - 应用层协议标识
// ============================================================================

// ALPN 应用层协议标识（TLS ALPN 字节串）
//
// 格式建议: name/version，如 demo/1
type ALPN string

// String 返回协议字符串
func (a ALPN) String() string {
	return string(a)
}

// ALPNStrings 转换为 TLS NextProtos 使用的字符串切片
func ALPNStrings(alpns []ALPN) []string {
	out := make([]string, 0, len(alpns))
	for _, a := range alpns {
		out = append(out, string(a))
	}
	return out
}
