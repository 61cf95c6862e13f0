package quic

import (
	"time"

	"github.com/quic-go/quic-go"
)

// Config QUIC 参数
type Config struct {
	// MaxIdleTimeout 连接空闲超时
	MaxIdleTimeout time.Duration

	// KeepAlivePeriod 保活间隔，0 表示不发送保活包
	KeepAlivePeriod time.Duration

	// HandshakeTimeout 握手空闲超时
	HandshakeTimeout time.Duration

	// MaxIncomingStreams 对端可同时打开的双向流数量
	MaxIncomingStreams int64

	// MaxIncomingUniStreams 对端可同时打开的单向流数量
	MaxIncomingUniStreams int64
}

// DefaultConfig 返回默认 QUIC 参数
//
// KeepAlivePeriod(3s) + MaxIdleTimeout(6s) 使非优雅断开在约 9s 内被发现。
func DefaultConfig() Config {
	return Config{
		MaxIdleTimeout:        6 * time.Second,
		KeepAlivePeriod:       3 * time.Second,
		HandshakeTimeout:      5 * time.Second,
		MaxIncomingStreams:    1024,
		MaxIncomingUniStreams: 1024,
	}
}

// quicConfig 转换为 quic-go 配置
func (c Config) quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:        c.MaxIdleTimeout,
		KeepAlivePeriod:       c.KeepAlivePeriod,
		HandshakeIdleTimeout:  c.HandshakeTimeout,
		MaxIncomingStreams:    c.MaxIncomingStreams,
		MaxIncomingUniStreams: c.MaxIncomingUniStreams,
	}
}
