package config

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// TransportConfig 传输层配置
type TransportConfig struct {
	// ListenAddr UDP 监听地址，如 "0.0.0.0:0"
	ListenAddr string `json:"listen_addr"`

	// QUIC 参数
	QUIC QUICConfig `json:"quic"`
}

// QUICConfig QUIC 传输配置
type QUICConfig struct {
	// MaxIdleTimeout 最大空闲超时
	MaxIdleTimeout Duration `json:"max_idle_timeout"`

	// KeepAlivePeriod KeepAlive 周期，0 表示关闭
	KeepAlivePeriod Duration `json:"keep_alive_period"`

	// HandshakeTimeout 握手超时
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// MaxIncomingStreams 对端可同时打开的双向流数量
	MaxIncomingStreams int64 `json:"max_incoming_streams"`

	// MaxIncomingUniStreams 对端可同时打开的单向流数量
	MaxIncomingUniStreams int64 `json:"max_incoming_uni_streams"`
}

// DefaultTransportConfig 返回默认配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ListenAddr: "0.0.0.0:0",
		QUIC: QUICConfig{
			MaxIdleTimeout:        Duration(6 * time.Second),
			KeepAlivePeriod:       Duration(3 * time.Second),
			HandshakeTimeout:      Duration(5 * time.Second),
			MaxIncomingStreams:    1024,
			MaxIncomingUniStreams: 1024,
		},
	}
}

// Validate 验证配置
func (c TransportConfig) Validate() error {
	if c.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
			return fmt.Errorf("invalid listen_addr %q: %w", c.ListenAddr, err)
		}
	}
	return c.QUIC.Validate()
}

// Validate 验证配置
func (c QUICConfig) Validate() error {
	if c.MaxIdleTimeout <= 0 {
		return errors.New("quic.max_idle_timeout must be positive")
	}
	if c.KeepAlivePeriod < 0 {
		return errors.New("quic.keep_alive_period must not be negative")
	}
	if c.KeepAlivePeriod >= c.MaxIdleTimeout {
		return errors.New("quic.keep_alive_period must be shorter than max_idle_timeout")
	}
	if c.HandshakeTimeout <= 0 {
		return errors.New("quic.handshake_timeout must be positive")
	}
	if c.MaxIncomingStreams < 0 || c.MaxIncomingUniStreams < 0 {
		return errors.New("quic stream limits must not be negative")
	}
	return nil
}
