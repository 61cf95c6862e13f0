package quic

import "errors"

var (
	// ErrEndpointClosed Endpoint 已关闭
	ErrEndpointClosed = errors.New("endpoint closed")

	// ErrNoAddresses 找不到对端地址
	ErrNoAddresses = errors.New("no addresses known for peer")

	// ErrNoIdentity 未提供身份
	ErrNoIdentity = errors.New("identity is nil")

	// ErrReadLimit 读取超过上限
	ErrReadLimit = errors.New("read limit exceeded")
)
