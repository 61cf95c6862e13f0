package discovery

import "errors"

var (
	// ErrInvalidAddr 无效的 UDP 地址
	ErrInvalidAddr = errors.New("invalid peer address")
)
