package protocol

import "errors"

// 协议模块错误定义
var (
	// ErrDuplicateProtocol 协议已注册
	ErrDuplicateProtocol = errors.New("protocol: protocol already registered")

	// ErrProtocolNotRegistered 协议未注册
	ErrProtocolNotRegistered = errors.New("protocol: protocol not registered")

	// ErrInvalidProtocolID 空协议标识
	ErrInvalidProtocolID = errors.New("protocol: invalid protocol ID")

	// ErrAlreadySpawned 路由器已启动
	ErrAlreadySpawned = errors.New("protocol: router already spawned")

	// ErrRouterShutdown 路由器已关闭
	ErrRouterShutdown = errors.New("protocol: router shut down")
)
