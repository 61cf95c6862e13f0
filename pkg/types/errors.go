// Package types 定义 go-bridge 的基础类型
//
// 本文件定义所有公共错误类型。
package types

import "errors"

// ============================================================================
//                              前置条件错误
// ============================================================================

var (
	// ErrNotInitialized 前置对象尚未就绪（Endpoint 未绑定、Connection 未建立等）
	ErrNotInitialized = errors.New("not initialized")

	// ErrInvalidPeerIdentifier 节点标识无法解析为公钥
	ErrInvalidPeerIdentifier = errors.New("invalid peer identifier")

	// ErrInvalidTopic Gossip 主题不是 32 字节
	ErrInvalidTopic = errors.New("invalid topic")
)

// ============================================================================
//                              传输层错误
// ============================================================================
//
// 以下错误总是与底层原因一起包装：
//
//	fmt.Errorf("%w: %w", types.ErrConnect, err)
//
// 因此 errors.Is 同时匹配类别和原因。

var (
	// ErrBind 无法分配本地资源（UDP socket / TLS 配置）
	ErrBind = errors.New("bind failed")

	// ErrConnect 握手或拨号失败
	ErrConnect = errors.New("connect failed")

	// ErrAcceptFailed 监听已关闭或入站握手失败
	ErrAcceptFailed = errors.New("accept failed")

	// ErrStreamOpenFailed 打开流失败
	ErrStreamOpenFailed = errors.New("stream open failed")

	// ErrStreamAcceptFailed 接受流失败
	ErrStreamAcceptFailed = errors.New("stream accept failed")
)

// ============================================================================
//                              桥接层错误
// ============================================================================

var (
	// ErrHandleExpired 宿主对象在结果投递前已被销毁
	//
	// 仅用于日志与指标，永远不会作为操作结果返回给宿主。
	ErrHandleExpired = errors.New("host handle expired")

	// ErrRuntimeClosed Runtime 未初始化或已关闭
	ErrRuntimeClosed = errors.New("runtime closed")

	// ErrShutdownTimeout Runtime 关闭超过宽限期，剩余任务被放弃
	ErrShutdownTimeout = errors.New("runtime shutdown timed out")
)
