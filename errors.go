package bridge

import (
	"github.com/dep2p/go-bridge/internal/core/protocol"
	"github.com/dep2p/go-bridge/internal/protocol/gossip"
	"github.com/dep2p/go-bridge/pkg/types"
)

// 公共错误定义
//
// 传输层失败同时包装类别与原因，errors.Is 对两者都成立。
var (
	// ────────────────────────────────────────────────────────────────────────
	// 状态错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotInitialized 句柄为空（未绑定、未连接、未 spawn）
	ErrNotInitialized = types.ErrNotInitialized

	// ErrRuntimeClosed Runtime 已关闭
	ErrRuntimeClosed = types.ErrRuntimeClosed

	// ErrShutdownTimeout Runtime 关闭超时
	ErrShutdownTimeout = types.ErrShutdownTimeout

	// ErrHandleExpired 宿主对象已销毁（只出现在日志中）
	ErrHandleExpired = types.ErrHandleExpired

	// ────────────────────────────────────────────────────────────────────────
	// 输入错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrInvalidPeerIdentifier 节点标识不是有效的公钥
	ErrInvalidPeerIdentifier = types.ErrInvalidPeerIdentifier

	// ErrInvalidTopic 主题长度不是 32 字节
	ErrInvalidTopic = types.ErrInvalidTopic

	// ────────────────────────────────────────────────────────────────────────
	// 网络错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrBind 绑定失败
	ErrBind = types.ErrBind

	// ErrConnect 连接失败
	ErrConnect = types.ErrConnect

	// ErrAcceptFailed 接受连接失败
	ErrAcceptFailed = types.ErrAcceptFailed

	// ErrStreamOpenFailed 打开流失败
	ErrStreamOpenFailed = types.ErrStreamOpenFailed

	// ErrStreamAcceptFailed 接受流失败
	ErrStreamAcceptFailed = types.ErrStreamAcceptFailed

	// ErrTopicClosed 主题已离开
	ErrTopicClosed = gossip.ErrTopicClosed

	// ErrRouterShutdown 路由器已关闭
	ErrRouterShutdown = protocol.ErrRouterShutdown
)
