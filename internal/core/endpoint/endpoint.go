// Package endpoint 实现 Endpoint 门面的共享逻辑
//
// 每个操作同时服务于阻塞与异步两种调用方式：阻塞方式在调用方
// goroutine 上通过 runtime.BlockOn 执行，异步方式通过 runtime.Go
// 派发到后台并由 delivery 把结果送回宿主线程。
//
// 句柄读取只在锁内做快照，之后的网络调用都在锁外进行。
package endpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/dep2p/go-bridge/internal/core/handle"
	"github.com/dep2p/go-bridge/internal/core/identity"
	"github.com/dep2p/go-bridge/internal/core/metrics"
	"github.com/dep2p/go-bridge/internal/core/transport/quic"
	pkgif "github.com/dep2p/go-bridge/pkg/interfaces"
	"github.com/dep2p/go-bridge/pkg/lib/log"
	"github.com/dep2p/go-bridge/pkg/types"
)

var logger = log.Logger("core/endpoint")

// AddressUnbound 未绑定时 Address 返回的占位值
const AddressUnbound = "N/A"

// Handle Endpoint 共享句柄
type Handle = handle.Shared[*quic.Endpoint]

// NewHandle 创建空句柄
func NewHandle() *Handle {
	return handle.New[*quic.Endpoint]("endpoint")
}

// BindOptions 绑定参数
type BindOptions struct {
	// ALPNs 接受的应用协议
	ALPNs []string

	// Identity 节点身份，nil 时生成新身份
	Identity *identity.Identity

	// ListenAddr UDP 监听地址
	ListenAddr string

	// QUIC 传输参数
	QUIC quic.Config

	// Discovery 地址发现
	Discovery pkgif.AddrDiscovery

	// Metrics 指标
	Metrics *metrics.Metrics
}

// Bind 绑定新的 Endpoint 并写入句柄
//
// 句柄已有值时覆盖并记录警告，旧 Endpoint 不会被关闭。
func Bind(ctx context.Context, h *Handle, opts BindOptions) (ep *quic.Endpoint, err error) {
	defer func() { opts.Metrics.Operation("bind", err) }()

	if h.IsSet() {
		logger.Warn("Endpoint 已绑定，将被覆盖")
	}

	id := opts.Identity
	if id == nil {
		id, err = identity.Generate()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrBind, err)
		}
	}

	qopts := quic.Options{
		Identity:   id,
		ListenAddr: opts.ListenAddr,
		ALPNs:      opts.ALPNs,
		Config:     opts.QUIC,
		Metrics:    opts.Metrics,
	}
	if opts.Discovery != nil {
		qopts.Discovery = opts.Discovery
	}

	ep, err = quic.Listen(ctx, qopts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrBind, err)
	}

	h.Store(ep)
	logger.Info("Endpoint 已绑定", "peer", ep.ID().String(), "addr", ep.LocalAddr().String())
	return ep, nil
}

// Connect 拨号到 peer
//
// peer 先于绑定状态校验，格式错误总是报告 ErrInvalidPeerIdentifier。
func Connect(ctx context.Context, h *Handle, peer, alpn string, m *metrics.Metrics) (conn *quic.Conn, err error) {
	defer func() { m.Operation("connect", err) }()

	remote, err := ParsePeer(peer)
	if err != nil {
		return nil, err
	}

	ep, err := Get(h)
	if err != nil {
		return nil, err
	}

	conn, err = ep.Connect(ctx, remote, alpn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConnect, err)
	}
	logger.Debug("已连接", "peer", remote.ShortString(), "alpn", alpn)
	return conn, nil
}

// Accept 等待下一个入站连接
func Accept(ctx context.Context, h *Handle, m *metrics.Metrics) (conn *quic.Conn, err error) {
	defer func() { m.Operation("accept", err) }()

	ep, err := Get(h)
	if err != nil {
		return nil, err
	}

	conn, err = ep.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrAcceptFailed, err)
	}
	logger.Debug("已接受连接", "peer", conn.RemotePeer().ShortString(), "alpn", conn.ALPN())
	return conn, nil
}

// Address 返回绑定后的 PeerID 文本，未绑定时返回 AddressUnbound
func Address(h *Handle) string {
	ep, ok := h.Load()
	if !ok {
		return AddressUnbound
	}
	return ep.ID().String()
}

// DirectAddresses 返回可直连地址，未绑定时返回空
func DirectAddresses(h *Handle) []string {
	ep, ok := h.Load()
	if !ok {
		return nil
	}
	addrs := ep.DirectAddrs()
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}

// Close 关闭并清空句柄中的 Endpoint
func Close(h *Handle) error {
	ep, ok := h.Take()
	if !ok {
		return nil
	}
	return ep.Close()
}

// Get 读取已绑定的 Endpoint
func Get(h *Handle) (*quic.Endpoint, error) {
	ep, ok := h.Load()
	if !ok {
		return nil, fmt.Errorf("%w: endpoint is not bound", types.ErrNotInitialized)
	}
	return ep, nil
}

// ParsePeer 解析节点标识文本
func ParsePeer(s string) (types.PeerID, error) {
	id, err := types.ParsePeerID(s)
	if err != nil {
		return types.EmptyPeerID, fmt.Errorf("%w: %q is not a valid public key", types.ErrInvalidPeerIdentifier, strings.TrimSpace(s))
	}
	return id, nil
}
