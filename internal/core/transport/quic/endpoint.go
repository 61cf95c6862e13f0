package quic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"sync"

	"github.com/quic-go/quic-go"
	"go.uber.org/multierr"

	"github.com/dep2p/go-bridge/internal/core/identity"
	"github.com/dep2p/go-bridge/internal/core/metrics"
	pkgif "github.com/dep2p/go-bridge/pkg/interfaces"
	"github.com/dep2p/go-bridge/pkg/lib/log"
	"github.com/dep2p/go-bridge/pkg/types"
)

var logger = log.Logger("core/transport/quic")

// Options Endpoint 选项
type Options struct {
	// Identity 节点身份，必填
	Identity *identity.Identity

	// ListenAddr UDP 监听地址，空表示 0.0.0.0:0
	ListenAddr string

	// ALPNs 初始接受的 ALPN 列表
	ALPNs []string

	// Config QUIC 参数，零值使用 DefaultConfig
	Config Config

	// Discovery 地址发现（可选）
	Discovery pkgif.AddrDiscovery

	// Metrics 指标（可选）
	Metrics *metrics.Metrics
}

// Endpoint QUIC 端点
//
// 监听与拨号共享同一个 UDP socket。
type Endpoint struct {
	id        *identity.Identity
	cfg       *quic.Config
	discovery pkgif.AddrDiscovery
	metrics   *metrics.Metrics

	udpConn   *net.UDPConn
	transport *quic.Transport
	listener  *quic.Listener

	alpnMu sync.RWMutex
	alpns  []string

	mu     sync.Mutex
	closed bool
}

// Listen 绑定 UDP socket 并开始监听
func Listen(ctx context.Context, opts Options) (*Endpoint, error) {
	if opts.Identity == nil {
		return nil, ErrNoIdentity
	}

	cfg := opts.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}

	listenAddr := opts.ListenAddr
	if listenAddr == "" {
		listenAddr = "0.0.0.0:0"
	}
	udpAddr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("解析监听地址失败: %w", err)
	}

	ep := &Endpoint{
		id:        opts.Identity,
		cfg:       cfg.quicConfig(),
		discovery: opts.Discovery,
		metrics:   opts.Metrics,
		alpns:     slices.Clone(opts.ALPNs),
	}

	serverTLS, err := ep.id.ServerTLSConfig(ep.ALPNs)
	if err != nil {
		return nil, err
	}

	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}
	ep.udpConn = udpConn
	ep.transport = &quic.Transport{Conn: udpConn}

	ln, err := ep.transport.Listen(serverTLS, ep.cfg)
	if err != nil {
		_ = ep.transport.Close()
		_ = udpConn.Close()
		return nil, fmt.Errorf("listen quic: %w", err)
	}
	ep.listener = ln

	if ep.discovery != nil {
		if err := ep.discovery.Publish(ctx, ep.ID(), ep.DirectAddrs()); err != nil {
			// 发布失败不影响本地监听，对端仍可通过显式地址拨入
			logger.Warn("公布本地地址失败", "peer", ep.ID().ShortString(), "error", err)
		}
	}

	logger.Debug("endpoint 已绑定",
		"peer", ep.ID().ShortString(),
		"addr", ep.LocalAddr().String(),
		"alpns", ep.ALPNs())
	return ep, nil
}

// ID 返回本地节点 ID
func (e *Endpoint) ID() types.PeerID {
	return e.id.ID()
}

// Identity 返回本地身份
func (e *Endpoint) Identity() *identity.Identity {
	return e.id
}

// Metrics 返回指标（可能为 nil）
func (e *Endpoint) Metrics() *metrics.Metrics {
	return e.metrics
}

// ============================================================================
//                              ALPN
// ============================================================================

// ALPNs 返回当前接受的 ALPN 列表（副本）
func (e *Endpoint) ALPNs() []string {
	e.alpnMu.RLock()
	defer e.alpnMu.RUnlock()
	return slices.Clone(e.alpns)
}

// SetALPNs 替换接受的 ALPN 列表，对之后的握手生效
func (e *Endpoint) SetALPNs(alpns []string) {
	e.alpnMu.Lock()
	e.alpns = slices.Clone(alpns)
	e.alpnMu.Unlock()
}

// AddALPN 追加一个 ALPN，已存在时忽略
func (e *Endpoint) AddALPN(alpn string) {
	e.alpnMu.Lock()
	defer e.alpnMu.Unlock()
	if !slices.Contains(e.alpns, alpn) {
		e.alpns = append(e.alpns, alpn)
	}
}

// ============================================================================
//                              地址
// ============================================================================

// LocalAddr 返回实际绑定的 UDP 地址
func (e *Endpoint) LocalAddr() netip.AddrPort {
	return e.udpConn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// DirectAddrs 返回对端可直接拨入的地址
//
// 绑定在通配地址时展开为回环地址加各网卡的 IPv4 地址。
func (e *Endpoint) DirectAddrs() []netip.AddrPort {
	local := e.LocalAddr()
	ip := local.Addr().Unmap()
	if !ip.IsUnspecified() {
		return []netip.AddrPort{netip.AddrPortFrom(ip, local.Port())}
	}

	port := local.Port()
	addrs := []netip.AddrPort{netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), port)}
	for _, ip := range interfaceIPv4s() {
		addrs = append(addrs, netip.AddrPortFrom(ip, port))
	}
	return addrs
}

// interfaceIPv4s 返回已启用网卡上的非回环 IPv4 地址
func interfaceIPv4s() []netip.Addr {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var out []netip.Addr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip, ok := netip.AddrFromSlice(ipNet.IP)
			if !ok {
				continue
			}
			ip = ip.Unmap()
			if ip.Is4() && !ip.IsLoopback() && !ip.IsLinkLocalUnicast() {
				out = append(out, ip)
			}
		}
	}
	return out
}

// ============================================================================
//                              拨号 / 接受
// ============================================================================

// Connect 通过地址发现拨号到 peer
//
// 依次尝试解析到的每个地址，返回第一个成功的连接。
func (e *Endpoint) Connect(ctx context.Context, peer types.PeerID, alpn string) (*Conn, error) {
	if e.isClosed() {
		return nil, ErrEndpointClosed
	}

	var addrs []netip.AddrPort
	if e.discovery != nil {
		found, err := e.discovery.Resolve(ctx, peer)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", peer.ShortString(), err)
		}
		addrs = found
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAddresses, peer.ShortString())
	}

	var errs error
	for _, addr := range addrs {
		conn, err := e.DialAddr(ctx, peer, addr, alpn)
		if err == nil {
			return conn, nil
		}
		errs = multierr.Append(errs, err)
		if ctx.Err() != nil {
			break
		}
		logger.Debug("拨号地址失败，尝试下一个", "peer", peer.ShortString(), "addr", addr.String(), "error", err)
	}
	return nil, errs
}

// DialAddr 拨号到指定地址，握手时校验对端公钥等于 peer
func (e *Endpoint) DialAddr(ctx context.Context, peer types.PeerID, addr netip.AddrPort, alpn string) (*Conn, error) {
	if e.isClosed() {
		return nil, ErrEndpointClosed
	}

	clientTLS, err := e.id.ClientTLSConfig(peer, alpn)
	if err != nil {
		return nil, err
	}

	qc, err := e.transport.Dial(ctx, net.UDPAddrFromAddrPort(addr), clientTLS, e.cfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return newConn(qc, peer, e.metrics), nil
}

// Accept 等待下一个入站连接
//
// 返回的连接已完成握手，对端身份已从证书中提取。
func (e *Endpoint) Accept(ctx context.Context) (*Conn, error) {
	for {
		if e.isClosed() {
			return nil, ErrEndpointClosed
		}

		qc, err := e.listener.Accept(ctx)
		if err != nil {
			if errors.Is(err, quic.ErrServerClosed) || e.isClosed() {
				return nil, ErrEndpointClosed
			}
			return nil, err
		}

		remote, err := identity.PeerIDFromConnectionState(qc.ConnectionState().TLS)
		if err != nil {
			logger.Warn("入站连接缺少有效身份，已关闭", "remote", qc.RemoteAddr().String(), "error", err)
			_ = qc.CloseWithError(0, "invalid identity")
			continue
		}
		return newConn(qc, remote, e.metrics), nil
	}
}

// ============================================================================
//                              生命周期
// ============================================================================

func (e *Endpoint) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Close 关闭 Endpoint 及其上的所有连接
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	if e.discovery != nil {
		e.discovery.Unpublish(e.ID())
	}

	// 在锁外关闭，quic-go 关闭时会等待连接退出
	err := multierr.Combine(
		e.listener.Close(),
		e.transport.Close(),
	)
	err = multierr.Append(err, ignoreClosed(e.udpConn.Close()))

	logger.Debug("endpoint 已关闭", "peer", e.ID().ShortString())
	return err
}

// ignoreClosed quic.Transport.Close 可能已经关闭了底层 socket
func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
