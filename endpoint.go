package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/dep2p/go-bridge/internal/core/endpoint"
	"github.com/dep2p/go-bridge/internal/core/identity"
	"github.com/dep2p/go-bridge/internal/core/transport/quic"
)

// AddressUnbound 未绑定 Endpoint 的地址
const AddressUnbound = endpoint.AddressUnbound

// Endpoint 宿主侧的网络端点
//
// 绑定前只持有空句柄；BindXxx 成功后句柄中存放实际的 QUIC 端点，
// 后续的连接与接受都通过它进行。
type Endpoint struct {
	object

	handle *endpoint.Handle

	idMu     sync.Mutex
	identity *identity.Identity
}

func newEndpoint(b *Bridge) *Endpoint {
	e := &Endpoint{handle: endpoint.NewHandle()}
	e.init(b)
	return e
}

// UseSecretKey 设置下一次绑定使用的身份（PEM 编码的 ed25519 私钥）
//
// 不调用时每次绑定生成新身份。
func (e *Endpoint) UseSecretKey(pemData []byte) error {
	id, err := identity.ParsePEM(pemData)
	if err != nil {
		return err
	}
	e.idMu.Lock()
	e.identity = id
	e.idMu.Unlock()
	return nil
}

func (e *Endpoint) bindOptions(alpns []string) endpoint.BindOptions {
	e.idMu.Lock()
	id := e.identity
	e.idMu.Unlock()

	q := e.b.cfg.Transport.QUIC
	return endpoint.BindOptions{
		ALPNs:      alpns,
		Identity:   id,
		ListenAddr: e.b.cfg.Transport.ListenAddr,
		QUIC: quic.Config{
			MaxIdleTimeout:        q.MaxIdleTimeout.Duration(),
			KeepAlivePeriod:       q.KeepAlivePeriod.Duration(),
			HandshakeTimeout:      q.HandshakeTimeout.Duration(),
			MaxIncomingStreams:    q.MaxIncomingStreams,
			MaxIncomingUniStreams: q.MaxIncomingUniStreams,
		},
		Discovery: e.b.discovery,
		Metrics:   e.b.metrics,
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              Bind
// ════════════════════════════════════════════════════════════════════════════

// BindBlocking 绑定端点，接受 alpns 中的应用协议
//
// 已绑定时覆盖并记录警告，旧端点不会被关闭。
func (e *Endpoint) BindBlocking(ctx context.Context, alpns []string) error {
	_, err := blocking(ctx, &e.object, e.bind(alpns))
	return err
}

// BindAsync 异步绑定，结果通过 bind_async_results 投递（Result[Unit]）
func (e *Endpoint) BindAsync(alpns []string) {
	async(&e.object, SignalBindAsyncResults, e.bind(alpns))
}

func (e *Endpoint) bind(alpns []string) func(context.Context) (Unit, error) {
	opts := e.bindOptions(alpns)
	return func(ctx context.Context) (Unit, error) {
		_, err := endpoint.Bind(ctx, e.handle, opts)
		return Unit{}, err
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              Connect / Accept
// ════════════════════════════════════════════════════════════════════════════

// ConnectBlocking 连接到 peer（base58 节点 ID），协商 alpn
func (e *Endpoint) ConnectBlocking(ctx context.Context, peer, alpn string) (*Connection, error) {
	return blocking(ctx, &e.object, e.connect(peer, alpn))
}

// ConnectAsync 异步连接，结果通过 connect_async_results 投递（Result[*Connection]）
func (e *Endpoint) ConnectAsync(peer, alpn string) {
	async(&e.object, SignalConnectAsyncResults, e.connect(peer, alpn))
}

func (e *Endpoint) connect(peer, alpn string) func(context.Context) (*Connection, error) {
	return func(ctx context.Context) (*Connection, error) {
		conn, err := endpoint.Connect(ctx, e.handle, peer, alpn, e.b.metrics)
		if err != nil {
			return nil, err
		}
		return newConnection(e.b, conn), nil
	}
}

// AcceptBlocking 等待下一个入站连接
func (e *Endpoint) AcceptBlocking(ctx context.Context) (*Connection, error) {
	return blocking(ctx, &e.object, e.accept)
}

// AcceptAsync 异步接受，结果通过 accept_async_results 投递（Result[*Connection]）
func (e *Endpoint) AcceptAsync() {
	async(&e.object, SignalAcceptAsyncResults, e.accept)
}

func (e *Endpoint) accept(ctx context.Context) (*Connection, error) {
	conn, err := endpoint.Accept(ctx, e.handle, e.b.metrics)
	if err != nil {
		return nil, err
	}
	return newConnection(e.b, conn), nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              地址
// ════════════════════════════════════════════════════════════════════════════

// Address 返回 base58 节点 ID，未绑定时返回 "N/A"
func (e *Endpoint) Address() string {
	return endpoint.Address(e.handle)
}

// DirectAddresses 返回可直连的 UDP 地址
func (e *Endpoint) DirectAddresses() []string {
	return endpoint.DirectAddresses(e.handle)
}

// AddPeerAddr 把 peer 的地址写入地址簿
func (e *Endpoint) AddPeerAddr(peer, addr string) error {
	id, err := endpoint.ParsePeer(peer)
	if err != nil {
		return err
	}
	if err := e.b.discovery.AddressBook().AddString(id, addr); err != nil {
		return fmt.Errorf("add peer addr: %w", err)
	}
	return nil
}

// IsBound 检查是否已绑定
func (e *Endpoint) IsBound() bool {
	return e.handle.IsSet()
}

// Close 关闭端点及其上的连接，之后可重新绑定
func (e *Endpoint) Close() error {
	return endpoint.Close(e.handle)
}
