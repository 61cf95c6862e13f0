package bridge

import (
	"context"

	"github.com/dep2p/go-bridge/internal/core/connection"
	"github.com/dep2p/go-bridge/internal/core/transport/quic"
)

// Connection 宿主侧的连接
type Connection struct {
	object

	handle *connection.Handle
}

func newConnection(b *Bridge, conn *quic.Conn) *Connection {
	c := &Connection{handle: connection.NewHandle(conn)}
	c.init(b)
	return c
}

// RemotePeer 返回对端节点 ID，连接为空时返回 "N/A"
func (c *Connection) RemotePeer() string {
	conn, err := connection.Get(c.handle)
	if err != nil {
		return AddressUnbound
	}
	return conn.RemotePeer().String()
}

// ALPN 返回协商的应用协议
func (c *Connection) ALPN() string {
	conn, err := connection.Get(c.handle)
	if err != nil {
		return ""
	}
	return conn.ALPN()
}

type streamOp func(ctx context.Context, h *connection.Handle) (connection.Streams, error)

func (c *Connection) stream(op streamOp) func(context.Context) (*Stream, error) {
	return func(ctx context.Context) (*Stream, error) {
		s, err := op(ctx, c.handle)
		if err != nil {
			return nil, err
		}
		return newStream(c.b, s), nil
	}
}

func (c *Connection) openUni(ctx context.Context, h *connection.Handle) (connection.Streams, error) {
	return connection.OpenUni(ctx, h, c.b.metrics)
}

func (c *Connection) openBi(ctx context.Context, h *connection.Handle) (connection.Streams, error) {
	return connection.OpenBi(ctx, h, c.b.metrics)
}

func (c *Connection) acceptUni(ctx context.Context, h *connection.Handle) (connection.Streams, error) {
	return connection.AcceptUni(ctx, h, c.b.metrics)
}

func (c *Connection) acceptBi(ctx context.Context, h *connection.Handle) (connection.Streams, error) {
	return connection.AcceptBi(ctx, h, c.b.metrics)
}

// OpenUniBlocking 打开单向发送流，返回的 Stream 只有发送端
func (c *Connection) OpenUniBlocking(ctx context.Context) (*Stream, error) {
	return blocking(ctx, &c.object, c.stream(c.openUni))
}

// OpenUniAsync 结果通过 open_uni_async_results 投递（Result[*Stream]）
func (c *Connection) OpenUniAsync() {
	async(&c.object, SignalOpenUniAsyncResults, c.stream(c.openUni))
}

// OpenBiBlocking 打开双向流
//
// 对端在收到第一段数据后才能接受该流。
func (c *Connection) OpenBiBlocking(ctx context.Context) (*Stream, error) {
	return blocking(ctx, &c.object, c.stream(c.openBi))
}

// OpenBiAsync 结果通过 open_bi_async_results 投递（Result[*Stream]）
func (c *Connection) OpenBiAsync() {
	async(&c.object, SignalOpenBiAsyncResults, c.stream(c.openBi))
}

// AcceptUniBlocking 接受对端打开的单向流，返回的 Stream 只有接收端
func (c *Connection) AcceptUniBlocking(ctx context.Context) (*Stream, error) {
	return blocking(ctx, &c.object, c.stream(c.acceptUni))
}

// AcceptUniAsync 结果通过 accept_uni_async_results 投递（Result[*Stream]）
func (c *Connection) AcceptUniAsync() {
	async(&c.object, SignalAcceptUniAsyncResults, c.stream(c.acceptUni))
}

// AcceptBiBlocking 接受对端打开的双向流
func (c *Connection) AcceptBiBlocking(ctx context.Context) (*Stream, error) {
	return blocking(ctx, &c.object, c.stream(c.acceptBi))
}

// AcceptBiAsync 结果通过 accept_bi_async_results 投递（Result[*Stream]）
func (c *Connection) AcceptBiAsync() {
	async(&c.object, SignalAcceptBiAsyncResults, c.stream(c.acceptBi))
}

// Close 以应用错误码关闭连接
func (c *Connection) Close(code uint64, reason string) error {
	return connection.Close(c.handle, code, reason)
}

// Release 发起操作的宿主对象已销毁、结果无人接收时关闭连接
func (c *Connection) Release() {
	_ = c.Close(0, "discarded")
}
