package quic

import (
	"context"
	"net"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-bridge/internal/core/metrics"
	"github.com/dep2p/go-bridge/pkg/types"
)

// Conn 已完成握手的 QUIC 连接
type Conn struct {
	qc      *quic.Conn
	remote  types.PeerID
	alpn    string
	metrics *metrics.Metrics
}

func newConn(qc *quic.Conn, remote types.PeerID, m *metrics.Metrics) *Conn {
	return &Conn{
		qc:      qc,
		remote:  remote,
		alpn:    qc.ConnectionState().TLS.NegotiatedProtocol,
		metrics: m,
	}
}

// RemotePeer 返回对端节点 ID
func (c *Conn) RemotePeer() types.PeerID {
	return c.remote
}

// ALPN 返回握手协商的应用协议
func (c *Conn) ALPN() string {
	return c.alpn
}

// LocalAddr 返回本地地址
func (c *Conn) LocalAddr() net.Addr {
	return c.qc.LocalAddr()
}

// RemoteAddr 返回对端地址
func (c *Conn) RemoteAddr() net.Addr {
	return c.qc.RemoteAddr()
}

// Context 返回连接上下文，连接关闭时取消
func (c *Conn) Context() context.Context {
	return c.qc.Context()
}

// OpenUni 打开单向发送流
//
// 流量控制允许前会阻塞。对端在收到第一个数据帧后才能接受该流。
func (c *Conn) OpenUni(ctx context.Context) (*SendStream, error) {
	s, err := c.qc.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return newSendStream(s, c.alpn, c.metrics), nil
}

// OpenBi 打开双向流
func (c *Conn) OpenBi(ctx context.Context) (*SendStream, *RecvStream, error) {
	s, err := c.qc.OpenStreamSync(ctx)
	if err != nil {
		return nil, nil, err
	}
	return newSendStream(s, c.alpn, c.metrics), newRecvStream(s, c.alpn, c.metrics), nil
}

// AcceptUni 等待对端打开的单向流
func (c *Conn) AcceptUni(ctx context.Context) (*RecvStream, error) {
	s, err := c.qc.AcceptUniStream(ctx)
	if err != nil {
		return nil, err
	}
	return newRecvStream(s, c.alpn, c.metrics), nil
}

// AcceptBi 等待对端打开的双向流
func (c *Conn) AcceptBi(ctx context.Context) (*SendStream, *RecvStream, error) {
	s, err := c.qc.AcceptStream(ctx)
	if err != nil {
		return nil, nil, err
	}
	return newSendStream(s, c.alpn, c.metrics), newRecvStream(s, c.alpn, c.metrics), nil
}

// Close 以应用错误码关闭连接
func (c *Conn) Close(code uint64, reason string) error {
	return c.qc.CloseWithError(quic.ApplicationErrorCode(code), reason)
}
