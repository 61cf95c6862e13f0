// Package connection 实现 Connection 门面的共享逻辑
package connection

import (
	"context"
	"fmt"

	"github.com/dep2p/go-bridge/internal/core/handle"
	"github.com/dep2p/go-bridge/internal/core/metrics"
	"github.com/dep2p/go-bridge/internal/core/transport/quic"
	"github.com/dep2p/go-bridge/pkg/lib/log"
	"github.com/dep2p/go-bridge/pkg/types"
)

var logger = log.Logger("core/connection")

// Handle Connection 共享句柄
type Handle = handle.Shared[*quic.Conn]

// NewHandle 创建句柄，conn 为 nil 时为空句柄
func NewHandle(conn *quic.Conn) *Handle {
	if conn == nil {
		return handle.New[*quic.Conn]("connection")
	}
	return handle.Of("connection", conn)
}

// Streams 一对流半部，单向流只有其中一个
type Streams struct {
	Send *quic.SendStream
	Recv *quic.RecvStream
}

// Get 读取连接
func Get(h *Handle) (*quic.Conn, error) {
	conn, ok := h.Load()
	if !ok {
		return nil, fmt.Errorf("%w: connection is not established", types.ErrNotInitialized)
	}
	return conn, nil
}

// OpenUni 打开单向发送流
func OpenUni(ctx context.Context, h *Handle, m *metrics.Metrics) (s Streams, err error) {
	defer func() { m.Operation("open_uni", err) }()

	conn, err := Get(h)
	if err != nil {
		return Streams{}, err
	}
	send, err := conn.OpenUni(ctx)
	if err != nil {
		return Streams{}, fmt.Errorf("%w: %w", types.ErrStreamOpenFailed, err)
	}
	logger.Debug("已打开单向流", "peer", conn.RemotePeer().ShortString(), "stream", send.ID())
	return Streams{Send: send}, nil
}

// OpenBi 打开双向流
func OpenBi(ctx context.Context, h *Handle, m *metrics.Metrics) (s Streams, err error) {
	defer func() { m.Operation("open_bi", err) }()

	conn, err := Get(h)
	if err != nil {
		return Streams{}, err
	}
	send, recv, err := conn.OpenBi(ctx)
	if err != nil {
		return Streams{}, fmt.Errorf("%w: %w", types.ErrStreamOpenFailed, err)
	}
	logger.Debug("已打开双向流", "peer", conn.RemotePeer().ShortString(), "stream", send.ID())
	return Streams{Send: send, Recv: recv}, nil
}

// AcceptUni 接受对端打开的单向流
func AcceptUni(ctx context.Context, h *Handle, m *metrics.Metrics) (s Streams, err error) {
	defer func() { m.Operation("accept_uni", err) }()

	conn, err := Get(h)
	if err != nil {
		return Streams{}, err
	}
	recv, err := conn.AcceptUni(ctx)
	if err != nil {
		return Streams{}, fmt.Errorf("%w: %w", types.ErrStreamAcceptFailed, err)
	}
	return Streams{Recv: recv}, nil
}

// AcceptBi 接受对端打开的双向流
func AcceptBi(ctx context.Context, h *Handle, m *metrics.Metrics) (s Streams, err error) {
	defer func() { m.Operation("accept_bi", err) }()

	conn, err := Get(h)
	if err != nil {
		return Streams{}, err
	}
	send, recv, err := conn.AcceptBi(ctx)
	if err != nil {
		return Streams{}, fmt.Errorf("%w: %w", types.ErrStreamAcceptFailed, err)
	}
	return Streams{Send: send, Recv: recv}, nil
}

// Close 以应用错误码关闭连接并清空句柄
func Close(h *Handle, code uint64, reason string) error {
	conn, ok := h.Take()
	if !ok {
		return nil
	}
	return conn.Close(code, reason)
}
