// Package stream 实现 Stream 门面的共享逻辑
//
// 流的发送与接收半部分别保存在各自的句柄中，单向流只有其中一个。
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dep2p/go-bridge/internal/core/handle"
	"github.com/dep2p/go-bridge/internal/core/metrics"
	"github.com/dep2p/go-bridge/internal/core/transport/quic"
	"github.com/dep2p/go-bridge/pkg/types"
)

// DefaultReadLimit ReadToEnd 默认上限
const DefaultReadLimit = 16 << 20

// SendHandle 发送半部句柄
type SendHandle = handle.Shared[*quic.SendStream]

// RecvHandle 接收半部句柄
type RecvHandle = handle.Shared[*quic.RecvStream]

// NewSendHandle 创建发送句柄，s 为 nil 时为空句柄
func NewSendHandle(s *quic.SendStream) *SendHandle {
	if s == nil {
		return handle.New[*quic.SendStream]("send_stream")
	}
	return handle.Of("send_stream", s)
}

// NewRecvHandle 创建接收句柄，r 为 nil 时为空句柄
func NewRecvHandle(r *quic.RecvStream) *RecvHandle {
	if r == nil {
		return handle.New[*quic.RecvStream]("recv_stream")
	}
	return handle.Of("recv_stream", r)
}

func getSend(h *SendHandle) (*quic.SendStream, error) {
	s, ok := h.Load()
	if !ok {
		return nil, fmt.Errorf("%w: stream has no send half", types.ErrNotInitialized)
	}
	return s, nil
}

func getRecv(h *RecvHandle) (*quic.RecvStream, error) {
	r, ok := h.Load()
	if !ok {
		return nil, fmt.Errorf("%w: stream has no receive half", types.ErrNotInitialized)
	}
	return r, nil
}

// Write 写入全部数据，返回写入字节数
func Write(ctx context.Context, h *SendHandle, data []byte, m *metrics.Metrics) (n int, err error) {
	defer func() { m.Operation("write", err) }()

	s, err := getSend(h)
	if err != nil {
		return 0, err
	}
	n, err = s.Write(ctx, data)
	if err != nil {
		return n, fmt.Errorf("write stream: %w", err)
	}
	return n, nil
}

// Read 读取最多 maxLen 字节，流结束时返回 io.EOF
func Read(ctx context.Context, h *RecvHandle, maxLen int, m *metrics.Metrics) (data []byte, err error) {
	defer func() {
		if !errors.Is(err, io.EOF) {
			m.Operation("read", err)
		}
	}()

	r, err := getRecv(h)
	if err != nil {
		return nil, err
	}
	data, err = r.Read(ctx, maxLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return data, fmt.Errorf("read stream: %w", err)
	}
	return data, err
}

// ReadToEnd 读取直到对端结束发送
//
// limit <= 0 时使用 DefaultReadLimit。
func ReadToEnd(ctx context.Context, h *RecvHandle, limit int, m *metrics.Metrics) (data []byte, err error) {
	defer func() { m.Operation("read_to_end", err) }()

	r, err := getRecv(h)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	data, err = r.ReadToEnd(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return data, nil
}

// Finish 结束发送半部
func Finish(h *SendHandle) error {
	s, err := getSend(h)
	if err != nil {
		return err
	}
	return s.Finish()
}

// StopReading 停止接收并通知对端
func StopReading(h *RecvHandle, code uint64) error {
	r, err := getRecv(h)
	if err != nil {
		return err
	}
	r.Stop(code)
	return nil
}
