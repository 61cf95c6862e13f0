package quic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-bridge/internal/core/metrics"
)

// 流量方向标签
const (
	directionIn  = "in"
	directionOut = "out"
)

// sendSide 是 *quic.Stream 与 *quic.SendStream 共有的发送方法
type sendSide interface {
	io.Writer
	Close() error
	CancelWrite(quic.StreamErrorCode)
	SetWriteDeadline(time.Time) error
	StreamID() quic.StreamID
}

// recvSide 是 *quic.Stream 与 *quic.ReceiveStream 共有的接收方法
type recvSide interface {
	io.Reader
	CancelRead(quic.StreamErrorCode)
	SetReadDeadline(time.Time) error
	StreamID() quic.StreamID
}

// ============================================================================
//                              SendStream
// ============================================================================

// SendStream 流的发送半部
//
// 写操作串行执行；并发调用 Write 按到达顺序排队。
type SendStream struct {
	s       sendSide
	alpn    string
	metrics *metrics.Metrics

	ioMu sync.Mutex
}

func newSendStream(s sendSide, alpn string, m *metrics.Metrics) *SendStream {
	return &SendStream{s: s, alpn: alpn, metrics: m}
}

// ID 返回流 ID
func (s *SendStream) ID() uint64 {
	return uint64(s.s.StreamID())
}

// Write 写入全部数据，ctx 结束时中断写入
func (s *SendStream) Write(ctx context.Context, p []byte) (int, error) {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = s.s.SetWriteDeadline(time.Now())
		close(fired)
	})
	n, err := s.s.Write(p)
	if !stop() {
		// 取消已触发，恢复截止时间供后续写入使用
		<-fired
		_ = s.s.SetWriteDeadline(time.Time{})
		if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
			err = ctx.Err()
		}
	}

	s.metrics.StreamBytes(directionOut, s.alpn, n)
	return n, err
}

// Finish 正常结束发送（发送 FIN）
func (s *SendStream) Finish() error {
	return s.s.Close()
}

// Reset 以错误码放弃发送
func (s *SendStream) Reset(code uint64) {
	s.s.CancelWrite(quic.StreamErrorCode(code))
}

// ============================================================================
//                              RecvStream
// ============================================================================

// RecvStream 流的接收半部
type RecvStream struct {
	r       recvSide
	alpn    string
	metrics *metrics.Metrics

	ioMu sync.Mutex
}

func newRecvStream(r recvSide, alpn string, m *metrics.Metrics) *RecvStream {
	return &RecvStream{r: r, alpn: alpn, metrics: m}
}

// ID 返回流 ID
func (s *RecvStream) ID() uint64 {
	return uint64(s.r.StreamID())
}

// Read 读取最多 maxLen 字节
//
// 对端结束发送且数据读完后返回 io.EOF。
func (s *RecvStream) Read(ctx context.Context, maxLen int) ([]byte, error) {
	if maxLen <= 0 {
		return nil, fmt.Errorf("invalid read size %d", maxLen)
	}

	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	buf := make([]byte, maxLen)
	n, err := s.readLocked(ctx, buf)
	if n > 0 && err == io.EOF {
		// 数据先交给调用方，下一次读取再报告 EOF
		err = nil
	}
	return buf[:n], err
}

// ReadToEnd 读取直到对端结束发送，超过 limit 字节返回 ErrReadLimit
func (s *RecvStream) ReadToEnd(ctx context.Context, limit int) ([]byte, error) {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	var out []byte
	buf := make([]byte, 16*1024)
	for {
		n, err := s.readLocked(ctx, buf)
		out = append(out, buf[:n]...)
		if limit > 0 && len(out) > limit {
			s.r.CancelRead(0)
			return nil, fmt.Errorf("%w: %d bytes", ErrReadLimit, limit)
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

// readLocked 单次读取，调用方持有 ioMu
func (s *RecvStream) readLocked(ctx context.Context, buf []byte) (int, error) {
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = s.r.SetReadDeadline(time.Now())
		close(fired)
	})
	n, err := s.r.Read(buf)
	if !stop() {
		<-fired
		_ = s.r.SetReadDeadline(time.Time{})
		if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
			err = ctx.Err()
		}
	}

	s.metrics.StreamBytes(directionIn, s.alpn, n)
	return n, err
}

// Stop 通知对端停止发送
func (s *RecvStream) Stop(code uint64) {
	s.r.CancelRead(quic.StreamErrorCode(code))
}
