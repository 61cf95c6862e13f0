package bridge

import (
	"context"

	"github.com/dep2p/go-bridge/internal/core/connection"
	"github.com/dep2p/go-bridge/internal/core/stream"
)

// Stream 宿主侧的流
//
// 双向流同时有发送端与接收端；OpenUni 得到的流只有发送端，
// AcceptUni 得到的流只有接收端。访问缺失的一端返回 ErrNotInitialized。
type Stream struct {
	object

	send *stream.SendHandle
	recv *stream.RecvHandle
}

func newStream(b *Bridge, s connection.Streams) *Stream {
	st := &Stream{
		send: stream.NewSendHandle(s.Send),
		recv: stream.NewRecvHandle(s.Recv),
	}
	st.init(b)
	return st
}

// HasSend 是否有发送端
func (s *Stream) HasSend() bool {
	return s.send.IsSet()
}

// HasRecv 是否有接收端
func (s *Stream) HasRecv() bool {
	return s.recv.IsSet()
}

// WriteBlocking 写入全部数据
func (s *Stream) WriteBlocking(ctx context.Context, data []byte) (int, error) {
	return blocking(ctx, &s.object, s.write(data))
}

// WriteAsync 结果通过 write_async_results 投递（Result[int]）
func (s *Stream) WriteAsync(data []byte) {
	async(&s.object, SignalWriteAsyncResults, s.write(data))
}

func (s *Stream) write(data []byte) func(context.Context) (int, error) {
	buf := append([]byte(nil), data...)
	return func(ctx context.Context) (int, error) {
		return stream.Write(ctx, s.send, buf, s.b.metrics)
	}
}

// ReadBlocking 读取最多 maxLen 字节
//
// 对端结束发送后返回 io.EOF。
func (s *Stream) ReadBlocking(ctx context.Context, maxLen int) ([]byte, error) {
	return blocking(ctx, &s.object, s.read(maxLen))
}

// ReadAsync 结果通过 read_async_results 投递（Result[[]byte]）
func (s *Stream) ReadAsync(maxLen int) {
	async(&s.object, SignalReadAsyncResults, s.read(maxLen))
}

func (s *Stream) read(maxLen int) func(context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		return stream.Read(ctx, s.recv, maxLen, s.b.metrics)
	}
}

// ReadToEndBlocking 读取直到对端结束发送，limit <= 0 时使用默认上限
func (s *Stream) ReadToEndBlocking(ctx context.Context, limit int) ([]byte, error) {
	return blocking(ctx, &s.object, func(ctx context.Context) ([]byte, error) {
		return stream.ReadToEnd(ctx, s.recv, limit, s.b.metrics)
	})
}

// Finish 结束发送
func (s *Stream) Finish() error {
	return stream.Finish(s.send)
}

// StopReading 停止接收并以 code 通知对端
func (s *Stream) StopReading(code uint64) error {
	return stream.StopReading(s.recv, code)
}

// Release 结果无人接收时结束两个方向
func (s *Stream) Release() {
	_ = s.Finish()
	_ = s.StopReading(0)
}
