package bridge

import (
	"context"
	"fmt"

	"github.com/dep2p/go-bridge/internal/core/delivery"
	"github.com/dep2p/go-bridge/internal/core/runtime"
	pkgif "github.com/dep2p/go-bridge/pkg/interfaces"
)

// 异步结果信号
const (
	SignalBindAsyncResults      = "bind_async_results"
	SignalConnectAsyncResults   = "connect_async_results"
	SignalAcceptAsyncResults    = "accept_async_results"
	SignalOpenUniAsyncResults   = "open_uni_async_results"
	SignalOpenBiAsyncResults    = "open_bi_async_results"
	SignalAcceptUniAsyncResults = "accept_uni_async_results"
	SignalAcceptBiAsyncResults  = "accept_bi_async_results"
	SignalWriteAsyncResults     = "write_async_results"
	SignalReadAsyncResults      = "read_async_results"
	SignalSubscribeAsyncResults = "subscribe_async_results"
	SignalBroadcastAsyncResults = "broadcast_async_results"
	SignalJoinedAsyncResults    = "joined_async_results"
	SignalGossipEvent           = "gossip_event"
)

// Result 异步结果，作为信号的唯一参数
type Result[T any] = delivery.Result[T]

// Unit 无返回值操作的结果类型
type Unit = struct{}

// Signaler 可订阅信号的宿主对象
type Signaler interface {
	pkgif.Object
	signals() *delivery.Signals
}

// OnResult 订阅 obj 的异步结果信号
//
// 处理函数在宿主线程上调用。
func OnResult[T any](obj Signaler, signal string, fn func(Result[T])) {
	delivery.Bind(obj.signals(), signal, fn)
}

// object 宿主对象的公共部分
type object struct {
	delivery.Signals

	id pkgif.ObjectID
	b  *Bridge
}

func (o *object) init(b *Bridge) {
	o.id = pkgif.NewObjectID()
	o.b = b
}

// ObjectID 返回宿主对象标识
func (o *object) ObjectID() pkgif.ObjectID {
	return o.id
}

func (o *object) signals() *delivery.Signals {
	return &o.Signals
}

// Free 从宿主注销对象
//
// 之后完成的异步操作不会再投递结果；进行中的网络操作不会被取消。
func (o *object) Free() {
	o.b.host.Free(o.id)
}

// blocking 在调用方 goroutine 上运行 fn，新建的宿主对象登记到宿主
func blocking[T any](ctx context.Context, o *object, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := runtime.BlockOn(ctx, o.b.rt, fn)
	return delivery.Adopt(o.b.host, v, err)
}

// async 在后台运行 fn，结果通过 signal 投递回宿主线程
func async[T any](o *object, signal string, fn func(ctx context.Context) (T, error)) {
	emit := delivery.NewEmitter[T](o.b.host, o.id, signal, o.b.metrics)
	runtime.Go(o.b.rt, func(ctx context.Context) (v T, err error) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("异步操作 panic", "signal", signal, "panic", p)
				err = fmt.Errorf("task panic: %v", p)
			}
			emit(delivery.From(v, err))
		}()
		return fn(ctx)
	})
}
