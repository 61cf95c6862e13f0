// Package delivery 把后台任务的结果安全地送回宿主线程
//
// 后台任务只持有宿主对象的 ObjectID，不持有对象本身。结果投递时：
//  1. 通过宿主把 ObjectID 解析为存活对象
//  2. 解析失败（对象已销毁）则记录警告并丢弃结果
//  3. 解析成功则通过 CallDeferred 把信号发射排入宿主队列，
//     在宿主线程上再次解析后发出信号
//
// 第二次解析覆盖了入队与执行之间对象被销毁的情况。
// 结果只会被投递一次，对象失效时网络操作本身仍然完成，
// 结果中新建的网络对象若实现 Releaser，丢弃时会被释放。
package delivery

import (
	"github.com/dep2p/go-bridge/internal/core/metrics"
	pkgif "github.com/dep2p/go-bridge/pkg/interfaces"
	"github.com/dep2p/go-bridge/pkg/lib/log"
	"github.com/dep2p/go-bridge/pkg/types"
)

var logger = log.Logger("core/delivery")

// Result 异步操作结果
//
// Err 非 nil 时 Value 为零值。
type Result[T any] struct {
	Value T
	Err   error
}

// OK 构造成功结果
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail 构造失败结果
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// From 由 (值, 错误) 构造结果
func From[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return OK(v)
}

// adopt 把结果中新建的宿主对象登记到宿主
//
// 只在宿主线程上调用；被丢弃的结果不会登记，也就不会留下无主对象。
func adopt[T any](host pkgif.Host, r Result[T]) {
	if r.Err != nil {
		return
	}
	if obj, ok := any(r.Value).(pkgif.Object); ok && obj != nil {
		host.Register(obj)
	}
}

// Releaser 结果被丢弃时需要释放底层网络资源的值
type Releaser interface {
	Release()
}

// discard 丢弃结果，释放其中新建的网络对象
func discard[T any](r Result[T]) {
	if r.Err != nil {
		return
	}
	if rel, ok := any(r.Value).(Releaser); ok && rel != nil {
		rel.Release()
	}
}

// Adopt 在宿主线程上登记阻塞调用新建的对象并原样返回
func Adopt[T any](host pkgif.Host, v T, err error) (T, error) {
	adopt(host, From(v, err))
	return v, err
}

// Emitter 结果投递函数，可在任意 goroutine 上调用
type Emitter[T any] func(Result[T])

// NewEmitter 创建绑定到宿主对象 id 与信号 signal 的投递函数
//
// 返回的函数不保留宿主对象的引用。
func NewEmitter[T any](host pkgif.Host, id pkgif.ObjectID, signal string, m *metrics.Metrics) Emitter[T] {
	return func(r Result[T]) {
		if _, ok := host.Lookup(id); !ok {
			logger.Warn("宿主对象已销毁，丢弃结果",
				"object", id.String(),
				"signal", signal,
				"error", types.ErrHandleExpired)
			m.HandleExpired()
			discard(r)
			return
		}

		err := host.CallDeferred(func() {
			// 宿主线程上再次解析
			obj, ok := host.Lookup(id)
			if !ok {
				logger.Warn("宿主对象在投递前被销毁，丢弃结果",
					"object", id.String(),
					"signal", signal)
				m.HandleExpired()
				discard(r)
				return
			}
			adopt(host, r)
			obj.EmitSignal(signal, r)
		})
		if err != nil {
			logger.Warn("宿主队列不可用，丢弃结果", "signal", signal, "error", err)
			discard(r)
			return
		}
		m.Delivered()
	}
}
