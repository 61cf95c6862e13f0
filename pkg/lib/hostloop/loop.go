// Package hostloop 提供单线程宿主对象系统的参考实现
//
// Loop 模拟一个典型的回调驱动宿主（游戏引擎、GUI 事件循环等）：
//   - 对象注册表：ObjectID → Object，Free 后解析失败
//   - 调度队列：任意线程 CallDeferred，宿主线程按 FIFO 执行
//
// 宿主线程即调用 Run / Drain / RunUntil 的 goroutine。
package hostloop

import (
	"context"
	"errors"
	"sync"

	pkgif "github.com/dep2p/go-bridge/pkg/interfaces"
	"github.com/dep2p/go-bridge/pkg/lib/log"
)

var logger = log.Logger("lib/hostloop")

// ErrStopped 宿主循环已停止
var ErrStopped = errors.New("hostloop: stopped")

// 确保实现接口
var _ pkgif.Host = (*Loop)(nil)

// Loop 单线程宿主循环
type Loop struct {
	objMu   sync.RWMutex
	objects map[pkgif.ObjectID]pkgif.Object

	queueMu sync.Mutex
	queue   []func()
	stopped bool

	// notify 有新任务入队时发出（容量 1，合并通知）
	notify chan struct{}
}

// New 创建宿主循环
func New() *Loop {
	return &Loop{
		objects: make(map[pkgif.ObjectID]pkgif.Object),
		notify:  make(chan struct{}, 1),
	}
}

// ============================================================================
//                              对象注册表
// ============================================================================

// Register 注册对象
func (l *Loop) Register(obj pkgif.Object) pkgif.ObjectID {
	id := obj.ObjectID()
	l.objMu.Lock()
	l.objects[id] = obj
	l.objMu.Unlock()
	return id
}

// Lookup 解析对象
func (l *Loop) Lookup(id pkgif.ObjectID) (pkgif.Object, bool) {
	l.objMu.RLock()
	defer l.objMu.RUnlock()
	obj, ok := l.objects[id]
	return obj, ok
}

// Free 销毁对象
func (l *Loop) Free(id pkgif.ObjectID) {
	l.objMu.Lock()
	delete(l.objects, id)
	l.objMu.Unlock()
}

// Len 返回存活对象数量
func (l *Loop) Len() int {
	l.objMu.RLock()
	defer l.objMu.RUnlock()
	return len(l.objects)
}

// ============================================================================
//                              调度队列
// ============================================================================

// CallDeferred 将 fn 加入宿主线程队列
//
// 队列无界，后台任务永远不会因宿主繁忙而阻塞。
func (l *Loop) CallDeferred(fn func()) error {
	l.queueMu.Lock()
	if l.stopped {
		l.queueMu.Unlock()
		return ErrStopped
	}
	l.queue = append(l.queue, fn)
	l.queueMu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pending 返回队列中待执行的任务数量
func (l *Loop) Pending() int {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	return len(l.queue)
}

// Drain 在当前 goroutine 上执行所有已入队的任务，返回执行数量
//
// 执行过程中新入队的任务也会被执行。
func (l *Loop) Drain() int {
	n := 0
	for {
		l.queueMu.Lock()
		batch := l.queue
		l.queue = nil
		l.queueMu.Unlock()

		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			l.invoke(fn)
			n++
		}
	}
}

// invoke 执行单个任务，任务 panic 不会终止宿主循环
func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("宿主任务 panic", "panic", r)
		}
	}()
	fn()
}

// Run 在当前 goroutine 上运行宿主循环，直到 ctx 结束或 Stop
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Drain()

		l.queueMu.Lock()
		stopped := l.stopped
		l.queueMu.Unlock()
		if stopped {
			return ErrStopped
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.notify:
		}
	}
}

// RunUntil 运行宿主循环直到 cond 返回 true
//
// cond 在宿主线程上求值，因此可以安全读取宿主侧状态。
func (l *Loop) RunUntil(ctx context.Context, cond func() bool) error {
	for {
		l.Drain()
		if cond() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.notify:
		}
	}
}

// Stop 停止接受新任务并唤醒 Run
//
// 已入队的任务在下一次 Drain 时仍会执行。
func (l *Loop) Stop() {
	l.queueMu.Lock()
	l.stopped = true
	l.queueMu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}
