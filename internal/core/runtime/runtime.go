// Package runtime 提供后台异步执行环境
//
// Runtime 是进程内唯一的后台执行器，通过依赖注入交给每个门面对象，
// 而不是通过全局注册表查找。它提供两种跨上下文方式：
//   - Go / Spawn: 派发到后台 goroutine，立即返回
//   - BlockOn: 在调用方 goroutine 上运行到结束，调用方阻塞
//
// 在 Runtime 初始化之前或关闭之后调用 Spawn / Go / BlockOn 属于编程错误，
// 会以 ErrRuntimeClosed 触发 panic。
//
// Close 取消所有任务的上下文，并在宽限期（默认 5 秒）内等待任务结束，
// 超时的任务被放弃。
package runtime

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-bridge/internal/core/metrics"
	"github.com/dep2p/go-bridge/pkg/lib/log"
	"github.com/dep2p/go-bridge/pkg/types"
)

var logger = log.Logger("core/runtime")

// DefaultShutdownGrace 默认关闭宽限期
const DefaultShutdownGrace = 5 * time.Second

// Config Runtime 配置
type Config struct {
	// ShutdownGrace 关闭时等待任务结束的最长时间
	ShutdownGrace time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ShutdownGrace: DefaultShutdownGrace,
	}
}

// Option Runtime 选项
type Option func(*Runtime)

// WithClock 设置时钟（测试中使用 clock.NewMock）
func WithClock(c clock.Clock) Option {
	return func(r *Runtime) {
		r.clock = c
	}
}

// WithMetrics 设置指标收集
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runtime) {
		r.metrics = m
	}
}

// Runtime 后台执行器
type Runtime struct {
	cfg     Config
	clock   clock.Clock
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	// mu 保护 closed 与 wg.Add 的原子性，避免 Close 与 Spawn 竞争
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	active atomic.Int64
}

// New 创建 Runtime
func New(cfg Config, opts ...Option) *Runtime {
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		cfg:    cfg,
		clock:  clock.New(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(r)
	}

	logger.Debug("runtime 已创建", "shutdownGrace", cfg.ShutdownGrace)
	return r
}

// Context 返回 Runtime 根上下文，Close 时取消
func (r *Runtime) Context() context.Context {
	r.mustBeRunning("Context")
	return r.ctx
}

// Active 返回正在运行的任务数量（包括 BlockOn）
func (r *Runtime) Active() int {
	if r == nil {
		return 0
	}
	return int(r.active.Load())
}

// IsClosed 检查是否已关闭
func (r *Runtime) IsClosed() bool {
	if r == nil {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// mustBeRunning nil 或已关闭时 panic
func (r *Runtime) mustBeRunning(op string) {
	if r == nil {
		panic(fmt.Errorf("%w: %s called before runtime initialization", types.ErrRuntimeClosed, op))
	}
	if r.IsClosed() {
		panic(fmt.Errorf("%w: %s called after runtime shutdown", types.ErrRuntimeClosed, op))
	}
}

// track 登记一个任务，返回结束回调
//
// 检查 closed 与 wg.Add 在同一把锁内完成。
func (r *Runtime) track(op string) func() {
	if r == nil {
		panic(fmt.Errorf("%w: %s called before runtime initialization", types.ErrRuntimeClosed, op))
	}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		panic(fmt.Errorf("%w: %s called after runtime shutdown", types.ErrRuntimeClosed, op))
	}
	r.wg.Add(1)
	r.mu.RUnlock()

	r.active.Add(1)
	r.metrics.TaskStarted()

	return func() {
		r.metrics.TaskFinished()
		r.active.Add(-1)
		r.wg.Done()
	}
}

// Spawn 派发一个不关心结果的后台任务
func (r *Runtime) Spawn(fn func(ctx context.Context)) {
	done := r.track("Spawn")
	go func() {
		defer done()
		defer func() {
			if p := recover(); p != nil {
				logger.Error("后台任务 panic", "panic", p, "stack", string(debug.Stack()))
			}
		}()
		fn(r.ctx)
	}()
}

// Go 派发后台任务并返回 Future
func Go[T any](r *Runtime, fn func(ctx context.Context) (T, error)) *Future[T] {
	done := r.track("Go")
	f := newFuture[T]()
	go func() {
		defer done()
		v, err := runGuarded(r.ctx, fn)
		f.complete(v, err)
	}()
	return f
}

// BlockOn 在调用方 goroutine 上运行 fn 直到结束
//
// fn 的上下文在 ctx 结束或 Runtime 关闭时取消。
func BlockOn[T any](ctx context.Context, r *Runtime, fn func(ctx context.Context) (T, error)) (T, error) {
	done := r.track("BlockOn")
	defer done()

	if ctx == nil {
		ctx = context.Background()
	}
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(r.ctx, cancel)
	defer stop()

	return runGuarded(taskCtx, fn)
}

// runGuarded 运行 fn，把 panic 转换为错误，保证宿主进程不会因任务崩溃
func runGuarded[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("任务 panic", "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("task panic: %v", p)
		}
	}()
	return fn(ctx)
}

// Close 关闭 Runtime
//
// 取消根上下文后最多等待 ShutdownGrace；超时返回 ErrShutdownTimeout，
// 剩余任务被放弃（它们持有各自的资源，不会泄漏部分结果）。
// 重复调用返回 nil。
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()

	drained := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(drained)
	}()

	timer := r.clock.Timer(r.cfg.ShutdownGrace)
	defer timer.Stop()

	select {
	case <-drained:
		logger.Debug("runtime 已关闭")
		return nil
	case <-timer.C:
		logger.Warn("runtime 关闭超时，放弃剩余任务",
			"grace", r.cfg.ShutdownGrace,
			"abandoned", r.Active())
		return types.ErrShutdownTimeout
	}
}
