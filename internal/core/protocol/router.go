package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/dep2p/go-bridge/internal/core/runtime"
	"github.com/dep2p/go-bridge/internal/core/transport/quic"
	"github.com/dep2p/go-bridge/pkg/lib/log"
)

var logger = log.Logger("core/protocol")

// CloseCodeUnsupportedProtocol 没有处理器时关闭连接使用的应用错误码
const CloseCodeUnsupportedProtocol = 0x10

// Router 协议路由器
type Router struct {
	ep       *quic.Endpoint
	rt       *runtime.Runtime
	registry *Registry

	mu       sync.Mutex
	spawned  bool
	shutdown bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewRouter 创建路由器
func NewRouter(ep *quic.Endpoint, rt *runtime.Runtime) *Router {
	return &Router{
		ep:       ep,
		rt:       rt,
		registry: NewRegistry(),
		done:     make(chan struct{}),
	}
}

// Endpoint 返回路由器接管的 Endpoint
func (r *Router) Endpoint() *quic.Endpoint {
	return r.ep
}

// Registry 返回协议注册表
func (r *Router) Registry() *Registry {
	return r.registry
}

// Accept 注册 alpn 的处理器，并让 Endpoint 在握手时接受该 ALPN
func (r *Router) Accept(alpn string, h Handler) error {
	r.mu.Lock()
	shutdown := r.shutdown
	r.mu.Unlock()
	if shutdown {
		return ErrRouterShutdown
	}

	if err := r.registry.Register(alpn, h); err != nil {
		return fmt.Errorf("register %q: %w", alpn, err)
	}
	r.ep.AddALPN(alpn)
	logger.Debug("已注册协议", "alpn", alpn)
	return nil
}

// Spawn 启动接受循环
func (r *Router) Spawn() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shutdown {
		return ErrRouterShutdown
	}
	if r.spawned {
		return ErrAlreadySpawned
	}
	r.spawned = true

	ctx, cancel := context.WithCancel(r.rt.Context())
	r.cancel = cancel
	r.rt.Spawn(func(context.Context) {
		defer close(r.done)
		r.acceptLoop(ctx)
	})

	logger.Info("路由器已启动", "peer", r.ep.ID().ShortString(), "alpns", r.registry.ALPNs())
	return nil
}

// acceptLoop 接受入站连接并按 ALPN 分发
func (r *Router) acceptLoop(ctx context.Context) {
	for {
		conn, err := r.ep.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, quic.ErrEndpointClosed) {
				return
			}
			logger.Warn("接受连接失败", "error", err)
			continue
		}

		h, ok := r.registry.Get(conn.ALPN())
		if !ok {
			logger.Debug("没有处理器，关闭连接", "alpn", conn.ALPN(), "peer", conn.RemotePeer().ShortString())
			_ = conn.Close(CloseCodeUnsupportedProtocol, "unsupported protocol")
			continue
		}

		r.rt.Spawn(func(context.Context) {
			if err := h.Accept(ctx, conn); err != nil && ctx.Err() == nil {
				logger.Debug("协议处理器返回错误",
					"alpn", conn.ALPN(),
					"peer", conn.RemotePeer().ShortString(),
					"error", err)
			}
		})
	}
}

// IsShutdown 检查是否已关闭
func (r *Router) IsShutdown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shutdown
}

// Stop 停止接受循环，不关闭处理器
//
// 用于把 Endpoint 交给另一个路由器，处理器仍可被新路由器使用。
func (r *Router) Stop(ctx context.Context) error {
	_, err := r.stop(ctx)
	return err
}

// stop 标记关闭并等待接受循环退出，已关闭时返回 false
func (r *Router) stop(ctx context.Context) (bool, error) {
	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return false, nil
	}
	r.shutdown = true
	spawned := r.spawned
	cancel := r.cancel
	r.mu.Unlock()

	if spawned {
		cancel()
		select {
		case <-r.done:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
	return true, nil
}

// Shutdown 停止接受循环并关闭所有处理器
//
// Endpoint 本身不会被关闭。重复调用返回 nil。
func (r *Router) Shutdown(ctx context.Context) error {
	first, err := r.stop(ctx)
	if !first || err != nil {
		return err
	}

	var errs error
	for alpn, h := range r.registry.snapshot() {
		if err := h.Shutdown(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("shutdown %q: %w", alpn, err))
		}
	}

	logger.Info("路由器已关闭", "peer", r.ep.ID().ShortString())
	return errs
}
