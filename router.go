package bridge

import (
	"context"
	"fmt"

	"github.com/dep2p/go-bridge/internal/core/endpoint"
	"github.com/dep2p/go-bridge/internal/core/handle"
	"github.com/dep2p/go-bridge/internal/core/protocol"
	"github.com/dep2p/go-bridge/internal/protocol/gossip"
)

// Router 宿主侧的协议路由器
//
// 接管 Endpoint 的入站连接，按协商的 ALPN 分发给协议处理器。
// 绑定后 Endpoint.AcceptXxx 与路由器会竞争同一批入站连接。
type Router struct {
	object

	handle *handle.Shared[*protocol.Router]
}

func newRouter(b *Bridge) *Router {
	r := &Router{handle: handle.New[*protocol.Router]("router")}
	r.init(b)
	return r
}

// BindBlocking 在 ep 上启动路由器，把 gossip 的协议注册进去
//
// ep 未绑定或 g 未 spawn 时返回 ErrNotInitialized。已绑定时覆盖并
// 记录警告，旧路由器停止接受连接，但不关闭其协议处理器。
func (r *Router) BindBlocking(ctx context.Context, ep *Endpoint, g *Gossip) error {
	_, err := blocking(ctx, &r.object, func(ctx context.Context) (Unit, error) {
		qep, err := endpoint.Get(ep.handle)
		if err != nil {
			return Unit{}, err
		}
		ov, err := g.getOverlay()
		if err != nil {
			return Unit{}, err
		}

		router := protocol.NewRouter(qep, r.b.rt)
		if err := router.Accept(gossip.ALPN, ov.Handler()); err != nil {
			return Unit{}, err
		}
		if err := router.Spawn(); err != nil {
			return Unit{}, err
		}
		if old, ok := r.handle.Take(); ok {
			logger.Warn("Router 已绑定，将被覆盖")
			if err := old.Stop(ctx); err != nil {
				logger.Debug("停止旧路由器失败", "error", err)
			}
		}
		r.handle.Store(router)
		return Unit{}, nil
	})
	return err
}

// IsBound 是否已绑定
func (r *Router) IsBound() bool {
	return r.handle.IsSet()
}

// Shutdown 停止路由器并关闭已注册的协议处理器
func (r *Router) Shutdown(ctx context.Context) error {
	router, ok := r.handle.Take()
	if !ok {
		return nil
	}
	if err := router.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown router: %w", err)
	}
	return nil
}
