package bridge

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-bridge/config"
	"github.com/dep2p/go-bridge/internal/core/discovery"
	"github.com/dep2p/go-bridge/internal/core/metrics"
	"github.com/dep2p/go-bridge/internal/core/runtime"
	pkgif "github.com/dep2p/go-bridge/pkg/interfaces"
	"github.com/dep2p/go-bridge/pkg/lib/log"
)

var logger = log.Logger("bridge")

// Version 当前版本
const Version = "v0.1.0"

// stopSlack 在 Runtime 宽限期之外留给其余模块关闭的时间
const stopSlack = time.Second

// Bridge 一个宿主与其后台网络栈
//
// 同一宿主内的所有门面对象共享 Bridge 的 Runtime、地址发现与指标。
type Bridge struct {
	cfg  *config.Config
	host pkgif.Host
	app  *fx.App

	rt        *runtime.Runtime
	discovery *discovery.Service
	metrics   *metrics.Metrics
	registry  *prometheus.Registry

	closeOnce sync.Once
	closeErr  error
}

// New 创建并启动 Bridge
//
// host 是宿主对象系统，异步结果通过它投递回宿主线程。
func New(ctx context.Context, host pkgif.Host, opts ...Option) (*Bridge, error) {
	if host == nil {
		return nil, fmt.Errorf("host is nil")
	}

	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := log.Configure(o.config.Log.Level, o.config.Log.Format); err != nil {
		return nil, err
	}

	b := &Bridge{
		cfg:  o.config,
		host: host,
	}
	app, err := buildFxApp(o, b)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	b.app = app

	if err := app.Start(ctx); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	logger.Info("bridge 已启动", "version", Version, "listen", b.cfg.Transport.ListenAddr)
	return b, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              门面对象
// ════════════════════════════════════════════════════════════════════════════

// NewEndpoint 创建未绑定的 Endpoint 并登记到宿主
//
// 只能在宿主线程上调用。
func (b *Bridge) NewEndpoint() *Endpoint {
	e := newEndpoint(b)
	b.host.Register(e)
	return e
}

// NewGossip 创建未 spawn 的 Gossip 并登记到宿主
func (b *Bridge) NewGossip() *Gossip {
	g := newGossip(b)
	b.host.Register(g)
	return g
}

// NewRouter 创建未绑定的 Router 并登记到宿主
func (b *Bridge) NewRouter() *Router {
	r := newRouter(b)
	b.host.Register(r)
	return r
}

// ════════════════════════════════════════════════════════════════════════════
//                              访问器
// ════════════════════════════════════════════════════════════════════════════

// Config 返回配置副本
func (b *Bridge) Config() *config.Config {
	return b.cfg.Clone()
}

// Host 返回宿主对象系统
func (b *Bridge) Host() pkgif.Host {
	return b.host
}

// Runtime 返回后台执行器
func (b *Bridge) Runtime() *runtime.Runtime {
	return b.rt
}

// Discovery 返回地址发现服务
func (b *Bridge) Discovery() *discovery.Service {
	return b.discovery
}

// MetricsHandler 返回 Prometheus 指标的 HTTP 处理器
func (b *Bridge) MetricsHandler() http.Handler {
	return metrics.Handler(b.registry)
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Close 停止 Bridge
//
// 关闭 Runtime（等待进行中的任务最多 ShutdownGrace）与地址发现。
// 已绑定的 Endpoint 需要各自 Close。重复调用返回第一次的结果。
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		timeout := b.cfg.Runtime.ShutdownGrace.Duration() + stopSlack
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		b.closeErr = b.app.Stop(ctx)
		if b.closeErr != nil {
			logger.Warn("bridge 关闭时出错", "error", b.closeErr)
			return
		}
		logger.Info("bridge 已关闭")
	})
	return b.closeErr
}
