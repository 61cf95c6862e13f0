package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-bridge/config"
	"github.com/dep2p/go-bridge/internal/core/discovery"
	"github.com/dep2p/go-bridge/internal/core/discovery/mdns"
	"github.com/dep2p/go-bridge/internal/core/metrics"
	"github.com/dep2p/go-bridge/internal/core/runtime"
)

// buildFxApp 组装内部模块
//
// 加载顺序（按依赖）：Metrics → Runtime → Discovery，
// 然后把各组件注入 Bridge。
func buildFxApp(o *options, b *Bridge) (*fx.App, error) {
	cfg := o.config

	modules := []fx.Option{
		fx.Supply(cfg),
		fx.Provide(runtimeConfig, discoveryConfig),
	}

	// ════════════════════════════════════════════════════════════════════════
	// 指标
	// ════════════════════════════════════════════════════════════════════════
	if o.registry != nil {
		modules = append(modules,
			fx.Supply(o.registry),
			fx.Provide(func(reg *prometheus.Registry) *metrics.Metrics {
				return metrics.New(reg)
			}),
		)
	} else {
		modules = append(modules, metrics.Module)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 核心模块
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		runtime.Module(),
		discovery.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 用户扩展
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, o.fxOptions...)

	// ════════════════════════════════════════════════════════════════════════
	// 注入与日志
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		fx.Populate(&b.rt, &b.discovery, &b.metrics, &b.registry),
		fx.WithLogger(fxEventLogger(cfg.Log.FxEvents)),
	)

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// fxEventLogger 默认丢弃 fx 事件，开启时输出到开发模式的 zap
func fxEventLogger(enabled bool) func() fxevent.Logger {
	return func() fxevent.Logger {
		if !enabled {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}
		l, err := zap.NewDevelopment()
		if err != nil {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}
		return &fxevent.ZapLogger{Logger: l}
	}
}

func runtimeConfig(cfg *config.Config) runtime.Config {
	return runtime.Config{
		ShutdownGrace: cfg.Runtime.ShutdownGrace.Duration(),
	}
}

func discoveryConfig(cfg *config.Config) discovery.Config {
	md := mdns.DefaultConfig()
	if cfg.Discovery.MDNSService != "" {
		md.Service = cfg.Discovery.MDNSService
	}

	known := make([]discovery.KnownPeer, 0, len(cfg.Discovery.KnownPeers))
	for _, p := range cfg.Discovery.KnownPeers {
		known = append(known, discovery.KnownPeer{PeerID: p.PeerID, Addrs: p.Addrs})
	}

	return discovery.Config{
		EnableMemory: cfg.Discovery.EnableMemory,
		EnableMDNS:   cfg.Discovery.EnableMDNS,
		MDNS:         md,
		KnownPeers:   known,
	}
}
