package runtime

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-bridge/internal/core/metrics"
)

// Params Runtime 依赖参数
type Params struct {
	fx.In

	Config  Config
	Metrics *metrics.Metrics `optional:"true"`
}

// ProvideRuntime 创建 Runtime
func ProvideRuntime(p Params) *Runtime {
	return New(p.Config, WithMetrics(p.Metrics))
}

// registerLifecycle 在应用停止时关闭 Runtime
func registerLifecycle(lc fx.Lifecycle, r *Runtime) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return r.Close()
		},
	})
}

// Module 返回 Runtime 的 Fx 模块
func Module() fx.Option {
	return fx.Module("runtime",
		fx.Provide(ProvideRuntime),
		fx.Invoke(registerLifecycle),
	)
}
