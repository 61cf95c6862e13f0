package discovery

import (
	"context"

	"go.uber.org/fx"

	pkgif "github.com/dep2p/go-bridge/pkg/interfaces"
)

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Service   *Service
	Discovery pkgif.AddrDiscovery
}

// ProvideService 创建地址发现服务，mDNS 在应用停止时关闭
func ProvideService(lc fx.Lifecycle, cfg Config) (ModuleOutput, error) {
	svc, md, err := Build(cfg)
	if err != nil {
		return ModuleOutput{}, err
	}
	if md != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return md.Close()
			},
		})
	}
	return ModuleOutput{Service: svc, Discovery: svc}, nil
}

// Module 返回地址发现的 Fx 模块
func Module() fx.Option {
	return fx.Module("discovery",
		fx.Provide(ProvideService),
	)
}
