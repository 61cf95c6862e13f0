package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Registry *prometheus.Registry
	Metrics  *Metrics
}

// ProvideMetrics 创建独立的 Registry 与指标集合
//
// 不使用 prometheus 全局 Registry，同一进程内可以创建多个 Bridge。
func ProvideMetrics() ModuleOutput {
	reg := prometheus.NewRegistry()
	return ModuleOutput{
		Registry: reg,
		Metrics:  New(reg),
	}
}

// Handler 返回暴露 reg 的 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Module 是 metrics 的 Fx 模块
var Module = fx.Module("metrics",
	fx.Provide(ProvideMetrics),
)
