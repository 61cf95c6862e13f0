package bridge

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-bridge/config"
)

// Option 用户配置选项
type Option func(*options) error

// options 内部选项
type options struct {
	config    *config.Config
	registry  *prometheus.Registry
	fxOptions []fx.Option
}

func newOptions() *options {
	return &options{config: config.NewConfig()}
}

// WithConfig 使用完整配置
//
// 之后的选项在此配置上继续修改。
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}
		o.config = cfg.Clone()
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithPreset 应用预设（config.PresetLocal / config.PresetLAN）
func WithPreset(name string) Option {
	return func(o *options) error {
		return config.ApplyPreset(o.config, name)
	}
}

// WithListenAddr 设置 Endpoint 的 UDP 监听地址
func WithListenAddr(addr string) Option {
	return func(o *options) error {
		o.config.Transport.ListenAddr = addr
		return nil
	}
}

// WithKnownPeer 预置节点地址
func WithKnownPeer(peerID string, addrs ...string) Option {
	return func(o *options) error {
		o.config.Discovery.KnownPeers = append(o.config.Discovery.KnownPeers, config.KnownPeer{
			PeerID: peerID,
			Addrs:  addrs,
		})
		return nil
	}
}

// WithMDNS 启用或关闭局域网 mDNS
func WithMDNS(enable bool) Option {
	return func(o *options) error {
		o.config.Discovery.EnableMDNS = enable
		return nil
	}
}

// WithMetricsRegistry 把指标注册到 reg，而不是新建的独立 Registry
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(o *options) error {
		o.registry = reg
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
