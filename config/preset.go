package config

import (
	"errors"
	"fmt"
	"time"
)

// 预设名称
const (
	// PresetDefault 默认配置
	PresetDefault = "default"

	// PresetLocal 仅本机回环，适合测试与单机演示
	PresetLocal = "local"

	// PresetLAN 局域网，启用 mDNS
	PresetLAN = "lan"
)

// ApplyPreset 把预设应用到 cfg
func ApplyPreset(cfg *Config, name string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	switch name {
	case PresetDefault, "":
		return nil
	case PresetLocal:
		cfg.Transport.ListenAddr = "127.0.0.1:0"
		cfg.Discovery.EnableMemory = true
		cfg.Discovery.EnableMDNS = false
		cfg.Runtime.ShutdownGrace = Duration(time.Second)
		return nil
	case PresetLAN:
		cfg.Transport.ListenAddr = "0.0.0.0:0"
		cfg.Discovery.EnableMDNS = true
		if cfg.Discovery.MDNSService == "" {
			cfg.Discovery.MDNSService = DefaultDiscoveryConfig().MDNSService
		}
		return nil
	default:
		return fmt.Errorf("unknown preset %q", name)
	}
}
