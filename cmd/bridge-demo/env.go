package main

import (
	"os"
	"strings"

	"github.com/dep2p/go-bridge/config"
)

// ============================================================================
//                              环境变量（CLI 专用）
// ============================================================================

const envPrefix = "BRIDGE_"

// 支持的环境变量（均使用 BRIDGE_ 前缀）
const (
	envPresetName = "PRESET"
	envListenAddr = "LISTEN_ADDR"
	envEnableMDNS = "ENABLE_MDNS"
	envLogLevel   = "LOG_LEVEL"
	envLogFormat  = "LOG_FORMAT"
)

func envPreset() string {
	return os.Getenv(envPrefix + envPresetName)
}

// applyEnvOverrides 应用环境变量覆盖配置
//
// 环境变量优先级高于配置文件，但低于命令行参数。
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv(envPrefix + envListenAddr); v != "" {
		cfg.Transport.ListenAddr = v
	}
	if v := os.Getenv(envPrefix + envEnableMDNS); v != "" {
		cfg.Discovery.EnableMDNS = parseBool(v)
	}
	if v := os.Getenv(envPrefix + envLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(envPrefix + envLogFormat); v != "" {
		cfg.Log.Format = v
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
