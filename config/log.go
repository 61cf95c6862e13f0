package config

import (
	"fmt"

	"github.com/dep2p/go-bridge/pkg/lib/log"
)

// LogConfig 日志配置
type LogConfig struct {
	// Level 级别，格式同 BRIDGE_LOG_LEVEL（如 "core/endpoint=debug,warn"）
	// 为空时沿用环境变量
	Level string `json:"level,omitempty"`

	// Format 输出格式 text 或 json，为空时沿用环境变量
	Format string `json:"format,omitempty"`

	// FxEvents 输出 fx 生命周期事件
	FxEvents bool `json:"fx_events"`
}

// DefaultLogConfig 返回默认配置
func DefaultLogConfig() LogConfig {
	return LogConfig{}
}

// Validate 验证配置
func (c LogConfig) Validate() error {
	if err := log.ValidateLevelSpec(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid format %q", c.Format)
	}
	return nil
}
