package config

import (
	"errors"
	"time"
)

// RuntimeConfig 后台执行器配置
type RuntimeConfig struct {
	// ShutdownGrace 关闭时等待后台任务结束的时间
	ShutdownGrace Duration `json:"shutdown_grace"`
}

// DefaultRuntimeConfig 返回默认配置
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		ShutdownGrace: Duration(5 * time.Second),
	}
}

// Validate 验证配置
func (c RuntimeConfig) Validate() error {
	if c.ShutdownGrace <= 0 {
		return errors.New("shutdown_grace must be positive")
	}
	return nil
}
