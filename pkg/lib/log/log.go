// Package log 提供 go-bridge 统一日志接口
//
// 基于 Go 标准库 log/slog 封装，按组件输出结构化日志。
//
// 环境变量:
//
//	# 所有组件为 info，core/endpoint 组件为 debug
//	BRIDGE_LOG_LEVEL=core/endpoint=debug,info
//
//	# 使用 JSON 格式输出
//	BRIDGE_LOG_FORMAT=json
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var (
	outputMu sync.RWMutex
	output   io.Writer = os.Stderr

	envOnce sync.Once
	envCfg  *envConfig
)

// ============================================================================
//                              环境变量配置
// ============================================================================

// envConfig 从环境变量解析出的日志配置
type envConfig struct {
	defaultLevel    slog.Level
	componentLevels map[string]slog.Level
	json            bool
}

// levelFor 获取组件的日志级别
func (c *envConfig) levelFor(component string) slog.Level {
	if level, ok := c.componentLevels[component]; ok {
		return level
	}
	return c.defaultLevel
}

func loadEnv() *envConfig {
	envOnce.Do(func() {
		envCfg = parseEnv(os.Getenv("BRIDGE_LOG_LEVEL"), os.Getenv("BRIDGE_LOG_FORMAT"))
	})
	return envCfg
}

// parseEnv 解析日志级别配置字符串
// 格式: component=level,component=level,defaultLevel
func parseEnv(levelStr, formatStr string) *envConfig {
	cfg := &envConfig{
		defaultLevel:    slog.LevelInfo,
		componentLevels: make(map[string]slog.Level),
		json:            strings.EqualFold(formatStr, "json"),
	}

	for _, part := range strings.Split(levelStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if k, v, ok := strings.Cut(part, "="); ok {
			if level, ok := ParseLevel(v); ok {
				cfg.componentLevels[strings.TrimSpace(k)] = level
			}
			continue
		}
		if level, ok := ParseLevel(part); ok {
			cfg.defaultLevel = level
		}
	}
	return cfg
}

// ParseLevel 解析日志级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ============================================================================
//                              输出控制
// ============================================================================

// dynamicWriter 每次写入时查找当前输出目标
// 这样即使在 logger 创建后修改输出，也能生效
type dynamicWriter struct{}

func (dynamicWriter) Write(p []byte) (int, error) {
	outputMu.RLock()
	w := output
	outputMu.RUnlock()
	return w.Write(p)
}

// SetOutput 设置日志输出目标
//
// 常用于测试中捕获日志，或将日志输出到文件。
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// SetLevel 覆盖默认日志级别（组件级别配置仍然优先）
func SetLevel(level slog.Level) {
	cfg := loadEnv()
	outputMu.Lock()
	cfg.defaultLevel = level
	outputMu.Unlock()
}

// Configure 用与环境变量相同的格式覆盖日志配置
//
// level 为空时保留当前级别，format 为空时保留当前格式。
func Configure(level, format string) error {
	if err := ValidateLevelSpec(level); err != nil {
		return err
	}
	switch strings.ToLower(format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	cfg := loadEnv()
	parsed := parseEnv(level, format)

	outputMu.Lock()
	defer outputMu.Unlock()
	if level != "" {
		cfg.defaultLevel = parsed.defaultLevel
		cfg.componentLevels = parsed.componentLevels
	}
	if format != "" {
		cfg.json = parsed.json
	}
	return nil
}

// ValidateLevelSpec 检查级别配置字符串中的每一项
func ValidateLevelSpec(spec string) error {
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name := part
		if k, v, ok := strings.Cut(part, "="); ok {
			if strings.TrimSpace(k) == "" {
				return fmt.Errorf("empty component in %q", part)
			}
			name = v
		}
		if _, ok := ParseLevel(name); !ok {
			return fmt.Errorf("unknown log level %q", name)
		}
	}
	return nil
}

func handlerFor(component string) slog.Handler {
	cfg := loadEnv()

	outputMu.RLock()
	level := cfg.levelFor(component)
	outputMu.RUnlock()

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}

	var h slog.Handler
	if cfg.json {
		h = slog.NewJSONHandler(dynamicWriter{}, opts)
	} else {
		h = slog.NewTextHandler(dynamicWriter{}, opts)
	}
	return h.WithAttrs([]slog.Attr{slog.String("component", component)})
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时才解析级别和输出，支持在运行时切换输出目标。
//
// 使用方式：
//
//	var logger = log.Logger("core/endpoint")
//	logger.Info("endpoint bound", "peer", id)
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) slog() *slog.Logger {
	return slog.New(handlerFor(l.component))
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.slog().Debug(msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.slog().Info(msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.slog().Warn(msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.slog().Error(msg, args...)
}

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slog().DebugContext(ctx, msg, args...)
}

// WarnContext 带 context 的 Warn 日志
func (l *LazyLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slog().WarnContext(ctx, msg, args...)
}

// With 添加额外的属性
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return l.slog().With(args...)
}

// ============================================================================
//                              工具函数
// ============================================================================

// TruncateID 安全截取 ID 用于日志显示
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}
