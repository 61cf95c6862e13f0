package gossip

import (
	"time"

	"golang.org/x/time/rate"
)

// Config 覆盖网络配置
type Config struct {
	// MaxMessageSize 单条消息负载上限
	MaxMessageSize int

	// SeenCacheSize 去重缓存容量
	SeenCacheSize int

	// EventBuffer 每个主题的事件缓冲区大小
	EventBuffer int

	// DialConcurrency 订阅时并发拨号的上限
	DialConcurrency int

	// SendTimeout 单帧发送超时
	SendTimeout time.Duration

	// FrameRate 每个连接每秒接收的帧数上限，0 表示不限制
	FrameRate float64

	// FrameBurst 接收限流的突发容量
	FrameBurst int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxMessageSize:  64 * 1024,
		SeenCacheSize:   4096,
		EventBuffer:     256,
		DialConcurrency: 4,
		SendTimeout:     5 * time.Second,
		FrameRate:       500,
		FrameBurst:      128,
	}
}

// withDefaults 用默认值填充未设置的字段
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.SeenCacheSize <= 0 {
		c.SeenCacheSize = def.SeenCacheSize
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	if c.DialConcurrency <= 0 {
		c.DialConcurrency = def.DialConcurrency
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = def.SendTimeout
	}
	if c.FrameRate > 0 && c.FrameBurst <= 0 {
		c.FrameBurst = def.FrameBurst
	}
	return c
}

// newLimiter 创建单个连接的接收限流器，不限制时返回 nil
func (c Config) newLimiter() *rate.Limiter {
	if c.FrameRate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.FrameRate), c.FrameBurst)
}
