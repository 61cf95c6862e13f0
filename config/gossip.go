package config

import (
	"errors"
	"time"
)

// GossipConfig 主题广播配置
type GossipConfig struct {
	// MaxMessageSize 单条消息上限（字节）
	MaxMessageSize int `json:"max_message_size"`

	// SeenCacheSize 消息去重缓存容量
	SeenCacheSize int `json:"seen_cache_size"`

	// EventBuffer 每个主题的事件缓冲
	EventBuffer int `json:"event_buffer"`

	// DialConcurrency 订阅时并发拨号上限
	DialConcurrency int `json:"dial_concurrency"`

	// SendTimeout 单帧发送超时
	SendTimeout Duration `json:"send_timeout"`

	// FrameRate 每个连接每秒接收的帧数上限（0 = 不限制）
	FrameRate float64 `json:"frame_rate"`

	// FrameBurst 接收限流的突发容量
	FrameBurst int `json:"frame_burst"`
}

// DefaultGossipConfig 返回默认配置
func DefaultGossipConfig() GossipConfig {
	return GossipConfig{
		MaxMessageSize:  64 * 1024,
		SeenCacheSize:   4096,
		EventBuffer:     256,
		DialConcurrency: 4,
		SendTimeout:     Duration(5 * time.Second),
		FrameRate:       500,
		FrameBurst:      128,
	}
}

// Validate 验证配置
func (c GossipConfig) Validate() error {
	if c.MaxMessageSize <= 0 {
		return errors.New("max_message_size must be positive")
	}
	if c.SeenCacheSize <= 0 {
		return errors.New("seen_cache_size must be positive")
	}
	if c.EventBuffer <= 0 {
		return errors.New("event_buffer must be positive")
	}
	if c.DialConcurrency <= 0 {
		return errors.New("dial_concurrency must be positive")
	}
	if c.SendTimeout <= 0 {
		return errors.New("send_timeout must be positive")
	}
	if c.FrameRate < 0 {
		return errors.New("frame_rate must not be negative")
	}
	if c.FrameRate > 0 && c.FrameBurst <= 0 {
		return errors.New("frame_burst must be positive when frame_rate is set")
	}
	return nil
}
