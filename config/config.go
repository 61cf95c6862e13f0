// Package config 提供 go-bridge 的配置
//
// 主 Config 由各组件的子配置组成，每个子配置在独立文件中定义并
// 提供 DefaultXxxConfig 与 Validate。配置可以从 JSON 加载：
//
//	cfg, err := config.LoadFile("bridge.json")
//	if err != nil {
//	    return err
//	}
//
// JSON 中缺省的字段保留默认值。
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config 完整配置
type Config struct {
	// Runtime 后台执行器配置
	Runtime RuntimeConfig `json:"runtime"`

	// Transport 传输层配置
	Transport TransportConfig `json:"transport"`

	// Discovery 地址发现配置
	Discovery DiscoveryConfig `json:"discovery"`

	// Gossip 主题广播配置
	Gossip GossipConfig `json:"gossip"`

	// Log 日志配置
	Log LogConfig `json:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Runtime:   DefaultRuntimeConfig(),
		Transport: DefaultTransportConfig(),
		Discovery: DefaultDiscoveryConfig(),
		Gossip:    DefaultGossipConfig(),
		Log:       DefaultLogConfig(),
	}
}

// Validate 验证所有子配置
func (c *Config) Validate() error {
	if err := c.Runtime.Validate(); err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	if err := c.Gossip.Validate(); err != nil {
		return fmt.Errorf("gossip: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// FromJSON 从 JSON 解析配置，未出现的字段保留默认值
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从文件加载并验证配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToJSON 序列化为缩进的 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Clone 深拷贝配置
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Discovery.KnownPeers = make([]KnownPeer, len(c.Discovery.KnownPeers))
	for i, p := range c.Discovery.KnownPeers {
		out.Discovery.KnownPeers[i] = KnownPeer{
			PeerID: p.PeerID,
			Addrs:  append([]string(nil), p.Addrs...),
		}
	}
	return &out
}
