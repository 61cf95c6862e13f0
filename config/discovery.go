package config

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/dep2p/go-bridge/pkg/types"
)

// KnownPeer 已知节点
//
// 启动时写入地址簿，Connect 无需其他发现机制即可找到这些节点。
type KnownPeer struct {
	// PeerID base58 编码的节点 ID
	PeerID string `json:"peer_id"`

	// Addrs 节点的 UDP 地址，格式 "ip:port"
	Addrs []string `json:"addrs"`
}

// DiscoveryConfig 地址发现配置
type DiscoveryConfig struct {
	// EnableMemory 启用进程内地址表（同进程内的多个 Endpoint 互相可见）
	EnableMemory bool `json:"enable_memory"`

	// EnableMDNS 启用局域网 mDNS
	EnableMDNS bool `json:"enable_mdns"`

	// MDNSService mDNS 服务名
	MDNSService string `json:"mdns_service,omitempty"`

	// KnownPeers 已知节点
	KnownPeers []KnownPeer `json:"known_peers,omitempty"`
}

// DefaultDiscoveryConfig 返回默认配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		EnableMemory: true,
		MDNSService:  "_bridge._udp",
	}
}

// Validate 验证配置
func (c DiscoveryConfig) Validate() error {
	if c.EnableMDNS && c.MDNSService == "" {
		return errors.New("mdns_service is required when mdns is enabled")
	}
	for i, p := range c.KnownPeers {
		if _, err := types.ParsePeerID(p.PeerID); err != nil {
			return fmt.Errorf("known_peers[%d]: %w", i, err)
		}
		if len(p.Addrs) == 0 {
			return fmt.Errorf("known_peers[%d]: no addresses", i)
		}
		for _, a := range p.Addrs {
			if _, err := netip.ParseAddrPort(a); err != nil {
				return fmt.Errorf("known_peers[%d]: %w", i, err)
			}
		}
	}
	return nil
}
