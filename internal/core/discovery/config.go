package discovery

import (
	"fmt"

	"github.com/dep2p/go-bridge/internal/core/discovery/mdns"
	pkgif "github.com/dep2p/go-bridge/pkg/interfaces"
	"github.com/dep2p/go-bridge/pkg/types"
)

// KnownPeer 静态节点
type KnownPeer struct {
	PeerID string
	Addrs  []string
}

// Config 地址发现配置
type Config struct {
	// EnableMemory 启用进程内地址表
	EnableMemory bool

	// EnableMDNS 启用局域网 mDNS
	EnableMDNS bool

	// MDNS mDNS 参数
	MDNS mdns.Config

	// KnownPeers 预置到地址簿的节点
	KnownPeers []KnownPeer
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		EnableMemory: true,
		MDNS:         mdns.DefaultConfig(),
	}
}

// Build 按配置创建聚合服务
//
// 返回的 mdns.Discoverer 在未启用时为 nil，调用方负责关闭。
func Build(cfg Config) (*Service, *mdns.Discoverer, error) {
	book := NewAddressBook()
	for _, kp := range cfg.KnownPeers {
		peer, err := types.ParsePeerID(kp.PeerID)
		if err != nil {
			return nil, nil, fmt.Errorf("known peer %q: %w", kp.PeerID, err)
		}
		for _, a := range kp.Addrs {
			if err := book.AddString(peer, a); err != nil {
				return nil, nil, err
			}
		}
	}

	var (
		sources []pkgif.AddrDiscovery
		md      *mdns.Discoverer
	)
	if cfg.EnableMemory {
		sources = append(sources, NewMemory())
	}
	if cfg.EnableMDNS {
		md = mdns.New(cfg.MDNS)
		sources = append(sources, md)
	}
	svc := NewService(book, sources...)

	logger.Debug("地址发现已配置",
		"knownPeers", book.Len(),
		"memory", cfg.EnableMemory,
		"mdns", cfg.EnableMDNS)
	return svc, md, nil
}
