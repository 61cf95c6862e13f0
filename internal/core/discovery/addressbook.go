// Package discovery 实现节点地址发现
//
// 节点只以公钥寻址，拨号前需要把 PeerID 解析成 UDP 地址。
// 本包提供三种来源并由 Service 聚合：
//   - AddressBook: 手工添加的静态地址（AddPeerAddr / 配置文件）
//   - Memory: 进程内共享表，同一个 Bridge 创建的 Endpoint 互相可见
//   - mdns.Discoverer: 局域网 mDNS 广播
package discovery

import (
	"context"
	"fmt"
	"net/netip"
	"slices"
	"sync"

	pkgif "github.com/dep2p/go-bridge/pkg/interfaces"
	"github.com/dep2p/go-bridge/pkg/lib/log"
	"github.com/dep2p/go-bridge/pkg/types"
)

var logger = log.Logger("core/discovery")

// AddressBook 静态地址簿
//
// 只提供解析；Publish 不会把本地节点写入地址簿。
type AddressBook struct {
	mu      sync.RWMutex
	entries map[types.PeerID][]netip.AddrPort
}

// 确保实现接口
var _ pkgif.AddrDiscovery = (*AddressBook)(nil)

// NewAddressBook 创建地址簿
func NewAddressBook() *AddressBook {
	return &AddressBook{
		entries: make(map[types.PeerID][]netip.AddrPort),
	}
}

// Add 添加地址，已存在的地址被忽略
func (ab *AddressBook) Add(peer types.PeerID, addrs ...netip.AddrPort) {
	if len(addrs) == 0 {
		return
	}

	ab.mu.Lock()
	defer ab.mu.Unlock()

	existing := ab.entries[peer]
	for _, a := range addrs {
		if !a.IsValid() || slices.Contains(existing, a) {
			continue
		}
		existing = append(existing, a)
	}
	ab.entries[peer] = existing
}

// AddString 解析 "ip:port" 并添加
func (ab *AddressBook) AddString(peer types.PeerID, addr string) error {
	ap, err := netip.ParseAddrPort(addr)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidAddr, addr, err)
	}
	ab.Add(peer, ap)
	return nil
}

// Remove 删除节点的全部地址
func (ab *AddressBook) Remove(peer types.PeerID) {
	ab.mu.Lock()
	delete(ab.entries, peer)
	ab.mu.Unlock()
}

// Len 返回已知节点数量
func (ab *AddressBook) Len() int {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return len(ab.entries)
}

// Publish 地址簿只记录手工添加的地址
func (ab *AddressBook) Publish(context.Context, types.PeerID, []netip.AddrPort) error {
	return nil
}

// Unpublish 无操作
func (ab *AddressBook) Unpublish(types.PeerID) {}

// Resolve 返回节点地址副本
func (ab *AddressBook) Resolve(_ context.Context, peer types.PeerID) ([]netip.AddrPort, error) {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return slices.Clone(ab.entries[peer]), nil
}
