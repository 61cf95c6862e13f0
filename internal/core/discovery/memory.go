package discovery

import (
	"context"
	"net/netip"
	"slices"
	"sync"

	pkgif "github.com/dep2p/go-bridge/pkg/interfaces"
	"github.com/dep2p/go-bridge/pkg/types"
)

// Memory 进程内地址表
type Memory struct {
	mu    sync.RWMutex
	peers map[types.PeerID][]netip.AddrPort
}

// 确保实现接口
var _ pkgif.AddrDiscovery = (*Memory)(nil)

// NewMemory 创建进程内地址表
func NewMemory() *Memory {
	return &Memory{
		peers: make(map[types.PeerID][]netip.AddrPort),
	}
}

// Publish 记录节点地址，覆盖旧值
func (m *Memory) Publish(_ context.Context, peer types.PeerID, addrs []netip.AddrPort) error {
	m.mu.Lock()
	m.peers[peer] = slices.Clone(addrs)
	m.mu.Unlock()
	return nil
}

// Unpublish 删除节点
func (m *Memory) Unpublish(peer types.PeerID) {
	m.mu.Lock()
	delete(m.peers, peer)
	m.mu.Unlock()
}

// Resolve 查找节点地址
func (m *Memory) Resolve(_ context.Context, peer types.PeerID) ([]netip.AddrPort, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.peers[peer]), nil
}
