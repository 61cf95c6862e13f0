package interfaces

import (
	"context"
	"net/netip"

	"github.com/dep2p/go-bridge/pkg/types"
)

// ============================================================================
//                              地址发现
// ============================================================================

// AddrDiscovery 节点地址发现
//
// 节点只以公钥标识，拨号前需要把 PeerID 解析为 UDP 地址。
// Endpoint 绑定后通过 Publish 公布自身地址，拨号时通过 Resolve 查找对端。
type AddrDiscovery interface {
	// Publish 公布本地节点地址
	Publish(ctx context.Context, peer types.PeerID, addrs []netip.AddrPort) error

	// Unpublish 撤回本地节点地址
	Unpublish(peer types.PeerID)

	// Resolve 查找节点地址
	//
	// 找不到时返回空切片与 nil 错误。
	Resolve(ctx context.Context, peer types.PeerID) ([]netip.AddrPort, error)
}
