package discovery

import (
	"context"
	"net/netip"
	"slices"

	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-bridge/pkg/interfaces"
	"github.com/dep2p/go-bridge/pkg/types"
)

// Service 聚合多个地址来源
//
// Publish 写入所有来源；Resolve 按来源顺序合并结果并去重，
// 先添加的来源排在前面，拨号时优先尝试。
type Service struct {
	sources []pkgif.AddrDiscovery
	book    *AddressBook
}

// 确保实现接口
var _ pkgif.AddrDiscovery = (*Service)(nil)

// NewService 创建聚合服务
//
// book 总是第一个来源，其余来源按参数顺序排列。
func NewService(book *AddressBook, sources ...pkgif.AddrDiscovery) *Service {
	if book == nil {
		book = NewAddressBook()
	}
	all := make([]pkgif.AddrDiscovery, 0, len(sources)+1)
	all = append(all, book)
	for _, s := range sources {
		if s != nil {
			all = append(all, s)
		}
	}
	return &Service{sources: all, book: book}
}

// AddressBook 返回静态地址簿
func (s *Service) AddressBook() *AddressBook {
	return s.book
}

// Publish 向所有来源公布地址
func (s *Service) Publish(ctx context.Context, peer types.PeerID, addrs []netip.AddrPort) error {
	var errs error
	for _, src := range s.sources {
		errs = multierr.Append(errs, src.Publish(ctx, peer, addrs))
	}
	return errs
}

// Unpublish 从所有来源撤回
func (s *Service) Unpublish(peer types.PeerID) {
	for _, src := range s.sources {
		src.Unpublish(peer)
	}
}

// Resolve 合并所有来源的结果
//
// 单个来源失败只记录日志；全部失败且没有结果时返回合并的错误。
func (s *Service) Resolve(ctx context.Context, peer types.PeerID) ([]netip.AddrPort, error) {
	var (
		out  []netip.AddrPort
		errs error
	)
	for _, src := range s.sources {
		addrs, err := src.Resolve(ctx, peer)
		if err != nil {
			logger.Debug("地址来源解析失败", "peer", peer.ShortString(), "error", err)
			errs = multierr.Append(errs, err)
			continue
		}
		for _, a := range addrs {
			if !slices.Contains(out, a) {
				out = append(out, a)
			}
		}
	}
	if len(out) == 0 && errs != nil {
		return nil, errs
	}
	return out, nil
}
