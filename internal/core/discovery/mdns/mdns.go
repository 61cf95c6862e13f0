// Package mdns 通过局域网 mDNS 公布与查找节点地址
//
// 每个公布的节点对应一个 mDNS 服务实例，TXT 记录携带：
//
//	id=<base58 PeerID>
//	addrs=<ip:port>,<ip:port>,...
//
// 单条 TXT 不超过 255 字节，地址过多时拆成多条 addrs= 记录。
package mdns

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"

	pkgif "github.com/dep2p/go-bridge/pkg/interfaces"
	"github.com/dep2p/go-bridge/pkg/lib/log"
	"github.com/dep2p/go-bridge/pkg/types"
)

var logger = log.Logger("core/discovery/mdns")

// ============================================================================
//                              配置
// ============================================================================

// Config mDNS 配置
type Config struct {
	// Service 服务标签（区分不同网络）
	Service string

	// Domain 域名
	Domain string

	// QueryTimeout 单次查询超时
	QueryTimeout time.Duration

	// CacheTTL 查询结果缓存时间
	CacheTTL time.Duration

	// Interface 指定网卡，空表示默认
	Interface string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Service:      "_bridge._udp",
		Domain:       "local.",
		QueryTimeout: 2 * time.Second,
		CacheTTL:     time.Minute,
	}
}

// ============================================================================
//                              Discoverer
// ============================================================================

type cacheEntry struct {
	addrs    []netip.AddrPort
	lastSeen time.Time
}

// Discoverer mDNS 地址发现
type Discoverer struct {
	cfg Config

	mu      sync.Mutex
	servers map[types.PeerID]*mdns.Server
	cache   map[types.PeerID]cacheEntry

	// queryMu 串行化查询，并发 Resolve 共享同一轮结果
	queryMu sync.Mutex
}

// 确保实现接口
var _ pkgif.AddrDiscovery = (*Discoverer)(nil)

// New 创建 mDNS 发现器
func New(cfg Config) *Discoverer {
	def := DefaultConfig()
	if cfg.Service == "" {
		cfg.Service = def.Service
	}
	if cfg.Domain == "" {
		cfg.Domain = def.Domain
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = def.QueryTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	return &Discoverer{
		cfg:     cfg,
		servers: make(map[types.PeerID]*mdns.Server),
		cache:   make(map[types.PeerID]cacheEntry),
	}
}

// Publish 为节点启动 mDNS 服务
//
// 同一节点再次公布时替换旧服务。
func (d *Discoverer) Publish(_ context.Context, peer types.PeerID, addrs []netip.AddrPort) error {
	if len(addrs) == 0 {
		return nil
	}

	var ips []net.IP
	for _, a := range addrs {
		if a.Addr().IsLoopback() {
			continue
		}
		ips = append(ips, a.Addr().AsSlice())
	}
	if len(ips) == 0 {
		// 只有回环地址时局域网无法拨入
		logger.Debug("没有可公布的局域网地址", "peer", peer.ShortString())
		return nil
	}

	instance := fmt.Sprintf("bridge-%s", peer.ShortString())
	service, err := mdns.NewMDNSService(
		instance,
		d.cfg.Service,
		d.cfg.Domain,
		"",
		int(addrs[0].Port()),
		ips,
		buildTXTRecords(peer.String(), addrs),
	)
	if err != nil {
		return fmt.Errorf("创建 mDNS 服务失败: %w", err)
	}

	serverCfg := &mdns.Config{Zone: service}
	if d.cfg.Interface != "" {
		iface, err := net.InterfaceByName(d.cfg.Interface)
		if err != nil {
			logger.Warn("找不到指定接口", "interface", d.cfg.Interface, "error", err)
		} else {
			serverCfg.Iface = iface
		}
	}

	server, err := mdns.NewServer(serverCfg)
	if err != nil {
		return fmt.Errorf("创建 mDNS 服务器失败: %w", err)
	}

	d.mu.Lock()
	old := d.servers[peer]
	d.servers[peer] = server
	d.mu.Unlock()

	if old != nil {
		_ = old.Shutdown()
	}

	logger.Debug("mDNS 服务已启动", "instance", instance, "service", d.cfg.Service, "ips", len(ips))
	return nil
}

// Unpublish 停止节点的 mDNS 服务
func (d *Discoverer) Unpublish(peer types.PeerID) {
	d.mu.Lock()
	server := d.servers[peer]
	delete(d.servers, peer)
	d.mu.Unlock()

	if server != nil {
		_ = server.Shutdown()
	}
}

// Resolve 查找节点地址
//
// 缓存未命中或已过期时执行一次查询，查询时长受 ctx 截止时间约束。
func (d *Discoverer) Resolve(ctx context.Context, peer types.PeerID) ([]netip.AddrPort, error) {
	if addrs, ok := d.cached(peer); ok {
		return addrs, nil
	}

	d.queryMu.Lock()
	defer d.queryMu.Unlock()

	// 等待期间可能已由其他查询填充
	if addrs, ok := d.cached(peer); ok {
		return addrs, nil
	}
	if err := d.query(ctx); err != nil {
		return nil, err
	}

	addrs, _ := d.cached(peer)
	return addrs, nil
}

// Close 停止所有 mDNS 服务
func (d *Discoverer) Close() error {
	d.mu.Lock()
	servers := d.servers
	d.servers = make(map[types.PeerID]*mdns.Server)
	d.mu.Unlock()

	for _, s := range servers {
		_ = s.Shutdown()
	}
	return nil
}

func (d *Discoverer) cached(peer types.PeerID) ([]netip.AddrPort, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.cache[peer]
	if !ok {
		return nil, false
	}
	if time.Since(e.lastSeen) > d.cfg.CacheTTL {
		delete(d.cache, peer)
		return nil, false
	}
	return slices.Clone(e.addrs), true
}

// query 执行一次 mDNS 查询并更新缓存
func (d *Discoverer) query(ctx context.Context) error {
	timeout := d.cfg.QueryTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return ctx.Err()
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	params := &mdns.QueryParam{
		Service:             d.cfg.Service,
		Domain:              d.cfg.Domain,
		Timeout:             timeout,
		Entries:             entries,
		DisableIPv6:         true,
		WantUnicastResponse: true,
	}
	if d.cfg.Interface != "" {
		if iface, err := net.InterfaceByName(d.cfg.Interface); err == nil {
			params.Interface = iface
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			d.handleEntry(entry)
		}
	}()

	err := mdns.Query(params)
	close(entries)
	<-done

	if err != nil {
		return fmt.Errorf("mDNS 查询失败: %w", err)
	}
	return nil
}

// handleEntry 解析服务条目并写入缓存
func (d *Discoverer) handleEntry(entry *mdns.ServiceEntry) {
	peer, addrs, ok := parseEntry(entry)
	if !ok {
		return
	}

	d.mu.Lock()
	d.cache[peer] = cacheEntry{addrs: addrs, lastSeen: time.Now()}
	d.mu.Unlock()

	logger.Debug("mDNS 发现节点", "peer", peer.ShortString(), "addrs", len(addrs))
}

// ============================================================================
//                              TXT 编解码
// ============================================================================

const (
	txtKeyID    = "id="
	txtKeyAddrs = "addrs="
	txtMaxLen   = 255
)

// buildTXTRecords 构建满足单条 255 字节限制的 TXT 记录
func buildTXTRecords(peer string, addrs []netip.AddrPort) []string {
	txt := []string{txtKeyID + peer}

	cur := txtKeyAddrs
	flush := func() {
		if cur != txtKeyAddrs {
			txt = append(txt, cur)
		}
		cur = txtKeyAddrs
	}

	for _, a := range addrs {
		s := a.String()
		next := s
		if cur != txtKeyAddrs {
			next = "," + s
		}
		if len(cur)+len(next) > txtMaxLen {
			flush()
			next = s
		}
		cur += next
	}
	flush()
	return txt
}

// parseEntry 从服务条目中提取 PeerID 与地址
//
// TXT 中没有地址时回退到 A 记录加服务端口。
func parseEntry(entry *mdns.ServiceEntry) (types.PeerID, []netip.AddrPort, bool) {
	if entry == nil {
		return types.EmptyPeerID, nil, false
	}

	var (
		peer  types.PeerID
		addrs []netip.AddrPort
	)
	for _, field := range entry.InfoFields {
		switch {
		case strings.HasPrefix(field, txtKeyID):
			id, err := types.ParsePeerID(strings.TrimPrefix(field, txtKeyID))
			if err != nil {
				logger.Debug("解析 PeerID 失败", "field", field, "error", err)
				continue
			}
			peer = id
		case strings.HasPrefix(field, txtKeyAddrs):
			for _, s := range strings.Split(strings.TrimPrefix(field, txtKeyAddrs), ",") {
				ap, err := netip.ParseAddrPort(s)
				if err != nil || slices.Contains(addrs, ap) {
					continue
				}
				addrs = append(addrs, ap)
			}
		}
	}

	if len(addrs) == 0 && entry.AddrV4 != nil && entry.Port > 0 {
		if ip, ok := netip.AddrFromSlice(entry.AddrV4); ok {
			addrs = append(addrs, netip.AddrPortFrom(ip.Unmap(), uint16(entry.Port)))
		}
	}

	if peer.IsEmpty() || len(addrs) == 0 {
		return types.EmptyPeerID, nil, false
	}
	return peer, addrs, true
}
