// Package gossip 实现主题广播覆盖网络
//
// 这是一个最小的泛洪覆盖网络：订阅主题时向引导节点发送 Join，
// 对端回复 Neighbor 后双方互为邻居；数据帧转发给除来源外的所有邻居，
// 通过消息 ID 去重。
//
// 每个帧使用一条独立的 QUIC 单向流，入站连接由协议路由器按 ALPN
// 分发到 Handler()。
package gossip

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-bridge/internal/core/metrics"
	"github.com/dep2p/go-bridge/internal/core/protocol"
	"github.com/dep2p/go-bridge/internal/core/transport/quic"
	"github.com/dep2p/go-bridge/pkg/lib/log"
	"github.com/dep2p/go-bridge/pkg/types"
)

var logger = log.Logger("protocol/gossip")

// ALPN 覆盖网络协议标识
const ALPN = "/bridge/gossip/1.0.0"

const closeCodeShutdown = 0

// Gossip 覆盖网络实例
type Gossip struct {
	ep      *quic.Endpoint
	cfg     Config
	metrics *metrics.Metrics
	seen    *lru.Cache[MessageID, struct{}]
	seq     atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	topics map[types.TopicID]*Topic
	conns  map[types.PeerID]*quic.Conn
	closed bool
}

// 确保实现接口
var _ protocol.Handler = (*Gossip)(nil)

// New 在 ep 上创建覆盖网络
//
// 需要把 Handler() 注册到协议路由器才能接受入站连接。
func New(ep *quic.Endpoint, cfg Config) (*Gossip, error) {
	cfg = cfg.withDefaults()
	seen, err := lru.New[MessageID, struct{}](cfg.SeenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create seen cache: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Gossip{
		ep:      ep,
		cfg:     cfg,
		metrics: ep.Metrics(),
		seen:    seen,
		ctx:     ctx,
		cancel:  cancel,
		topics:  make(map[types.TopicID]*Topic),
		conns:   make(map[types.PeerID]*quic.Conn),
	}

	logger.Debug("gossip 已创建", "peer", ep.ID().ShortString())
	return g, nil
}

// ID 返回本地节点 ID
func (g *Gossip) ID() types.PeerID {
	return g.ep.ID()
}

// Handler 返回注册到协议路由器的处理器
func (g *Gossip) Handler() protocol.Handler {
	return g
}

// ============================================================================
//                              订阅
// ============================================================================

// Subscribe 订阅主题并向 peers 发送 Join
//
// 单个引导节点不可达不会导致失败，Topic.Joined 在第一个邻居就绪时返回。
func (g *Gossip) Subscribe(ctx context.Context, topic types.TopicID, peers []types.PeerID) (*Topic, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrClosed
	}
	if _, exists := g.topics[topic]; exists {
		g.mu.Unlock()
		return nil, ErrTopicAlreadyJoined
	}
	t := newTopic(g, topic, g.cfg.EventBuffer)
	g.topics[topic] = t
	g.mu.Unlock()

	var (
		eg     errgroup.Group
		failed atomic.Int32
		dialed int32
	)
	eg.SetLimit(g.cfg.DialConcurrency)
	for _, peer := range peers {
		if peer == g.ID() || peer.IsEmpty() {
			continue
		}
		dialed++
		eg.Go(func() error {
			if err := g.send(ctx, peer, &frame{kind: kindJoin, topic: topic}); err != nil {
				failed.Add(1)
				logger.Debug("向引导节点发送 Join 失败", "topic", topic.ShortString(), "peer", peer.ShortString(), "error", err)
			}
			return nil
		})
	}
	_ = eg.Wait()

	if dialed > 0 && failed.Load() == dialed {
		logger.Warn("所有引导节点都不可达", "topic", topic.ShortString(), "peers", dialed)
	}
	logger.Info("已订阅主题", "topic", topic.ShortString(), "bootstrap", dialed)
	return t, nil
}

// Topic 返回已订阅的主题
func (g *Gossip) Topic(id types.TopicID) (*Topic, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.topics[id]
	return t, ok
}

func (g *Gossip) removeTopic(t *Topic) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.topics[t.id] == t {
		delete(g.topics, t.id)
	}
}

// ============================================================================
//                              连接管理
// ============================================================================

// Accept 处理入站连接，实现 protocol.Handler
func (g *Gossip) Accept(ctx context.Context, conn *quic.Conn) error {
	if !g.track() {
		_ = conn.Close(closeCodeShutdown, "gossip closed")
		return ErrClosed
	}
	defer g.wg.Done()

	g.addConn(conn)
	return g.serveConn(ctx, conn)
}

// track 登记一个连接服务 goroutine，已关闭时返回 false
func (g *Gossip) track() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.wg.Add(1)
	return true
}

// addConn 记录到 peer 的连接，已有存活连接时保留旧的
func (g *Gossip) addConn(conn *quic.Conn) *quic.Conn {
	peer := conn.RemotePeer()

	g.mu.Lock()
	defer g.mu.Unlock()
	if old, ok := g.conns[peer]; ok && old.Context().Err() == nil {
		return old
	}
	g.conns[peer] = conn
	return conn
}

// removeConn 移除 conn，返回对端是否已没有可用连接
func (g *Gossip) removeConn(conn *quic.Conn) bool {
	peer := conn.RemotePeer()

	g.mu.Lock()
	defer g.mu.Unlock()
	cur, ok := g.conns[peer]
	if !ok {
		return true
	}
	if cur == conn {
		delete(g.conns, peer)
		return true
	}
	return cur.Context().Err() != nil
}

// connTo 返回到 peer 的连接，没有时拨号
func (g *Gossip) connTo(ctx context.Context, peer types.PeerID) (*quic.Conn, error) {
	g.mu.Lock()
	conn, ok := g.conns[peer]
	g.mu.Unlock()
	if ok && conn.Context().Err() == nil {
		return conn, nil
	}

	conn, err := g.ep.Connect(ctx, peer, ALPN)
	if err != nil {
		return nil, err
	}
	if !g.track() {
		_ = conn.Close(closeCodeShutdown, "gossip closed")
		return nil, ErrClosed
	}

	// 出站连接同样接收对端发来的帧
	go func() {
		defer g.wg.Done()
		_ = g.serveConn(g.ctx, conn)
	}()
	return g.addConn(conn), nil
}

// serveConn 接收 conn 上的帧直到连接关闭
func (g *Gossip) serveConn(ctx context.Context, conn *quic.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(g.ctx, cancel)
	defer stop()

	peer := conn.RemotePeer()
	limit := g.cfg.MaxMessageSize + frameOverhead
	limiter := g.cfg.newLimiter()
	for {
		recv, err := conn.AcceptUni(ctx)
		if err == nil && limiter != nil {
			// 超出速率时暂停接受新流，由 QUIC 流控向对端施加背压
			if err = limiter.Wait(ctx); err != nil {
				recv.Stop(0)
			}
		}
		if err != nil {
			if g.removeConn(conn) {
				g.peerGone(peer)
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		go func() {
			data, err := recv.ReadToEnd(ctx, limit)
			if err != nil {
				logger.Debug("读取帧失败", "peer", peer.ShortString(), "error", err)
				return
			}
			f, err := unmarshalFrame(data)
			if err != nil {
				logger.Debug("丢弃无效帧", "peer", peer.ShortString(), "error", err)
				return
			}
			g.metrics.GossipFrame("in")
			g.handleFrame(peer, f)
		}()
	}
}

// peerGone 对端连接断开时从所有主题移除
func (g *Gossip) peerGone(peer types.PeerID) {
	for _, t := range g.topicList() {
		t.removeNeighbor(peer)
	}
}

func (g *Gossip) topicList() []*Topic {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Topic, 0, len(g.topics))
	for _, t := range g.topics {
		out = append(out, t)
	}
	return out
}

// ============================================================================
//                              收发
// ============================================================================

// send 通过一条新的单向流发送一帧
func (g *Gossip) send(ctx context.Context, peer types.PeerID, f *frame) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.SendTimeout)
	defer cancel()

	conn, err := g.connTo(ctx, peer)
	if err != nil {
		return err
	}
	s, err := conn.OpenUni(ctx)
	if err != nil {
		return err
	}
	if _, err := s.Write(ctx, f.marshal()); err != nil {
		s.Reset(0)
		return err
	}
	if err := s.Finish(); err != nil {
		return err
	}
	g.metrics.GossipFrame("out")
	return nil
}

// sendAll 并发向 peers 发送，返回成功数量
func (g *Gossip) sendAll(ctx context.Context, peers []types.PeerID, f *frame) int {
	var (
		eg errgroup.Group
		ok atomic.Int32
	)
	eg.SetLimit(g.cfg.DialConcurrency)
	for _, peer := range peers {
		eg.Go(func() error {
			if err := g.send(ctx, peer, f); err != nil {
				logger.Debug("发送帧失败", "kind", f.kind, "peer", peer.ShortString(), "error", err)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = eg.Wait()
	return int(ok.Load())
}

// markSeen 记录消息 ID，已见过返回 false
func (g *Gossip) markSeen(id MessageID) bool {
	seen, _ := g.seen.ContainsOrAdd(id, struct{}{})
	return !seen
}

// handleFrame 处理来自 from 的帧
func (g *Gossip) handleFrame(from types.PeerID, f *frame) {
	t, ok := g.Topic(f.topic)
	if !ok {
		logger.Debug("收到未订阅主题的帧", "kind", f.kind, "topic", f.topic.ShortString(), "peer", from.ShortString())
		return
	}

	switch f.kind {
	case kindJoin:
		t.addNeighbor(from)
		if err := g.send(g.ctx, from, &frame{kind: kindNeighbor, topic: f.topic}); err != nil {
			logger.Debug("回复 Neighbor 失败", "peer", from.ShortString(), "error", err)
		}

	case kindNeighbor:
		t.addNeighbor(from)

	case kindLeave:
		t.removeNeighbor(from)

	case kindData:
		if !g.markSeen(f.id) {
			g.metrics.GossipFrame("duplicate")
			return
		}
		t.emit(Event{
			Kind: EventReceived,
			Peer: from,
			Message: &Message{
				ID:            f.id,
				Content:       f.payload,
				Origin:        f.origin,
				DeliveredFrom: from,
			},
		})

		targets := t.neighborsExcept(from, f.origin)
		if len(targets) > 0 {
			g.sendAll(g.ctx, targets, f)
		}
	}
}

// broadcast 发布本地消息
func (g *Gossip) broadcast(ctx context.Context, t *Topic, payload []byte) error {
	if len(payload) > g.cfg.MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(payload), g.cfg.MaxMessageSize)
	}

	origin := g.ID()
	id := newMessageID(origin, payload, g.seq.Add(1))
	g.markSeen(id)

	peers := t.Neighbors()
	if len(peers) == 0 {
		logger.Debug("没有邻居，消息未发送", "topic", t.id.ShortString())
		return nil
	}

	f := &frame{kind: kindData, topic: t.id, id: id, origin: origin, payload: payload}
	if g.sendAll(ctx, peers, f) == 0 {
		return ErrAllSendsFailed
	}
	return nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Shutdown 关闭所有主题与连接，实现 protocol.Handler
func (g *Gossip) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	topics := make([]*Topic, 0, len(g.topics))
	for _, t := range g.topics {
		topics = append(topics, t)
	}
	g.mu.Unlock()

	// 先关闭主题，Leave 帧需要连接仍然可用
	for _, t := range topics {
		_ = t.Close()
	}

	g.mu.Lock()
	g.closed = true
	conns := g.conns
	g.conns = make(map[types.PeerID]*quic.Conn)
	g.mu.Unlock()

	g.cancel()
	for _, c := range conns {
		_ = c.Close(closeCodeShutdown, "gossip shutdown")
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	logger.Debug("gossip 已关闭", "peer", g.ID().ShortString())
	return nil
}
