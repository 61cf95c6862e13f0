package bridge

import (
	"context"
	"fmt"

	"github.com/dep2p/go-bridge/internal/core/delivery"
	"github.com/dep2p/go-bridge/internal/core/endpoint"
	"github.com/dep2p/go-bridge/internal/core/handle"
	"github.com/dep2p/go-bridge/internal/protocol/gossip"
	"github.com/dep2p/go-bridge/pkg/types"
)

// GossipALPN 主题广播协议标识
const GossipALPN = gossip.ALPN

// GossipEvent 主题事件，作为 gossip_event 信号的 Result 值
type GossipEvent struct {
	// Kind neighbor_up、neighbor_down、received 或 lagged
	Kind string

	// Peer 相关节点（base58），lagged 时为空
	Peer string

	// Content 消息内容，仅 received
	Content []byte

	// Origin 消息发布者，仅 received
	Origin string
}

func newGossipEvent(ev gossip.Event) GossipEvent {
	out := GossipEvent{Kind: ev.Kind.String()}
	if !ev.Peer.IsEmpty() {
		out.Peer = ev.Peer.String()
	}
	if ev.Message != nil {
		out.Content = ev.Message.Content
		out.Origin = ev.Message.Origin.String()
	}
	return out
}

// Gossip 宿主侧的主题广播
//
// 使用流程：SpawnBlocking(endpoint) → Router.BindBlocking(endpoint, gossip)
// → SubscribeXxx → BroadcastXxx。主题事件通过 gossip_event 信号投递。
type Gossip struct {
	object

	overlay *handle.Shared[*gossip.Gossip]
	topic   *handle.Shared[*gossip.Topic]
}

func newGossip(b *Bridge) *Gossip {
	g := &Gossip{
		overlay: handle.New[*gossip.Gossip]("gossip"),
		topic:   handle.New[*gossip.Topic]("gossip_topic"),
	}
	g.init(b)
	return g
}

func (g *Gossip) config() gossip.Config {
	c := g.b.cfg.Gossip
	return gossip.Config{
		MaxMessageSize:  c.MaxMessageSize,
		SeenCacheSize:   c.SeenCacheSize,
		EventBuffer:     c.EventBuffer,
		DialConcurrency: c.DialConcurrency,
		SendTimeout:     c.SendTimeout.Duration(),
		FrameRate:       c.FrameRate,
		FrameBurst:      c.FrameBurst,
	}
}

// SpawnBlocking 在已绑定的 ep 上创建覆盖网络
//
// ep 未绑定时返回 ErrNotInitialized。
func (g *Gossip) SpawnBlocking(ctx context.Context, ep *Endpoint) error {
	_, err := blocking(ctx, &g.object, func(context.Context) (Unit, error) {
		qep, err := endpoint.Get(ep.handle)
		if err != nil {
			return Unit{}, err
		}
		ov, err := gossip.New(qep, g.config())
		if err != nil {
			return Unit{}, err
		}
		g.overlay.Store(ov)
		return Unit{}, nil
	})
	return err
}

// IsSpawned 是否已 spawn
func (g *Gossip) IsSpawned() bool {
	return g.overlay.IsSet()
}

func (g *Gossip) getOverlay() (*gossip.Gossip, error) {
	ov, ok := g.overlay.Load()
	if !ok {
		return nil, fmt.Errorf("%w: gossip is not spawned", types.ErrNotInitialized)
	}
	return ov, nil
}

func (g *Gossip) getTopic() (*gossip.Topic, error) {
	t, ok := g.topic.Load()
	if !ok {
		return nil, fmt.Errorf("%w: gossip has no subscription", types.ErrNotInitialized)
	}
	return t, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              Subscribe
// ════════════════════════════════════════════════════════════════════════════

// SubscribeBlocking 订阅 32 字节的主题，向 peers 发送加入请求
//
// 已有订阅时先离开旧主题。
func (g *Gossip) SubscribeBlocking(ctx context.Context, topic []byte, peers []string) error {
	_, err := blocking(ctx, &g.object, g.subscribe(topic, peers))
	return err
}

// SubscribeAsync 结果通过 subscribe_async_results 投递（Result[Unit]）
func (g *Gossip) SubscribeAsync(topic []byte, peers []string) {
	async(&g.object, SignalSubscribeAsyncResults, g.subscribe(topic, peers))
}

func (g *Gossip) subscribe(topic []byte, peers []string) func(context.Context) (Unit, error) {
	topic = append([]byte(nil), topic...)
	peers = append([]string(nil), peers...)

	return func(ctx context.Context) (Unit, error) {
		id, err := types.TopicIDFromBytes(topic)
		if err != nil {
			return Unit{}, fmt.Errorf("%w: got %d bytes, want %d", types.ErrInvalidTopic, len(topic), types.TopicIDSize)
		}
		keys := make([]types.PeerID, 0, len(peers))
		for _, p := range peers {
			key, err := endpoint.ParsePeer(p)
			if err != nil {
				return Unit{}, err
			}
			keys = append(keys, key)
		}

		ov, err := g.getOverlay()
		if err != nil {
			return Unit{}, err
		}

		if old, ok := g.topic.Take(); ok {
			logger.Warn("Gossip 已有订阅，离开旧主题", "topic", old.ID().ShortString())
			_ = old.Close()
		}

		t, err := ov.Subscribe(ctx, id, keys)
		if err != nil {
			return Unit{}, err
		}
		g.topic.Store(t)
		g.pump(t)
		return Unit{}, nil
	}
}

// pump 把主题事件转发为 gossip_event 信号，主题关闭后退出
func (g *Gossip) pump(t *gossip.Topic) {
	emit := delivery.NewEmitter[GossipEvent](g.b.host, g.id, SignalGossipEvent, g.b.metrics)
	g.b.rt.Spawn(func(ctx context.Context) {
		for {
			ev, err := t.Next(ctx)
			if err != nil {
				return
			}
			emit(delivery.OK(newGossipEvent(ev)))
		}
	})
}

// ════════════════════════════════════════════════════════════════════════════
//                              Broadcast / Joined
// ════════════════════════════════════════════════════════════════════════════

// BroadcastBlocking 向当前主题广播
func (g *Gossip) BroadcastBlocking(ctx context.Context, data []byte) error {
	_, err := blocking(ctx, &g.object, g.broadcast(data))
	return err
}

// BroadcastAsync 结果通过 broadcast_async_results 投递（Result[Unit]）
func (g *Gossip) BroadcastAsync(data []byte) {
	async(&g.object, SignalBroadcastAsyncResults, g.broadcast(data))
}

func (g *Gossip) broadcast(data []byte) func(context.Context) (Unit, error) {
	data = append([]byte(nil), data...)
	return func(ctx context.Context) (Unit, error) {
		t, err := g.getTopic()
		if err != nil {
			return Unit{}, err
		}
		return Unit{}, t.Broadcast(ctx, data)
	}
}

// JoinedBlocking 等待至少一个邻居
func (g *Gossip) JoinedBlocking(ctx context.Context) error {
	_, err := blocking(ctx, &g.object, g.joined)
	return err
}

// JoinedAsync 结果通过 joined_async_results 投递（Result[Unit]）
func (g *Gossip) JoinedAsync() {
	async(&g.object, SignalJoinedAsyncResults, g.joined)
}

func (g *Gossip) joined(ctx context.Context) (Unit, error) {
	t, err := g.getTopic()
	if err != nil {
		return Unit{}, err
	}
	return Unit{}, t.Joined(ctx)
}

// Neighbors 返回当前主题的邻居
func (g *Gossip) Neighbors() []string {
	t, err := g.getTopic()
	if err != nil {
		return nil
	}
	peers := t.Neighbors()
	out := make([]string, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.String())
	}
	return out
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Leave 离开当前主题
func (g *Gossip) Leave() error {
	t, ok := g.topic.Take()
	if !ok {
		return nil
	}
	return t.Close()
}

// Shutdown 离开主题并关闭覆盖网络
func (g *Gossip) Shutdown(ctx context.Context) error {
	g.topic.Clear()
	ov, ok := g.overlay.Take()
	if !ok {
		return nil
	}
	return ov.Shutdown(ctx)
}
