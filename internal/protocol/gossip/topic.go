package gossip

import (
	"context"
	"slices"
	"sync"

	"github.com/dep2p/go-bridge/pkg/types"
)

// EventKind 主题事件类型
type EventKind int

const (
	// EventNeighborUp 新邻居加入
	EventNeighborUp EventKind = iota + 1
	// EventNeighborDown 邻居离开
	EventNeighborDown
	// EventReceived 收到消息
	EventReceived
	// EventLagged 事件缓冲区溢出，部分事件已丢弃
	EventLagged
)

// String 返回事件类型名称
func (k EventKind) String() string {
	switch k {
	case EventNeighborUp:
		return "neighbor_up"
	case EventNeighborDown:
		return "neighbor_down"
	case EventReceived:
		return "received"
	case EventLagged:
		return "lagged"
	default:
		return "unknown"
	}
}

// Message 收到的消息
type Message struct {
	ID MessageID

	// Content 消息负载
	Content []byte

	// Origin 发布者
	Origin types.PeerID

	// DeliveredFrom 转发给本节点的邻居
	DeliveredFrom types.PeerID
}

// Event 主题事件
type Event struct {
	Kind EventKind

	// Peer 相关节点，EventLagged 时为空
	Peer types.PeerID

	// Message 仅 EventReceived 时非空
	Message *Message
}

// Topic 已订阅的主题
type Topic struct {
	g  *Gossip
	id types.TopicID

	events     chan Event
	joined     chan struct{}
	joinedOnce sync.Once

	mu        sync.Mutex
	neighbors map[types.PeerID]struct{}
	lagged    bool
	closed    bool
}

func newTopic(g *Gossip, id types.TopicID, buffer int) *Topic {
	return &Topic{
		g:         g,
		id:        id,
		events:    make(chan Event, buffer),
		joined:    make(chan struct{}),
		neighbors: make(map[types.PeerID]struct{}),
	}
}

// ID 返回主题 ID
func (t *Topic) ID() types.TopicID {
	return t.id
}

// Broadcast 向主题中的所有节点广播
func (t *Topic) Broadcast(ctx context.Context, payload []byte) error {
	if t.isClosed() {
		return ErrTopicClosed
	}
	return t.g.broadcast(ctx, t, payload)
}

// Next 等待下一个事件
func (t *Topic) Next(ctx context.Context) (Event, error) {
	select {
	case ev, ok := <-t.events:
		if !ok {
			return Event{}, ErrTopicClosed
		}
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Joined 等待至少一个邻居就绪
func (t *Topic) Joined(ctx context.Context) error {
	select {
	case <-t.joined:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Neighbors 返回当前邻居
func (t *Topic) Neighbors() []types.PeerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.PeerID, 0, len(t.neighbors))
	for p := range t.neighbors {
		out = append(out, p)
	}
	return out
}

// neighborsExcept 返回排除 skip 后的邻居
func (t *Topic) neighborsExcept(skip ...types.PeerID) []types.PeerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.PeerID, 0, len(t.neighbors))
	for p := range t.neighbors {
		if !slices.Contains(skip, p) {
			out = append(out, p)
		}
	}
	return out
}

func (t *Topic) addNeighbor(peer types.PeerID) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	_, exists := t.neighbors[peer]
	t.neighbors[peer] = struct{}{}
	t.mu.Unlock()

	if exists {
		return
	}
	t.joinedOnce.Do(func() { close(t.joined) })
	logger.Debug("邻居已加入", "topic", t.id.ShortString(), "peer", peer.ShortString())
	t.emit(Event{Kind: EventNeighborUp, Peer: peer})
}

func (t *Topic) removeNeighbor(peer types.PeerID) {
	t.mu.Lock()
	_, exists := t.neighbors[peer]
	delete(t.neighbors, peer)
	t.mu.Unlock()

	if exists {
		logger.Debug("邻居已离开", "topic", t.id.ShortString(), "peer", peer.ShortString())
		t.emit(Event{Kind: EventNeighborDown, Peer: peer})
	}
}

// emit 非阻塞地投递事件
//
// 缓冲区满时丢弃事件，并在下一次有空位时补发一个 EventLagged。
func (t *Topic) emit(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	if t.lagged {
		select {
		case t.events <- Event{Kind: EventLagged}:
			t.lagged = false
		default:
		}
	}

	select {
	case t.events <- ev:
	default:
		if !t.lagged {
			logger.Warn("主题事件缓冲区已满，丢弃事件", "topic", t.id.ShortString(), "kind", ev.Kind)
		}
		t.lagged = true
	}
}

func (t *Topic) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close 离开主题
//
// 向邻居发送 Leave 后关闭事件通道，Next 随后返回 ErrTopicClosed。
func (t *Topic) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	peers := make([]types.PeerID, 0, len(t.neighbors))
	for p := range t.neighbors {
		peers = append(peers, p)
	}
	t.neighbors = make(map[types.PeerID]struct{})
	close(t.events)
	t.mu.Unlock()

	t.g.removeTopic(t)
	if len(peers) > 0 {
		t.g.sendAll(t.g.ctx, peers, &frame{kind: kindLeave, topic: t.id})
	}

	logger.Info("已离开主题", "topic", t.id.ShortString())
	return nil
}
