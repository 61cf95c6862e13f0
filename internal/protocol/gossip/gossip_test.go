package gossip

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bridge/internal/core/discovery"
	"github.com/dep2p/go-bridge/internal/core/identity"
	"github.com/dep2p/go-bridge/internal/core/metrics"
	"github.com/dep2p/go-bridge/internal/core/protocol"
	"github.com/dep2p/go-bridge/internal/core/runtime"
	"github.com/dep2p/go-bridge/internal/core/transport/quic"
	"github.com/dep2p/go-bridge/pkg/types"
)

type testNode struct {
	ep     *quic.Endpoint
	gossip *Gossip
}

func newTestNode(t *testing.T, rt *runtime.Runtime, mem *discovery.Memory, cfg Config) *testNode {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)

	ep, err := quic.Listen(context.Background(), quic.Options{
		Identity:   id,
		ListenAddr: "127.0.0.1:0",
		Discovery:  mem,
	})
	require.NoError(t, err)

	g, err := New(ep, cfg)
	require.NoError(t, err)

	router := protocol.NewRouter(ep, rt)
	require.NoError(t, router.Accept(ALPN, g.Handler()))
	require.NoError(t, router.Spawn())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = router.Shutdown(ctx)
		_ = ep.Close()
	})
	return &testNode{ep: ep, gossip: g}
}

func newTestNetwork(t *testing.T, n int) []*testNode {
	t.Helper()
	rt := runtime.New(runtime.DefaultConfig())
	t.Cleanup(func() { _ = rt.Close() })
	mem := discovery.NewMemory()

	nodes := make([]*testNode, n)
	for i := range nodes {
		nodes[i] = newTestNode(t, rt, mem, DefaultConfig())
	}
	return nodes
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// nextMessage 跳过邻居事件，返回下一条消息
func nextMessage(ctx context.Context, t *testing.T, topic *Topic) *Message {
	t.Helper()
	for {
		ev, err := topic.Next(ctx)
		require.NoError(t, err)
		if ev.Kind == EventReceived {
			return ev.Message
		}
	}
}

func TestGossip_JoinAndBroadcast(t *testing.T) {
	ctx := testContext(t)
	nodes := newTestNetwork(t, 3)
	a, b, c := nodes[0], nodes[1], nodes[2]
	topicID := testTopic(9)

	ta, err := a.gossip.Subscribe(ctx, topicID, nil)
	require.NoError(t, err)
	tb, err := b.gossip.Subscribe(ctx, topicID, []types.PeerID{a.ep.ID()})
	require.NoError(t, err)
	tc, err := c.gossip.Subscribe(ctx, topicID, []types.PeerID{a.ep.ID()})
	require.NoError(t, err)

	require.NoError(t, tb.Joined(ctx))
	require.NoError(t, tc.Joined(ctx))
	require.NoError(t, ta.Joined(ctx))
	require.Eventually(t, func() bool { return len(ta.Neighbors()) == 2 }, 5*time.Second, 10*time.Millisecond)

	t.Run("中心节点广播", func(t *testing.T) {
		require.NoError(t, ta.Broadcast(ctx, []byte("from-a")))

		for _, topic := range []*Topic{tb, tc} {
			msg := nextMessage(ctx, t, topic)
			assert.Equal(t, "from-a", string(msg.Content))
			assert.Equal(t, a.ep.ID(), msg.Origin)
			assert.Equal(t, a.ep.ID(), msg.DeliveredFrom)
		}
	})

	t.Run("经中心节点转发", func(t *testing.T) {
		require.NoError(t, tb.Broadcast(ctx, []byte("from-b")))

		msg := nextMessage(ctx, t, ta)
		assert.Equal(t, "from-b", string(msg.Content))
		assert.Equal(t, b.ep.ID(), msg.Origin)

		msg = nextMessage(ctx, t, tc)
		assert.Equal(t, "from-b", string(msg.Content))
		assert.Equal(t, b.ep.ID(), msg.Origin)
		assert.Equal(t, a.ep.ID(), msg.DeliveredFrom)
	})
}

func TestGossip_Subscribe(t *testing.T) {
	ctx := testContext(t)
	nodes := newTestNetwork(t, 1)
	g := nodes[0].gossip
	topicID := testTopic(1)

	t.Run("重复订阅", func(t *testing.T) {
		_, err := g.Subscribe(ctx, topicID, nil)
		require.NoError(t, err)
		_, err = g.Subscribe(ctx, topicID, nil)
		assert.ErrorIs(t, err, ErrTopicAlreadyJoined)
	})

	t.Run("引导节点不可达不失败", func(t *testing.T) {
		var unknown types.PeerID
		unknown[0] = 1
		topic, err := g.Subscribe(ctx, testTopic(2), []types.PeerID{unknown})
		require.NoError(t, err)
		assert.Empty(t, topic.Neighbors())
	})

	t.Run("无邻居广播", func(t *testing.T) {
		topic, ok := g.Topic(topicID)
		require.True(t, ok)
		assert.NoError(t, topic.Broadcast(ctx, []byte("alone")))
	})

	t.Run("消息过大", func(t *testing.T) {
		topic, ok := g.Topic(topicID)
		require.True(t, ok)
		err := topic.Broadcast(ctx, make([]byte, DefaultConfig().MaxMessageSize+1))
		assert.ErrorIs(t, err, ErrMessageTooLarge)
	})

	t.Run("关闭主题", func(t *testing.T) {
		topic, ok := g.Topic(topicID)
		require.True(t, ok)
		require.NoError(t, topic.Close())

		_, err := topic.Next(ctx)
		assert.ErrorIs(t, err, ErrTopicClosed)
		assert.ErrorIs(t, topic.Broadcast(ctx, []byte("x")), ErrTopicClosed)
		_, ok = g.Topic(topicID)
		assert.False(t, ok)
	})

	t.Run("关闭后订阅", func(t *testing.T) {
		require.NoError(t, g.Shutdown(ctx))
		_, err := g.Subscribe(ctx, testTopic(3), nil)
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestGossip_LeaveEmitsNeighborDown(t *testing.T) {
	ctx := testContext(t)
	nodes := newTestNetwork(t, 2)
	a, b := nodes[0], nodes[1]
	topicID := testTopic(5)

	ta, err := a.gossip.Subscribe(ctx, topicID, nil)
	require.NoError(t, err)
	tb, err := b.gossip.Subscribe(ctx, topicID, []types.PeerID{a.ep.ID()})
	require.NoError(t, err)
	require.NoError(t, tb.Joined(ctx))
	require.NoError(t, ta.Joined(ctx))

	require.NoError(t, tb.Close())

	for {
		ev, err := ta.Next(ctx)
		require.NoError(t, err)
		if ev.Kind == EventNeighborDown {
			assert.Equal(t, b.ep.ID(), ev.Peer)
			break
		}
	}
	assert.Empty(t, ta.Neighbors())
}

func TestTopic_EmitOverflowReportsLag(t *testing.T) {
	tp := newTopic(nil, testTopic(1), 1)
	tp.emit(Event{Kind: EventNeighborUp})
	tp.emit(Event{Kind: EventNeighborUp})

	ctx := testContext(t)
	ev, err := tp.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventNeighborUp, ev.Kind)

	tp.emit(Event{Kind: EventReceived})
	ev, err = tp.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventLagged, ev.Kind)
}

func TestConfig_Limiter(t *testing.T) {
	t.Run("不限制", func(t *testing.T) {
		assert.Nil(t, Config{}.newLimiter())
	})

	t.Run("缺省突发容量", func(t *testing.T) {
		cfg := Config{FrameRate: 10}.withDefaults()
		l := cfg.newLimiter()
		require.NotNil(t, l)
		assert.Equal(t, DefaultConfig().FrameBurst, l.Burst())
		assert.True(t, l.AllowN(time.Now(), l.Burst()))
		assert.False(t, l.Allow())
	})
}

func TestGossip_DuplicateDataSuppressed(t *testing.T) {
	ctx := testContext(t)
	reg := prometheus.NewRegistry()

	id, err := identity.Generate()
	require.NoError(t, err)
	ep, err := quic.Listen(ctx, quic.Options{
		Identity:   id,
		ListenAddr: "127.0.0.1:0",
		Metrics:    metrics.New(reg),
	})
	require.NoError(t, err)
	defer ep.Close()

	g, err := New(ep, DefaultConfig())
	require.NoError(t, err)
	defer g.Shutdown(context.Background())

	topicID := testTopic(5)
	topic, err := g.Subscribe(ctx, topicID, nil)
	require.NoError(t, err)

	sender, err := identity.Generate()
	require.NoError(t, err)
	origin := sender.ID()
	f := &frame{
		kind:    kindData,
		topic:   topicID,
		id:      newMessageID(origin, []byte("dup"), 1),
		origin:  origin,
		payload: []byte("dup"),
	}
	g.handleFrame(origin, f)
	g.handleFrame(origin, f)

	msg := nextMessage(ctx, t, topic)
	assert.Equal(t, "dup", string(msg.Content))

	exp := `
# HELP bridge_gossip_frames_total Gossip frames sent, received and suppressed as duplicates.
# TYPE bridge_gossip_frames_total counter
bridge_gossip_frames_total{direction="duplicate"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(exp), "bridge_gossip_frames_total"))
}
