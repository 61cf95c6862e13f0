package endpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bridge/internal/core/discovery"
	"github.com/dep2p/go-bridge/internal/core/identity"
	"github.com/dep2p/go-bridge/pkg/types"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func bindTest(t *testing.T, h *Handle, d *discovery.Memory, alpns ...string) {
	t.Helper()
	opts := BindOptions{
		ALPNs:      alpns,
		ListenAddr: "127.0.0.1:0",
	}
	if d != nil {
		opts.Discovery = d
	}
	_, err := Bind(testContext(t), h, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(h) })
}

func TestAddress_SentinelUntilBound(t *testing.T) {
	h := NewHandle()
	assert.Equal(t, AddressUnbound, Address(h))
	assert.Nil(t, DirectAddresses(h))

	bindTest(t, h, nil, "demo/1")

	addr := Address(h)
	assert.NotEqual(t, AddressUnbound, addr)
	_, err := types.ParsePeerID(addr)
	assert.NoError(t, err)
	assert.NotEmpty(t, DirectAddresses(h))
}

func TestBind_UsesProvidedIdentity(t *testing.T) {
	id, err := identity.Generate()
	require.NoError(t, err)

	h := NewHandle()
	ep, err := Bind(testContext(t), h, BindOptions{Identity: id, ListenAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer ep.Close()

	assert.Equal(t, id.ID().String(), Address(h))
}

func TestBind_InvalidListenAddr(t *testing.T) {
	h := NewHandle()
	_, err := Bind(testContext(t), h, BindOptions{ListenAddr: "not an address"})
	assert.ErrorIs(t, err, types.ErrBind)
	assert.False(t, h.IsSet())
}

func TestConnect_InvalidPeerRegardlessOfBindState(t *testing.T) {
	ctx := testContext(t)
	unbound := NewHandle()
	bound := NewHandle()
	bindTest(t, bound, nil, "demo/1")

	for _, h := range []*Handle{unbound, bound} {
		for _, peer := range []string{"", "not-a-key", "111", "0OIl"} {
			_, err := Connect(ctx, h, peer, "demo/1", nil)
			assert.ErrorIs(t, err, types.ErrInvalidPeerIdentifier, "peer %q", peer)
		}
	}
}

func TestNotInitialized(t *testing.T) {
	ctx := testContext(t)
	h := NewHandle()

	other, err := identity.Generate()
	require.NoError(t, err)

	_, err = Connect(ctx, h, other.ID().String(), "demo/1", nil)
	assert.ErrorIs(t, err, types.ErrNotInitialized)

	_, err = Accept(ctx, h, nil)
	assert.ErrorIs(t, err, types.ErrNotInitialized)
}

func TestConnectAccept(t *testing.T) {
	ctx := testContext(t)
	mem := discovery.NewMemory()
	a, b := NewHandle(), NewHandle()
	bindTest(t, a, mem, "demo/1")
	bindTest(t, b, mem, "demo/1")

	accepted := make(chan error, 1)
	go func() {
		conn, err := Accept(ctx, b, nil)
		if err == nil && conn.RemotePeer().String() != Address(a) {
			err = assert.AnError
		}
		accepted <- err
	}()

	conn, err := Connect(ctx, a, Address(b), "demo/1", nil)
	require.NoError(t, err)
	assert.Equal(t, Address(b), conn.RemotePeer().String())
	assert.Equal(t, "demo/1", conn.ALPN())
	require.NoError(t, <-accepted)
}

func TestConnect_UnknownPeer(t *testing.T) {
	ctx := testContext(t)
	h := NewHandle()
	bindTest(t, h, discovery.NewMemory(), "demo/1")

	stranger, err := identity.Generate()
	require.NoError(t, err)
	_, err = Connect(ctx, h, stranger.ID().String(), "demo/1", nil)
	assert.ErrorIs(t, err, types.ErrConnect)
}

func TestRebind_OldEndpointStaysUsable(t *testing.T) {
	ctx := testContext(t)
	mem := discovery.NewMemory()

	h := NewHandle()
	first, err := Bind(ctx, h, BindOptions{ALPNs: []string{"demo/1"}, ListenAddr: "127.0.0.1:0", Discovery: mem})
	require.NoError(t, err)
	defer first.Close()

	second, err := Bind(ctx, h, BindOptions{ALPNs: []string{"demo/1"}, ListenAddr: "127.0.0.1:0", Discovery: mem})
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, second.ID().String(), Address(h))
	assert.NotEqual(t, first.ID(), second.ID())

	// 旧 Endpoint 未被关闭，仍可被拨入
	dialer := NewHandle()
	bindTest(t, dialer, mem, "demo/1")

	go func() { _, _ = first.Accept(ctx) }()
	conn, err := Connect(ctx, dialer, first.ID().String(), "demo/1", nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), conn.RemotePeer())
}

func TestClose(t *testing.T) {
	h := NewHandle()
	bindTest(t, h, nil)

	require.NoError(t, Close(h))
	assert.Equal(t, AddressUnbound, Address(h))
	assert.NoError(t, Close(h))
}
