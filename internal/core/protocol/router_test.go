package protocol

import (
	"context"
	"errors"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bridge/internal/core/identity"
	"github.com/dep2p/go-bridge/internal/core/runtime"
	"github.com/dep2p/go-bridge/internal/core/transport/quic"
)

func newEndpoint(t *testing.T, alpns ...string) *quic.Endpoint {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)

	ep, err := quic.Listen(context.Background(), quic.Options{
		Identity:   id,
		ListenAddr: "127.0.0.1:0",
		ALPNs:      alpns,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ep.Close() })
	return ep
}

func newRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()
	rt := runtime.New(runtime.DefaultConfig())
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

// echoHandler 回显对端打开的第一个双向流
type echoHandler struct {
	accepted atomic.Int32
	shutdown atomic.Int32
	err      error
}

func (h *echoHandler) Accept(ctx context.Context, conn *quic.Conn) error {
	h.accepted.Add(1)
	send, recv, err := conn.AcceptBi(ctx)
	if err != nil {
		return err
	}
	data, err := recv.ReadToEnd(ctx, 1024)
	if err != nil {
		return err
	}
	if _, err := send.Write(ctx, data); err != nil {
		return err
	}
	return send.Finish()
}

func (h *echoHandler) Shutdown(context.Context) error {
	h.shutdown.Add(1)
	return h.err
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	h := HandlerFunc(func(context.Context, *quic.Conn) error { return nil })

	t.Run("注册与查询", func(t *testing.T) {
		require.NoError(t, r.Register("b/1", h))
		require.NoError(t, r.Register("a/1", h))
		_, ok := r.Get("a/1")
		assert.True(t, ok)
		assert.Equal(t, []string{"a/1", "b/1"}, r.ALPNs())
	})

	t.Run("重复注册", func(t *testing.T) {
		assert.ErrorIs(t, r.Register("a/1", h), ErrDuplicateProtocol)
	})

	t.Run("无效参数", func(t *testing.T) {
		assert.ErrorIs(t, r.Register("", h), ErrInvalidProtocolID)
		assert.ErrorIs(t, r.Register("c/1", nil), ErrInvalidProtocolID)
	})

	t.Run("注销", func(t *testing.T) {
		require.NoError(t, r.Unregister("a/1"))
		assert.ErrorIs(t, r.Unregister("a/1"), ErrProtocolNotRegistered)
		_, ok := r.Get("a/1")
		assert.False(t, ok)
	})
}

func TestRouter_DispatchesByALPN(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	server := newEndpoint(t)
	client := newEndpoint(t)
	rt := newRuntime(t)

	router := NewRouter(server, rt)
	echo := &echoHandler{}
	require.NoError(t, router.Accept("echo/1", echo))
	assert.Contains(t, server.ALPNs(), "echo/1")
	require.NoError(t, router.Spawn())
	assert.ErrorIs(t, router.Spawn(), ErrAlreadySpawned)

	addr := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), server.LocalAddr().Port())
	conn, err := client.DialAddr(ctx, server.ID(), addr, "echo/1")
	require.NoError(t, err)
	assert.Equal(t, "echo/1", conn.ALPN())

	send, recv, err := conn.OpenBi(ctx)
	require.NoError(t, err)
	_, err = send.Write(ctx, []byte("hello"))
	require.NoError(t, err)
	require.NoError(t, send.Finish())

	got, err := recv.ReadToEnd(ctx, 1024)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
	assert.Equal(t, int32(1), echo.accepted.Load())

	require.NoError(t, router.Shutdown(ctx))
	assert.Equal(t, int32(1), echo.shutdown.Load())
	assert.True(t, router.IsShutdown())
}

func TestRouter_UnknownALPNClosesConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 端点接受 other/1，但路由器没有对应处理器
	server := newEndpoint(t, "other/1")
	client := newEndpoint(t)
	rt := newRuntime(t)

	router := NewRouter(server, rt)
	require.NoError(t, router.Accept("echo/1", &echoHandler{}))
	require.NoError(t, router.Spawn())
	defer router.Shutdown(ctx)

	addr := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), server.LocalAddr().Port())
	conn, err := client.DialAddr(ctx, server.ID(), addr, "other/1")
	require.NoError(t, err)

	select {
	case <-conn.Context().Done():
	case <-ctx.Done():
		t.Fatal("连接未被关闭")
	}
}

func TestRouter_Shutdown(t *testing.T) {
	ctx := context.Background()
	server := newEndpoint(t)
	rt := newRuntime(t)

	t.Run("未启动也可关闭", func(t *testing.T) {
		router := NewRouter(server, rt)
		h := &echoHandler{err: errors.New("boom")}
		require.NoError(t, router.Accept("a/1", h))

		err := router.Shutdown(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		assert.Equal(t, int32(1), h.shutdown.Load())

		assert.NoError(t, router.Shutdown(ctx))
		assert.ErrorIs(t, router.Spawn(), ErrRouterShutdown)
		assert.ErrorIs(t, router.Accept("b/1", h), ErrRouterShutdown)
	})
}

func TestRouter_StopKeepsHandlers(t *testing.T) {
	ctx := context.Background()
	server := newEndpoint(t)
	rt := newRuntime(t)

	router := NewRouter(server, rt)
	h := &echoHandler{}
	require.NoError(t, router.Accept("a/1", h))
	require.NoError(t, router.Spawn())

	require.NoError(t, router.Stop(ctx))
	assert.True(t, router.IsShutdown())
	assert.Equal(t, int32(0), h.shutdown.Load())

	// Stop 之后 Shutdown 不再关闭处理器
	require.NoError(t, router.Shutdown(ctx))
	assert.Equal(t, int32(0), h.shutdown.Load())
}
