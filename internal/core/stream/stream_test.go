package stream

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bridge/internal/core/identity"
	"github.com/dep2p/go-bridge/internal/core/transport/quic"
	"github.com/dep2p/go-bridge/pkg/types"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func listen(t *testing.T) *quic.Endpoint {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	ep, err := quic.Listen(context.Background(), quic.Options{
		Identity:   id,
		ListenAddr: "127.0.0.1:0",
		ALPNs:      []string{"demo/1"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ep.Close() })
	return ep
}

// biPair 打开一条双向流，返回本端与对端的句柄
func biPair(t *testing.T) (*SendHandle, *RecvHandle, *SendHandle, *RecvHandle) {
	t.Helper()
	ctx := testContext(t)
	a, b := listen(t), listen(t)

	accepted := make(chan *quic.Conn, 1)
	go func() {
		c, err := b.Accept(ctx)
		assert.NoError(t, err)
		accepted <- c
	}()
	out, err := a.DialAddr(ctx, b.ID(), b.LocalAddr(), "demo/1")
	require.NoError(t, err)
	in := <-accepted
	require.NotNil(t, in)

	send, recv, err := out.OpenBi(ctx)
	require.NoError(t, err)
	// 对端在收到数据后才能接受该流
	_, err = send.Write(ctx, []byte{0})
	require.NoError(t, err)

	peerSend, peerRecv, err := in.AcceptBi(ctx)
	require.NoError(t, err)
	first, err := peerRecv.Read(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{0}, first)

	return NewSendHandle(send), NewRecvHandle(recv), NewSendHandle(peerSend), NewRecvHandle(peerRecv)
}

func TestMissingHalves(t *testing.T) {
	ctx := testContext(t)
	send := NewSendHandle(nil)
	recv := NewRecvHandle(nil)

	_, err := Write(ctx, send, []byte("x"), nil)
	assert.ErrorIs(t, err, types.ErrNotInitialized)
	assert.ErrorIs(t, Finish(send), types.ErrNotInitialized)

	_, err = Read(ctx, recv, 10, nil)
	assert.ErrorIs(t, err, types.ErrNotInitialized)
	_, err = ReadToEnd(ctx, recv, 0, nil)
	assert.ErrorIs(t, err, types.ErrNotInitialized)
	assert.ErrorIs(t, StopReading(recv, 0), types.ErrNotInitialized)
}

func TestWriteReadInOrder(t *testing.T) {
	ctx := testContext(t)
	send, _, _, peerRecv := biPair(t)

	for _, chunk := range []string{"a", "bc", "def"} {
		n, err := Write(ctx, send, []byte(chunk), nil)
		require.NoError(t, err)
		assert.Equal(t, len(chunk), n)
	}
	require.NoError(t, Finish(send))

	data, err := ReadToEnd(ctx, peerRecv, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(data))

	_, err = Read(ctx, peerRecv, 4, nil)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReplyOnSameStream(t *testing.T) {
	ctx := testContext(t)
	_, recv, peerSend, _ := biPair(t)

	_, err := Write(ctx, peerSend, []byte("reply"), nil)
	require.NoError(t, err)

	got, err := Read(ctx, recv, 16, nil)
	require.NoError(t, err)
	assert.Equal(t, "reply", string(got))
}

func TestStopReading(t *testing.T) {
	_, _, _, peerRecv := biPair(t)
	assert.NoError(t, StopReading(peerRecv, 7))
}
