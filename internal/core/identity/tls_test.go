package identity

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bridge/pkg/types"
)

func TestCertificate_CarriesPeerID(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	cert, err := id.Certificate()
	require.NoError(t, err)

	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)

	got, err := peerIDFromCertificate(parsed)
	require.NoError(t, err)
	assert.Equal(t, id.ID(), got)

	require.NoError(t, verifyPeerCertificate(id.ID())(cert.Certificate, nil))
}

func TestVerifyPeerCertificate(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)
	other, err := Generate()
	require.NoError(t, err)

	cert, err := id.Certificate()
	require.NoError(t, err)

	t.Run("期望节点匹配", func(t *testing.T) {
		assert.NoError(t, verifyPeerCertificate(id.ID())(cert.Certificate, nil))
	})

	t.Run("监听端接受任意有效证书", func(t *testing.T) {
		assert.NoError(t, verifyAnyPeer(cert.Certificate, nil))
	})

	t.Run("非 CA 自签名证书可以通过签名校验", func(t *testing.T) {
		parsed, err := x509.ParseCertificate(cert.Certificate[0])
		require.NoError(t, err)
		assert.False(t, parsed.IsCA)

		got, err := certificatePeerID(cert.Certificate)
		require.NoError(t, err)
		assert.Equal(t, id.ID(), got)
	})

	t.Run("签名被篡改", func(t *testing.T) {
		raw := append([]byte(nil), cert.Certificate[0]...)
		raw[len(raw)-1] ^= 0xff
		_, err := certificatePeerID([][]byte{raw})
		assert.Error(t, err)
		assert.Error(t, verifyAnyPeer([][]byte{raw}, nil))
	})

	t.Run("空期望节点不能关闭校验", func(t *testing.T) {
		err := verifyPeerCertificate(types.EmptyPeerID)(cert.Certificate, nil)
		assert.ErrorIs(t, err, ErrPeerIDMismatch)

		_, err = other.ClientTLSConfig(types.EmptyPeerID, "demo/1")
		assert.ErrorIs(t, err, types.ErrInvalidPeerID)
	})

	t.Run("期望节点不匹配", func(t *testing.T) {
		err := verifyPeerCertificate(other.ID())(cert.Certificate, nil)
		assert.ErrorIs(t, err, ErrPeerIDMismatch)
	})

	t.Run("没有证书", func(t *testing.T) {
		err := verifyPeerCertificate(id.ID())(nil, nil)
		assert.ErrorIs(t, err, ErrNoPeerCertificate)
		assert.ErrorIs(t, verifyAnyPeer(nil, nil), ErrNoPeerCertificate)
	})
}

// handshake 在内存管道上完成一次 TLS 握手
func handshake(t *testing.T, serverCfg, clientCfg *tls.Config) (tls.ConnectionState, tls.ConnectionState, error) {
	t.Helper()

	c1, c2 := net.Pipe()
	server := tls.Server(c1, serverCfg)
	client := tls.Client(c2, clientCfg)
	defer server.Close()
	defer client.Close()

	_ = c1.SetDeadline(time.Now().Add(5 * time.Second))
	_ = c2.SetDeadline(time.Now().Add(5 * time.Second))

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Handshake() }()

	clientErr := client.Handshake()
	if clientErr != nil {
		c2.Close()
		c1.Close()
		<-serverErr
		return tls.ConnectionState{}, tls.ConnectionState{}, clientErr
	}
	if err := <-serverErr; err != nil {
		return tls.ConnectionState{}, tls.ConnectionState{}, err
	}
	return server.ConnectionState(), client.ConnectionState(), nil
}

func TestTLSHandshake(t *testing.T) {
	srv, err := Generate()
	require.NoError(t, err)
	cli, err := Generate()
	require.NoError(t, err)

	alpns := []string{"demo/1"}
	serverCfg, err := srv.ServerTLSConfig(func() []string { return alpns })
	require.NoError(t, err)

	t.Run("双向身份与 ALPN", func(t *testing.T) {
		clientCfg, err := cli.ClientTLSConfig(srv.ID(), "demo/1")
		require.NoError(t, err)

		sState, cState, err := handshake(t, serverCfg, clientCfg)
		require.NoError(t, err)

		assert.Equal(t, "demo/1", cState.NegotiatedProtocol)

		remote, err := PeerIDFromConnectionState(sState)
		require.NoError(t, err)
		assert.Equal(t, cli.ID(), remote)

		remote, err = PeerIDFromConnectionState(cState)
		require.NoError(t, err)
		assert.Equal(t, srv.ID(), remote)
	})

	t.Run("动态追加的 ALPN", func(t *testing.T) {
		alpns = append(alpns, "/bridge/gossip/1.0.0")
		clientCfg, err := cli.ClientTLSConfig(srv.ID(), "/bridge/gossip/1.0.0")
		require.NoError(t, err)

		_, cState, err := handshake(t, serverCfg, clientCfg)
		require.NoError(t, err)
		assert.Equal(t, "/bridge/gossip/1.0.0", cState.NegotiatedProtocol)
	})

	t.Run("对端身份错误", func(t *testing.T) {
		clientCfg, err := cli.ClientTLSConfig(cli.ID(), "demo/1")
		require.NoError(t, err)

		_, _, err = handshake(t, serverCfg, clientCfg)
		assert.ErrorIs(t, err, ErrPeerIDMismatch)
	})
}
