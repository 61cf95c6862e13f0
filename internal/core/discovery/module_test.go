package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	pkgif "github.com/dep2p/go-bridge/pkg/interfaces"
)

// ============================================================================
// Fx 模块测试
// ============================================================================

func TestModule_Load(t *testing.T) {
	peer := testPeer(1)
	cfg := DefaultConfig()
	cfg.KnownPeers = []KnownPeer{{PeerID: peer.String(), Addrs: []string{"127.0.0.1:4433"}}}

	var (
		svc *Service
		d   pkgif.AddrDiscovery
	)
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&svc, &d),
	)
	app.RequireStart()
	defer app.RequireStop()

	require.NotNil(t, svc)
	assert.Same(t, svc, d)
	assert.Equal(t, 1, svc.AddressBook().Len())

	addrs, err := d.Resolve(context.Background(), peer)
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, "127.0.0.1:4433", addrs[0].String())
}

func TestModule_InvalidKnownPeer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KnownPeers = []KnownPeer{{PeerID: "bad", Addrs: []string{"127.0.0.1:1"}}}

	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg),
		Module(),
		fx.Invoke(func(*Service) {}),
	)
	assert.Error(t, app.Err())
}
