package config

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bridge/pkg/types"
)

var testPeerID = func() string {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = 1
	id, err := types.PeerIDFromPublicKey(ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey))
	if err != nil {
		panic(err)
	}
	return id.String()
}()

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.Runtime.ShutdownGrace.Duration())
	assert.True(t, cfg.Discovery.EnableMemory)
	assert.False(t, cfg.Discovery.EnableMDNS)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"关闭宽限期为零", func(c *Config) { c.Runtime.ShutdownGrace = 0 }},
		{"监听地址无效", func(c *Config) { c.Transport.ListenAddr = "nope" }},
		{"空闲超时为零", func(c *Config) { c.Transport.QUIC.MaxIdleTimeout = 0 }},
		{"KeepAlive 不短于空闲超时", func(c *Config) {
			c.Transport.QUIC.KeepAlivePeriod = c.Transport.QUIC.MaxIdleTimeout
		}},
		{"流数量为负", func(c *Config) { c.Transport.QUIC.MaxIncomingStreams = -1 }},
		{"mDNS 缺少服务名", func(c *Config) {
			c.Discovery.EnableMDNS = true
			c.Discovery.MDNSService = ""
		}},
		{"已知节点 ID 无效", func(c *Config) {
			c.Discovery.KnownPeers = []KnownPeer{{PeerID: "bad", Addrs: []string{"127.0.0.1:1"}}}
		}},
		{"已知节点为全零公钥", func(c *Config) {
			c.Discovery.KnownPeers = []KnownPeer{{PeerID: "11111111111111111111111111111111", Addrs: []string{"127.0.0.1:1"}}}
		}},
		{"已知节点缺少地址", func(c *Config) {
			c.Discovery.KnownPeers = []KnownPeer{{PeerID: testPeerID}}
		}},
		{"已知节点地址无效", func(c *Config) {
			c.Discovery.KnownPeers = []KnownPeer{{PeerID: testPeerID, Addrs: []string{"localhost"}}}
		}},
		{"消息上限为零", func(c *Config) { c.Gossip.MaxMessageSize = 0 }},
		{"帧速率为负", func(c *Config) { c.Gossip.FrameRate = -1 }},
		{"限流缺少突发容量", func(c *Config) { c.Gossip.FrameBurst = 0 }},
		{"日志级别无效", func(c *Config) { c.Log.Level = "loud" }},
		{"日志格式无效", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFromJSON(t *testing.T) {
	data := []byte(`{
		"runtime": {"shutdown_grace": "2s"},
		"transport": {"listen_addr": "127.0.0.1:4433"},
		"discovery": {
			"known_peers": [{"peer_id": "` + testPeerID + `", "addrs": ["127.0.0.1:9000"]}]
		},
		"log": {"level": "core/endpoint=debug,info"}
	}`)

	cfg, err := FromJSON(data)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2*time.Second, cfg.Runtime.ShutdownGrace.Duration())
	assert.Equal(t, "127.0.0.1:4433", cfg.Transport.ListenAddr)
	// 未出现的字段保留默认值
	assert.Equal(t, DefaultTransportConfig().QUIC, cfg.Transport.QUIC)
	assert.Equal(t, DefaultGossipConfig(), cfg.Gossip)
	require.Len(t, cfg.Discovery.KnownPeers, 1)
	assert.Equal(t, []string{"127.0.0.1:9000"}, cfg.Discovery.KnownPeers[0].Addrs)

	_, err = FromJSON([]byte(`{"runtime": {"shutdown_grace": "soon"}}`))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("有效文件", func(t *testing.T) {
		path := filepath.Join(dir, "ok.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"gossip": {"event_buffer": 8}}`), 0o600))
		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 8, cfg.Gossip.EventBuffer)
	})

	t.Run("验证失败", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"gossip": {"event_buffer": -1}}`), 0o600))
		_, err := LoadFile(path)
		assert.Error(t, err)
	})

	t.Run("文件不存在", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "missing.json"))
		assert.Error(t, err)
	})
}

func TestConfig_ToJSONAndClone(t *testing.T) {
	cfg := NewConfig()
	cfg.Discovery.KnownPeers = []KnownPeer{{PeerID: testPeerID, Addrs: []string{"127.0.0.1:1"}}}

	data, err := cfg.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"shutdown_grace": "5s"`)

	clone := cfg.Clone()
	clone.Discovery.KnownPeers[0].Addrs[0] = "127.0.0.1:2"
	assert.Equal(t, "127.0.0.1:1", cfg.Discovery.KnownPeers[0].Addrs[0])
}

func TestApplyPreset(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, ApplyPreset(cfg, PresetLocal))
		assert.Equal(t, "127.0.0.1:0", cfg.Transport.ListenAddr)
		assert.False(t, cfg.Discovery.EnableMDNS)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("lan", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, ApplyPreset(cfg, PresetLAN))
		assert.True(t, cfg.Discovery.EnableMDNS)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("未知预设", func(t *testing.T) {
		assert.Error(t, ApplyPreset(NewConfig(), "mobile"))
		assert.Error(t, ApplyPreset(nil, PresetLocal))
	})
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"250ms"`)))
	assert.Equal(t, 250*time.Millisecond, d.Duration())

	require.NoError(t, d.UnmarshalJSON([]byte(`1000`)))
	assert.Equal(t, time.Microsecond, d.Duration())

	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))

	out, err := Duration(3 * time.Second).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"3s"`, string(out))
}
