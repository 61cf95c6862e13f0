// Package main 提供 go-bridge 演示程序
//
// 演示程序自己扮演单线程宿主：主 goroutine 运行 hostloop，
// 所有网络操作以异步方式派发，结果通过信号回到主 goroutine。
//
//	bridge-demo -mode serve                         # 回显服务
//	bridge-demo -mode dial -peer <id> -addr <ip:port> -msg hi
//	bridge-demo -mode chat -topic lobby [-peer <id> -addr <ip:port>]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bridge "github.com/dep2p/go-bridge"
	"github.com/dep2p/go-bridge/config"
	"github.com/dep2p/go-bridge/pkg/lib/hostloop"
	"github.com/dep2p/go-bridge/internal/core/identity"
	"github.com/dep2p/go-bridge/pkg/lib/log"
)

var logger = log.Logger("cmd/bridge-demo")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
var (
	mode         = flag.String("mode", "serve", "运行模式 (serve/dial/chat)")
	configFile   = flag.String("config", "", "配置文件路径")
	preset       = flag.String("preset", "", "预设配置 (default/local/lan)")
	listen       = flag.String("listen", "", "UDP 监听地址，例如 0.0.0.0:4433")
	identityFile = flag.String("identity", "", "身份密钥文件路径（不存在时创建）")
	metricsAddr  = flag.String("metrics", "", "Prometheus 指标监听地址，例如 :9100")

	peer = flag.String("peer", "", "对端节点 ID")
	addr = flag.String("addr", "", "对端 UDP 地址（ip:port）")
	alpn = flag.String("alpn", "demo/1", "应用协议")
	msg  = flag.String("msg", "hello from go-bridge", "dial 模式发送的消息")

	topic = flag.String("topic", "lobby", "chat 模式的主题名")

	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println("go-bridge", bridge.Version)
		return nil
	}

	opts, err := buildOptions()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := hostloop.New()
	b, err := bridge.New(ctx, loop, opts...)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = b.Close() }()

	if *metricsAddr != "" {
		srv := serveMetrics(b, *metricsAddr)
		defer func() { _ = srv.Close() }()
	}

	ep := b.NewEndpoint()
	if *identityFile != "" {
		if err := useIdentity(ep, *identityFile); err != nil {
			return err
		}
	}
	if err := ep.BindBlocking(ctx, []string{*alpn}); err != nil {
		return err
	}
	defer func() { _ = ep.Close() }()

	fmt.Printf("节点 ID:  %s\n", ep.Address())
	for _, a := range ep.DirectAddresses() {
		fmt.Printf("直连地址: %s\n", a)
	}

	if *peer != "" && *addr != "" {
		if err := ep.AddPeerAddr(*peer, *addr); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	switch *mode {
	case "serve":
		startServe(ep)
	case "dial":
		if *peer == "" {
			return errors.New("dial 模式需要 -peer")
		}
		startDial(ep, *peer, *alpn, []byte(*msg), cancel)
	case "chat":
		if err := startChat(ctx, b, ep, *topic, *peer); err != nil {
			return err
		}
	default:
		return fmt.Errorf("未知模式 %q", *mode)
	}

	// 主 goroutine 即宿主线程
	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// buildOptions 构建选项
//
// 优先级（从高到低）：命令行参数、BRIDGE_* 环境变量、配置文件、预设。
func buildOptions() ([]bridge.Option, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	presetName := envPreset()
	if *preset != "" {
		presetName = *preset
	}
	if presetName != "" {
		if err := config.ApplyPreset(cfg, presetName); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if *listen != "" {
		cfg.Transport.ListenAddr = *listen
	}
	return []bridge.Option{bridge.WithConfig(cfg)}, nil
}

// useIdentity 从文件加载身份，文件不存在时生成并保存
func useIdentity(ep *bridge.Endpoint, path string) error {
	id, err := identity.LoadOrCreate(path)
	if err != nil {
		return fmt.Errorf("加载身份失败: %w", err)
	}
	pem, err := id.MarshalPEM()
	if err != nil {
		return err
	}
	return ep.UseSecretKey(pem)
}

// serveMetrics 在后台暴露 /metrics
func serveMetrics(b *bridge.Bridge, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", b.MetricsHandler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("指标服务退出", "error", err)
		}
	}()
	fmt.Printf("指标地址: http://%s/metrics\n", addr)
	return srv
}
