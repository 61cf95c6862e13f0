package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"lukechampine.com/blake3"

	bridge "github.com/dep2p/go-bridge"
	"github.com/dep2p/go-bridge/pkg/lib/log"
)

const readChunk = 4096

// ============================================================================
//                              serve：回显
// ============================================================================

// startServe 接受连接并回显每个双向流
func startServe(ep *bridge.Endpoint) {
	bridge.OnResult(ep, bridge.SignalAcceptAsyncResults, func(r bridge.Result[*bridge.Connection]) {
		if r.Err != nil {
			logger.Warn("接受连接失败，停止服务", "error", r.Err)
			return
		}
		fmt.Printf("接入连接: %s (%s)\n", r.Value.RemotePeer(), r.Value.ALPN())
		serveConn(r.Value)
		ep.AcceptAsync()
	})
	ep.AcceptAsync()
	fmt.Println("等待连接，按 Ctrl+C 退出")
}

func serveConn(conn *bridge.Connection) {
	bridge.OnResult(conn, bridge.SignalAcceptBiAsyncResults, func(r bridge.Result[*bridge.Stream]) {
		if r.Err != nil {
			logger.Debug("连接结束", "peer", conn.RemotePeer(), "error", r.Err)
			conn.Free()
			return
		}
		echo(r.Value)
		conn.AcceptBiAsync()
	})
	conn.AcceptBiAsync()
}

// echo 读一块写一块，对端结束发送后结束本端发送
func echo(s *bridge.Stream) {
	bridge.OnResult(s, bridge.SignalReadAsyncResults, func(r bridge.Result[[]byte]) {
		switch {
		case errors.Is(r.Err, io.EOF):
			_ = s.Finish()
			s.Free()
		case r.Err != nil:
			logger.Debug("读取失败", "error", r.Err)
			s.Free()
		default:
			s.WriteAsync(r.Value)
		}
	})
	bridge.OnResult(s, bridge.SignalWriteAsyncResults, func(r bridge.Result[int]) {
		if r.Err != nil {
			logger.Debug("写入失败", "error", r.Err)
			s.Free()
			return
		}
		s.ReadAsync(readChunk)
	})
	s.ReadAsync(readChunk)
}

// ============================================================================
//                              dial：发送一条消息并打印回显
// ============================================================================

func startDial(ep *bridge.Endpoint, peer, alpn string, payload []byte, done context.CancelFunc) {
	fail := func(step string, err error) {
		fmt.Fprintf(os.Stderr, "%s失败: %v\n", step, err)
		done()
	}

	bridge.OnResult(ep, bridge.SignalConnectAsyncResults, func(r bridge.Result[*bridge.Connection]) {
		if r.Err != nil {
			fail("连接", r.Err)
			return
		}
		conn := r.Value
		fmt.Printf("已连接: %s\n", conn.RemotePeer())

		bridge.OnResult(conn, bridge.SignalOpenBiAsyncResults, func(r bridge.Result[*bridge.Stream]) {
			if r.Err != nil {
				fail("打开流", r.Err)
				return
			}
			roundTrip(r.Value, payload, fail, done)
		})
		conn.OpenBiAsync()
	})
	ep.ConnectAsync(peer, alpn)
}

func roundTrip(s *bridge.Stream, payload []byte, fail func(string, error), done context.CancelFunc) {
	var reply []byte

	bridge.OnResult(s, bridge.SignalWriteAsyncResults, func(r bridge.Result[int]) {
		if r.Err != nil {
			fail("写入", r.Err)
			return
		}
		if err := s.Finish(); err != nil {
			fail("结束发送", err)
			return
		}
		s.ReadAsync(readChunk)
	})
	bridge.OnResult(s, bridge.SignalReadAsyncResults, func(r bridge.Result[[]byte]) {
		reply = append(reply, r.Value...)
		switch {
		case errors.Is(r.Err, io.EOF):
			fmt.Printf("回显: %s\n", reply)
			done()
		case r.Err != nil:
			fail("读取", r.Err)
		default:
			s.ReadAsync(readChunk)
		}
	})
	s.WriteAsync(payload)
}

// ============================================================================
//                              chat：主题广播
// ============================================================================

// startChat 订阅主题，标准输入的每一行作为一条广播
//
// 主题 ID 为主题名的 BLAKE3 摘要。
func startChat(ctx context.Context, b *bridge.Bridge, ep *bridge.Endpoint, name, peer string) error {
	g := b.NewGossip()
	if err := g.SpawnBlocking(ctx, ep); err != nil {
		return err
	}
	router := b.NewRouter()
	if err := router.BindBlocking(ctx, ep, g); err != nil {
		return err
	}

	bridge.OnResult(g, bridge.SignalGossipEvent, func(r bridge.Result[bridge.GossipEvent]) {
		ev := r.Value
		switch ev.Kind {
		case "received":
			fmt.Printf("[%s] %s\n", log.TruncateID(ev.Origin, 8), ev.Content)
		case "lagged":
			fmt.Println("(部分消息因处理过慢被丢弃)")
		default:
			fmt.Printf("* %s %s\n", ev.Kind, log.TruncateID(ev.Peer, 8))
		}
	})
	bridge.OnResult(g, bridge.SignalBroadcastAsyncResults, func(r bridge.Result[bridge.Unit]) {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "广播失败: %v\n", r.Err)
		}
	})
	bridge.OnResult(g, bridge.SignalSubscribeAsyncResults, func(r bridge.Result[bridge.Unit]) {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "订阅失败: %v\n", r.Err)
			return
		}
		fmt.Printf("已加入主题 %q，输入消息后回车发送\n", name)
		go readLines(b, g)
	})

	var peers []string
	if peer != "" {
		peers = append(peers, peer)
	}
	id := blake3.Sum256([]byte(name))
	g.SubscribeAsync(id[:], peers)
	return nil
}

// readLines 在后台读取标准输入，通过宿主队列发起广播
func readLines(b *bridge.Bridge, g *bridge.Gossip) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}
		if err := b.Host().CallDeferred(func() { g.BroadcastAsync(line) }); err != nil {
			return
		}
	}
}
