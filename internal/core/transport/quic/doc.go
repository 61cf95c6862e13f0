// Package quic 实现基于 quic-go 的 P2P 端点
//
// Endpoint 在一个 UDP socket 上同时监听与拨号，节点身份就是
// Ed25519 公钥，TLS 握手时互相校验证书公钥。
//
// # 地址
//
// 节点以 PeerID 寻址，拨号前通过 AddrDiscovery 把 PeerID 解析为
// UDP 地址，Endpoint 绑定后会把自身直连地址公布出去。
//
// # ALPN
//
// 监听端接受的 ALPN 列表在绑定时给出，之后可以通过 AddALPN 追加；
// 拨号端每次只提供一个 ALPN。
//
// # 使用示例
//
//	ep, err := quic.Listen(ctx, quic.Options{Identity: id, ALPNs: []string{"demo/1"}})
//	if err != nil {
//	    return err
//	}
//	defer ep.Close()
//
//	conn, err := ep.Connect(ctx, remote, "demo/1")
//	send, recv, err := conn.OpenBi(ctx)
package quic
