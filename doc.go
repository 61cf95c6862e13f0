// Package bridge 把异步 P2P 网络栈桥接到单线程、回调驱动的宿主对象系统
//
// 网络操作（绑定、连接、接受、打开流、读写、主题广播）都在后台
// Runtime 上执行，每个操作提供两种调用方式：
//
//   - XxxBlocking(ctx, ...)：调用方阻塞直到完成，直接返回结果
//   - XxxAsync(...)：立即返回，完成后在宿主线程上发出 xxx_async_results 信号
//
// 异步结果只通过宿主对象的 ObjectID 投递。对象在操作完成前被销毁时，
// 结果被丢弃，结果中新建的连接或流不会登记到宿主，并随即被关闭。
//
// 宿主由调用方提供（实现 interfaces.Host）。pkg/lib/hostloop 是一个
// 单线程参考实现，快速开始：
//
//	loop := hostloop.New()
//	b, err := bridge.New(context.Background(), loop, bridge.WithPreset(config.PresetLocal))
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	ep := b.NewEndpoint()
//	if err := ep.BindBlocking(ctx, []string{"demo/1"}); err != nil {
//	    return err
//	}
//	fmt.Println(ep.Address())
//
// 异步调用通过 OnResult 订阅结果：
//
//	bridge.OnResult(ep, bridge.SignalConnectAsyncResults, func(r bridge.Result[*bridge.Connection]) {
//	    ...
//	})
//	ep.ConnectAsync(peer, "demo/1")
package bridge
