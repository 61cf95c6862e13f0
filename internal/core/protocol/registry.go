// Package protocol 按 ALPN 把入站连接分发给协议处理器
//
// Router 接管 Endpoint 的入站连接：握手协商出的 ALPN 决定由哪个
// Handler 处理该连接，没有对应处理器的连接被立即关闭。
package protocol

import (
	"context"
	"sort"
	"sync"

	"github.com/dep2p/go-bridge/internal/core/transport/quic"
)

// Handler 协议处理器
type Handler interface {
	// Accept 处理一个已协商到本协议的入站连接
	//
	// 在独立的 goroutine 中调用，可以长时间运行。
	Accept(ctx context.Context, conn *quic.Conn) error

	// Shutdown 路由器关闭时调用
	Shutdown(ctx context.Context) error
}

// HandlerFunc 只处理连接、不需要关闭逻辑的处理器
type HandlerFunc func(ctx context.Context, conn *quic.Conn) error

// Accept 调用 f
func (f HandlerFunc) Accept(ctx context.Context, conn *quic.Conn) error {
	return f(ctx, conn)
}

// Shutdown 无操作
func (f HandlerFunc) Shutdown(context.Context) error {
	return nil
}

// Registry 协议注册表
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry 创建协议注册表
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register 注册协议处理器
func (r *Registry) Register(alpn string, h Handler) error {
	if alpn == "" || h == nil {
		return ErrInvalidProtocolID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[alpn]; exists {
		return ErrDuplicateProtocol
	}
	r.handlers[alpn] = h
	return nil
}

// Unregister 注销协议处理器
func (r *Registry) Unregister(alpn string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[alpn]; !exists {
		return ErrProtocolNotRegistered
	}
	delete(r.handlers, alpn)
	return nil
}

// Get 获取协议处理器
func (r *Registry) Get(alpn string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[alpn]
	return h, ok
}

// ALPNs 返回已注册的协议（排序）
func (r *Registry) ALPNs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for alpn := range r.handlers {
		out = append(out, alpn)
	}
	sort.Strings(out)
	return out
}

// handlers 返回处理器快照
func (r *Registry) snapshot() map[string]Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Handler, len(r.handlers))
	for k, v := range r.handlers {
		out[k] = v
	}
	return out
}
