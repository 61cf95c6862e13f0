package delivery

import (
	"sync"
)

// Handler 信号处理函数
type Handler func(args ...any)

// Signals 宿主对象的命名信号表
//
// 嵌入到宿主对象中即可满足 interfaces.Object 的 EmitSignal。
// Connect 与 EmitSignal 都应在宿主线程上调用；内部加锁只为容忍误用。
type Signals struct {
	mu       sync.Mutex
	handlers map[string][]Handler
}

// Connect 为 signal 注册处理函数
func (s *Signals) Connect(signal string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[string][]Handler)
	}
	s.handlers[signal] = append(s.handlers[signal], h)
}

// DisconnectAll 移除 signal 的全部处理函数
func (s *Signals) DisconnectAll(signal string) {
	s.mu.Lock()
	delete(s.handlers, signal)
	s.mu.Unlock()
}

// EmitSignal 依次调用 signal 的处理函数
func (s *Signals) EmitSignal(signal string, args ...any) {
	s.mu.Lock()
	hs := append([]Handler(nil), s.handlers[signal]...)
	s.mu.Unlock()

	for _, h := range hs {
		h(args...)
	}
}

// Bind 注册类型化的结果处理函数
//
// 信号参数不是 Result[T] 时忽略。
func Bind[T any](s *Signals, signal string, fn func(Result[T])) {
	s.Connect(signal, func(args ...any) {
		if len(args) == 0 {
			return
		}
		if r, ok := args[0].(Result[T]); ok {
			fn(r)
		}
	})
}
