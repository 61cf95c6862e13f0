// Package handle 提供跨线程共享的网络对象句柄
//
// Shared 是一个互斥保护的可选值：宿主线程上的门面对象与后台任务
// 共享同一个 Shared（共享指针，而不是复制），后台任务完成后把新建的
// 网络对象写入其中。
//
// 约束：
//   - 初始为空
//   - 读取总是在锁内进行
//   - 锁只保护取值/赋值本身，绝不在持锁期间执行阻塞网络调用
//   - 覆盖已有值时记录警告（最后写入者获胜）
package handle

import (
	"sync"

	"github.com/dep2p/go-bridge/pkg/lib/log"
)

var logger = log.Logger("core/handle")

// Shared 共享句柄
type Shared[T any] struct {
	name string

	mu    sync.Mutex
	value T
	set   bool
}

// New 创建空句柄
//
// name 仅用于日志。
func New[T any](name string) *Shared[T] {
	return &Shared[T]{name: name}
}

// Of 创建已填充的句柄
func Of[T any](name string, v T) *Shared[T] {
	return &Shared[T]{name: name, value: v, set: true}
}

// Name 返回句柄名称
func (s *Shared[T]) Name() string {
	return s.name
}

// Load 读取当前值
//
// 返回值是快照；调用方在锁外使用它。
func (s *Shared[T]) Load() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.set
}

// IsSet 检查是否已填充
func (s *Shared[T]) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Store 写入新值，返回是否覆盖了已有值
func (s *Shared[T]) Store(v T) bool {
	s.mu.Lock()
	replaced := s.set
	s.value = v
	s.set = true
	s.mu.Unlock()

	if replaced {
		logger.Warn("覆盖已存在的网络句柄", "handle", s.name)
	}
	return replaced
}

// Take 取出当前值并清空
func (s *Shared[T]) Take() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.value, s.set
	var zero T
	s.value = zero
	s.set = false
	return v, ok
}

// Clear 清空句柄
func (s *Shared[T]) Clear() {
	s.Take()
}
