package runtime

import (
	"context"
	"sync"
)

// Future 后台任务的结果
type Future[T any] struct {
	done chan struct{}
	once sync.Once

	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) complete(v T, err error) {
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
	})
}

// Done 返回任务完成时关闭的通道
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait 等待任务完成
//
// ctx 结束只影响等待本身，不会取消任务。
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result 返回已完成任务的结果，未完成时 ok 为 false
func (f *Future[T]) Result() (v T, ok bool, err error) {
	select {
	case <-f.done:
		return f.value, true, f.err
	default:
		var zero T
		return zero, false, nil
	}
}
