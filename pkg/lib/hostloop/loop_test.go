package hostloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgif "github.com/dep2p/go-bridge/pkg/interfaces"
)

type testObject struct {
	id      pkgif.ObjectID
	signals []string
}

func (o *testObject) ObjectID() pkgif.ObjectID { return o.id }

func (o *testObject) EmitSignal(signal string, _ ...any) {
	o.signals = append(o.signals, signal)
}

func TestLoop_RegisterLookupFree(t *testing.T) {
	l := New()
	obj := &testObject{id: pkgif.NewObjectID()}

	id := l.Register(obj)
	assert.Equal(t, obj.id, id)
	assert.Equal(t, 1, l.Len())

	got, ok := l.Lookup(id)
	require.True(t, ok)
	assert.Same(t, obj, got)

	l.Free(id)
	_, ok = l.Lookup(id)
	assert.False(t, ok)
	assert.Equal(t, 0, l.Len())
}

func TestLoop_CallDeferredRunsOnDrainingGoroutine(t *testing.T) {
	l := New()

	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			// 后台 goroutine 只入队，不直接修改 order
			assert.NoError(t, l.CallDeferred(func() { order = append(order, i) }))
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, l.Pending())
	assert.Equal(t, 3, l.Drain())
	assert.ElementsMatch(t, []int{0, 1, 2}, order)
	assert.Equal(t, 0, l.Pending())
}

func TestLoop_DrainRunsNestedDeferred(t *testing.T) {
	l := New()

	var ran []string
	require.NoError(t, l.CallDeferred(func() {
		ran = append(ran, "outer")
		_ = l.CallDeferred(func() { ran = append(ran, "inner") })
	}))

	assert.Equal(t, 2, l.Drain())
	assert.Equal(t, []string{"outer", "inner"}, ran)
}

func TestLoop_PanicDoesNotStopLoop(t *testing.T) {
	l := New()

	ran := false
	require.NoError(t, l.CallDeferred(func() { panic("boom") }))
	require.NoError(t, l.CallDeferred(func() { ran = true }))

	assert.NotPanics(t, func() { l.Drain() })
	assert.True(t, ran)
}

func TestLoop_RunUntil(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := false
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = l.CallDeferred(func() { done = true })
	}()

	require.NoError(t, l.RunUntil(ctx, func() bool { return done }))
	assert.True(t, done)
}

func TestLoop_RunUntilTimeout(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.RunUntil(ctx, func() bool { return false })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoop_Stop(t *testing.T) {
	l := New()

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(context.Background()) }()

	l.Stop()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(5 * time.Second):
		t.Fatal("Run 未在 Stop 后返回")
	}

	assert.ErrorIs(t, l.CallDeferred(func() {}), ErrStopped)
}
