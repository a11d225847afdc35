//go:build linux || darwin

package xio

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/legamerdc/xio/poller"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	cfg := DefaultConfig()
	cfg.HousekeepingInterval = 50 * time.Millisecond
	l, err := NewLoop(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, l.Start())
	require.ErrorIs(t, l.Start(), ErrLoopStarted)
	require.Eventually(t, l.IsRunning, time.Second, time.Millisecond)
	t.Cleanup(func() { assert.NoError(t, l.Close()) })
	return l
}

// pipeHandler 记录排序与关闭回调
type pipeHandler struct {
	events atomic.Int64
	orders atomic.Int64
	closed chan struct{}
}

func (h *pipeHandler) OnEvent(*poller.Instance, poller.Flags) { h.events.Add(1) }
func (h *pipeHandler) OnOrder(*poller.Instance)               { h.orders.Add(1) }
func (h *pipeHandler) OnClose(*poller.Instance)               { close(h.closed) }

func attachedPipe(t *testing.T, l *Loop) (*poller.Instance, *pipeHandler, int) {
	t.Helper()
	var p [2]int
	require.NoError(t, unix.Pipe(p[:]))
	require.NoError(t, unix.SetNonblock(p[0], true))
	t.Cleanup(func() {
		unix.Close(p[0])
		unix.Close(p[1])
	})
	h := &pipeHandler{closed: make(chan struct{})}
	inst := poller.NewInstance(p[0], h)
	require.True(t, l.Attach(inst, poller.ModeIn))
	return inst, h, p[1]
}

func TestLoopTasks(t *testing.T) {
	l := startLoop(t)

	ran := make(chan struct{})
	require.True(t, l.AddTask(func() { close(ran) }))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task not run")
	}

	begin := time.Now()
	fired := make(chan time.Duration, 1)
	l.Dispatch(func() { fired <- time.Since(begin) }, 30*time.Millisecond)
	select {
	case d := <-fired:
		assert.GreaterOrEqual(t, d, 30*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("dispatched task not run")
	}
}

func TestLoopOrderCoalesces(t *testing.T) {
	l := startLoop(t)
	inst, h, _ := attachedPipe(t, l)

	done := make(chan struct{})
	require.True(t, l.AddTask(func() {
		for range 3 {
			l.RequestOrder(inst)
		}
		close(done)
	}))
	<-done
	require.Eventually(t, func() bool { return h.orders.Load() == 1 }, time.Second, time.Millisecond)

	l.RequestOrder(inst)
	require.Eventually(t, func() bool { return h.orders.Load() == 2 }, time.Second, time.Millisecond)
}

func TestLoopCloseInstance(t *testing.T) {
	l := startLoop(t)
	inst, h, wfd := attachedPipe(t, l)

	_, err := unix.Write(wfd, []byte{1})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.events.Load() > 0 }, time.Second, time.Millisecond)

	l.CloseInstance(inst)
	l.CloseInstance(inst)
	select {
	case <-h.closed:
	case <-time.After(time.Second):
		t.Fatal("OnClose not called")
	}
	assert.True(t, inst.IsClosing())

	// 摘除后不再交付，排序请求也被忽略
	seen := h.events.Load()
	_, err = unix.Write(wfd, []byte{2})
	require.NoError(t, err)
	l.RequestOrder(inst)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, seen, h.events.Load())
	assert.Zero(t, h.orders.Load())
}

func TestLoopStopAndClose(t *testing.T) {
	l, err := NewLoop(DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, l.Stop(context.Background()))
	require.NoError(t, l.Start())
	require.Eventually(t, l.IsRunning, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Stop(ctx))
	assert.False(t, l.IsRunning())

	require.NoError(t, l.Close())
	assert.False(t, l.AddTask(func() {}))
	assert.ErrorIs(t, l.Start(), ErrLoopClosed)
}
