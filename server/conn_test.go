//go:build linux || darwin

package server

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/legamerdc/xio"
	"github.com/legamerdc/xio/stream"
)

func startLoop(t *testing.T) *xio.Loop {
	t.Helper()
	cfg := xio.DefaultConfig()
	cfg.HousekeepingInterval = 100 * time.Millisecond
	l, err := xio.NewLoop(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, l.Start())
	require.Eventually(t, l.IsRunning, time.Second, time.Millisecond)
	t.Cleanup(func() { assert.NoError(t, l.Close()) })
	return l
}

// pair 返回挂在 loop 上的 Conn 与阻塞的对端 fd
func pair(t *testing.T, l *xio.Loop) (*Conn, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	c, err := NewConn(l, fds[0])
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close()
		unix.Close(fds[1])
	})
	return c, fds[1]
}

func readPeer(t *testing.T, fd int, n int) []byte {
	t.Helper()
	out := make([]byte, n)
	for got := 0; got < n; {
		m, err := unix.Read(fd, out[got:])
		require.NoError(t, err)
		require.Positive(t, m)
		got += m
	}
	return out
}

func TestConnWriteWaitsForOutReadiness(t *testing.T) {
	l := startLoop(t)
	c, peer := pair(t, l)

	src := bytes.Repeat([]byte("0123456789abcdef"), 1<<18)
	res := make(chan stream.IoResult, 1)
	go func() { res <- stream.WriteFully(context.Background(), c, src, 5*time.Second) }()

	// 对端稍后才开始读，写方必然经历 WouldBlock 再由 Out 就绪唤醒
	time.Sleep(50 * time.Millisecond)
	got := readPeer(t, peer, len(src))
	assert.Equal(t, stream.IoResult(len(src)), <-res)
	assert.Equal(t, src, got)
}

func TestConnReadChunkAndTimeout(t *testing.T) {
	l := startLoop(t)
	c, peer := pair(t, l)
	ctx := context.Background()

	go func() {
		time.Sleep(20 * time.Millisecond)
		unix.Write(peer, []byte{0x05, 0, 0})
		time.Sleep(20 * time.Millisecond)
		unix.Write(peer, []byte{0, 'h', 'e', 'l', 'l', 'o'})
	}()
	p, ok := stream.ReadChunk(ctx, c, 1024, time.Second)
	require.True(t, ok)
	assert.Equal(t, "hello", string(p))

	begin := time.Now()
	assert.Equal(t, stream.WouldBlock, stream.ReadFully(ctx, c, make([]byte, 4), 30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(begin), 25*time.Millisecond)

	require.True(t, stream.WriteChunk(ctx, c, []byte("pong"), time.Second))
	assert.Equal(t, []byte{4, 0, 0, 0, 'p', 'o', 'n', 'g'}, readPeer(t, peer, 8))

	unix.Shutdown(peer, unix.SHUT_WR)
	assert.Equal(t, stream.Ended, stream.ReadFully(ctx, c, make([]byte, 4), time.Second))
	assert.True(t, c.IsEnded())
}

func TestConnCloseWakesParkedReader(t *testing.T) {
	l := startLoop(t)
	c, _ := pair(t, l)

	res := make(chan stream.IoResult, 1)
	go func() { res <- stream.ReadFully(context.Background(), c, make([]byte, 4), stream.Infinite) }()
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, c.Close())
	select {
	case r := <-res:
		assert.Equal(t, stream.Error, r)
	case <-time.After(2 * time.Second):
		t.Fatal("parked reader not woken by close")
	}
	_, queued := c.ReadAsync(make([]byte, 1), func(int, bool) {})
	assert.False(t, queued)
}

func TestConnAsyncChunks(t *testing.T) {
	l := startLoop(t)
	c, peer := pair(t, l)

	got := make(chan []byte, 1)
	stream.ReadChunkAsync(c, 1024, time.Second, func(p []byte, ok bool) {
		if ok {
			got <- p
		} else {
			got <- nil
		}
	})
	_, err := unix.Write(peer, []byte{3, 0, 0, 0, 'a', 'b', 'c'})
	require.NoError(t, err)
	select {
	case p := <-got:
		assert.Equal(t, "abc", string(p))
	case <-time.After(2 * time.Second):
		t.Fatal("async read not completed")
	}

	sent := make(chan bool, 1)
	stream.WriteChunkAsync(c, []byte("xyz"), time.Second, func(ok bool) { sent <- ok })
	assert.True(t, <-sent)
	assert.Equal(t, []byte{3, 0, 0, 0, 'x', 'y', 'z'}, readPeer(t, peer, 7))
}

func TestConnWaitInsideDeliveryReturnsFalse(t *testing.T) {
	l := startLoop(t)
	c, peer := pair(t, l)

	type result struct {
		parked  bool
		elapsed time.Duration
	}
	res := make(chan result, 1)
	_, queued := c.ReadAsync(make([]byte, 1), func(int, bool) {
		begin := time.Now()
		ok := c.WaitRead(time.Second)
		res <- result{ok, time.Since(begin)}
	})
	require.True(t, queued)
	_, err := unix.Write(peer, []byte{1})
	require.NoError(t, err)
	r := <-res
	assert.False(t, r.parked)
	assert.Less(t, r.elapsed, 500*time.Millisecond)
}

func TestConnReadFullyInsideDeliveryDoesNotSpin(t *testing.T) {
	l := startLoop(t)
	c, peer := pair(t, l)

	type result struct {
		r       stream.IoResult
		elapsed time.Duration
	}
	res := make(chan result, 1)
	_, queued := c.ReadAsync(make([]byte, 1), func(int, bool) {
		begin := time.Now()
		r := stream.ReadFully(context.Background(), c, make([]byte, 4), stream.Infinite)
		res <- result{r, time.Since(begin)}
	})
	require.True(t, queued)
	_, err := unix.Write(peer, []byte{1})
	require.NoError(t, err)
	select {
	case r := <-res:
		assert.Equal(t, stream.WouldBlock, r.r)
		assert.Less(t, r.elapsed, 100*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("read inside delivery did not return")
	}

	// loop 仍可继续服务
	_, err = unix.Write(peer, []byte{9})
	require.NoError(t, err)
	got := make(chan int, 1)
	_, queued = c.ReadAsync(make([]byte, 1), func(n int, _ bool) { got <- n })
	require.True(t, queued)
	select {
	case n := <-got:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("loop stalled")
	}
}

func TestConnAsyncChunkAfterTimeout(t *testing.T) {
	l := startLoop(t)
	c, peer := pair(t, l)

	first := make(chan bool, 1)
	stream.ReadChunkAsync(c, 1024, 50*time.Millisecond, func(_ []byte, ok bool) { first <- ok })
	select {
	case ok := <-first:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout not reported")
	}

	_, err := unix.Write(peer, []byte{5, 0, 0, 0, 'h', 'e', 'l', 'l', 'o'})
	require.NoError(t, err)
	got := make(chan []byte, 1)
	stream.ReadChunkAsync(c, 1024, time.Second, func(p []byte, ok bool) {
		if !ok {
			p = nil
		}
		got <- p
	})
	select {
	case p := <-got:
		assert.Equal(t, "hello", string(p))
	case <-time.After(2 * time.Second):
		t.Fatal("second read not completed")
	}
}

func TestConnWithdrawAsyncRead(t *testing.T) {
	l := startLoop(t)
	c, peer := pair(t, l)

	cancel, queued := c.ReadAsync(make([]byte, 4), func(int, bool) { t.Error("withdrawn request completed") })
	require.True(t, queued)
	assert.True(t, cancel())
	assert.False(t, cancel())

	_, err := unix.Write(peer, []byte("ab"))
	require.NoError(t, err)
	got := make(chan string, 1)
	p := make([]byte, 4)
	_, queued = c.ReadAsync(p, func(n int, _ bool) { got <- string(p[:n]) })
	require.True(t, queued)
	select {
	case s := <-got:
		assert.Equal(t, "ab", s)
	case <-time.After(2 * time.Second):
		t.Fatal("read not completed")
	}
}

func TestNewConnRejectsBadFD(t *testing.T) {
	l := startLoop(t)
	_, err := NewConn(l, -1)
	assert.ErrorIs(t, err, xio.ErrInvalidArgument)
}
