//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package server

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/legamerdc/xio"
	"github.com/legamerdc/xio/internal/netutil"
	"github.com/legamerdc/xio/internal/ring"
	"github.com/legamerdc/xio/poller"
	"github.com/legamerdc/xio/protocol"
	"github.com/legamerdc/xio/stream"
)

var (
	ErrConnClosed = errors.New("server: connection closed")
	ErrAttach     = errors.New("server: attach to reactor failed")
)

var (
	_ stream.ReadWriter  = (*Conn)(nil)
	_ stream.AsyncStream = (*Conn)(nil)
)

// Conn 是挂在 reactor 上的非阻塞 socket。
//
// 两种用法：
//   - 流模式（NewConn）：实现 stream.ReadWriter，重试辅助函数在 WaitRead/WaitWrite 中
//     停靠，直到 reactor 交付就绪；同时实现 stream.AsyncStream。
//   - 分帧模式（Server 接受的连接）：loop 读入接收环并切分 chunk 交给 Handler，
//     WriteChunk 入队后在 Out 就绪时写出。此模式下原始 Read/Write 返回 stream.Error。
type Conn struct {
	ID   uint64
	fd   int
	loop *xio.Loop
	inst *poller.Instance
	log  zerolog.Logger

	rsig, wsig *poller.Signal
	ended      atomic.Bool
	failed     atomic.Bool
	closed     atomic.Bool
	// 为 true 时当前处于本连接在 loop goroutine 上的回调中，停靠会死锁
	delivering atomic.Bool

	mu     sync.Mutex
	reads  *queue.Queue // *asyncReq
	writes *queue.Queue // *asyncReq

	// 分帧模式
	srv      *Server
	rx       *ring.Buffer
	parser   *protocol.Parser
	tx       *txQueue
	closeErr error
}

type asyncReq struct {
	p   []byte
	off int
	cb  func(n int, ok bool)
}

func newConn(loop *xio.Loop, fd int, id uint64) *Conn {
	c := &Conn{
		ID:     id,
		fd:     fd,
		loop:   loop,
		log:    loop.Logger().With().Int("fd", fd).Uint64("conn", id).Logger(),
		rsig:   poller.NewSignal(),
		wsig:   poller.NewSignal(),
		reads:  queue.New(),
		writes: queue.New(),
	}
	c.inst = poller.NewInstance(fd, (*connEvents)(c))
	return c
}

var streamIDs atomic.Uint64

// NewConn 接管已连接的 socket fd 并以 InOut 注册到 loop。fd 此后归 Conn 所有。
func NewConn(loop *xio.Loop, fd int) (*Conn, error) {
	if fd < 0 {
		return nil, xio.ErrInvalidArgument
	}
	if err := netutil.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	c := newConn(loop, fd, streamIDs.Add(1))
	if !loop.Attach(c.inst, poller.ModeInOut) {
		return nil, ErrAttach
	}
	return c, nil
}

func (c *Conn) Fd() int { return c.fd }

func (c *Conn) IsClosed() bool { return c.closed.Load() }

// IsEnded 报告是否读到了对端结束
func (c *Conn) IsEnded() bool { return c.ended.Load() }

func (c *Conn) RemoteAddr() net.Addr {
	sa, err := unix.Getpeername(c.fd)
	if err != nil {
		return nil
	}
	if a := netutil.SockaddrToTCPAddr(sa); a != nil {
		return a
	}
	return nil
}

func (c *Conn) framed() bool { return c.srv != nil }

// usable 报告原始读写是否可用；零长度调用据此返回 Ended 或 Error
func (c *Conn) usable() bool {
	return !c.closed.Load() && !c.failed.Load() && !c.framed()
}

func (c *Conn) result(n int, err error, read bool) stream.IoResult {
	switch {
	case n > 0:
		return stream.IoResult(n)
	case err == unix.EAGAIN || err == unix.EINTR:
		return stream.WouldBlock
	case err == nil && read:
		c.ended.Store(true)
		return stream.Ended
	case err == nil:
		return stream.WouldBlock
	}
	c.failed.Store(true)
	c.log.Debug().Err(err).Bool("read", read).Msg("io failed")
	return stream.Error
}

// Read 做一次非阻塞读，timeout 由调用方的 WaitRead 消化
func (c *Conn) Read(p []byte, _ time.Duration) stream.IoResult {
	if !c.usable() {
		return stream.Error
	}
	if len(p) == 0 {
		return stream.Ended
	}
	n, err := unix.Read(c.fd, p)
	return c.result(n, err, true)
}

func (c *Conn) Write(p []byte, _ time.Duration) stream.IoResult {
	if !c.usable() {
		return stream.Error
	}
	if len(p) == 0 {
		return stream.Ended
	}
	n, err := unix.Write(c.fd, p)
	return c.result(n, err, false)
}

// WaitRead 停靠到 reactor 交付可读或超时。在本连接的回调中调用时立即返回 false。
func (c *Conn) WaitRead(timeout time.Duration) bool {
	return c.park(c.rsig, timeout)
}

func (c *Conn) WaitWrite(timeout time.Duration) bool {
	return c.park(c.wsig, timeout)
}

func (c *Conn) park(sig *poller.Signal, timeout time.Duration) bool {
	if !c.usable() || c.delivering.Load() {
		return false
	}
	return sig.Wait(timeout) && !c.closed.Load()
}

// ReadAsync 排队一个读请求，在 loop goroutine 中以本次可读到的字节数完成
func (c *Conn) ReadAsync(p []byte, cb func(n int, ok bool)) (func() bool, bool) {
	return c.enqueue(c.reads, p, cb)
}

// WriteAsync 排队一个写请求，全部写出后完成。已写出部分字节的请求不能撤回。
func (c *Conn) WriteAsync(p []byte, cb func(n int, ok bool)) (func() bool, bool) {
	return c.enqueue(c.writes, p, cb)
}

func (c *Conn) enqueue(q *queue.Queue, p []byte, cb func(int, bool)) (func() bool, bool) {
	if !c.usable() || cb == nil {
		return nil, false
	}
	r := &asyncReq{p: p, cb: cb}
	c.mu.Lock()
	q.Add(r)
	c.mu.Unlock()
	c.loop.RequestOrder(c.inst)
	return func() bool { return c.withdraw(q, r) }, true
}

// withdraw 从队列中移除尚未开始传输的 r。
// loop 在持有 c.mu 时完成读写与出队，因此撤回与传输互斥。
func (c *Conn) withdraw(q *queue.Queue, r *asyncReq) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	found := false
	for range q.Length() {
		v := q.Remove().(*asyncReq)
		if v == r && v.off == 0 {
			found = true
			continue
		}
		q.Add(v)
	}
	return found
}

// WriteChunk 为负载加上长度前缀后入队，由 loop 写出
func (c *Conn) WriteChunk(payload []byte) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	if !c.framed() {
		return xio.ErrInvalidArgument
	}
	frame, err := protocol.AppendChunk(make([]byte, 0, protocol.ChunkHeaderSize+len(payload)), payload)
	if err != nil {
		return err
	}
	c.tx.push(frame)
	c.loop.RequestOrder(c.inst)
	return nil
}

// Pending 返回分帧模式下尚未写出的字节数
func (c *Conn) Pending() int {
	if c.tx == nil {
		return 0
	}
	return c.tx.Pending()
}

// Close 请求关闭：唤醒停靠的调用方，本轮分发结束后摘除，随后关闭 fd
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.rsig.Notify()
	c.wsig.Notify()
	c.loop.CloseInstance(c.inst)
	return nil
}

func (c *Conn) closeWith(err error) {
	if c.closeErr == nil {
		c.closeErr = err
	}
	_ = c.Close()
}

// deliver 在标记回调区间内执行 fn
func (c *Conn) deliver(fn func()) {
	c.delivering.Store(true)
	defer c.delivering.Store(false)
	fn()
}
