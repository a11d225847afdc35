//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package server

import (
	"errors"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/legamerdc/xio/internal/ring"
	"github.com/legamerdc/xio/poller"
	"github.com/legamerdc/xio/protocol"
)

// connEvents 是 Conn 面向 reactor 的一面，回调都在 loop goroutine 中执行
type connEvents Conn

var errStopParse = errors.New("server: stop parse")

func (e *connEvents) conn() *Conn { return (*Conn)(e) }

func (e *connEvents) OnEvent(_ *poller.Instance, f poller.Flags) {
	c := e.conn()
	if c.framed() {
		if f.In || f.Error {
			e.onReadable()
		}
		if f.Out && !c.closed.Load() {
			e.onWritable()
		}
		return
	}
	if f.In || f.Error {
		c.rsig.Notify()
	}
	if f.Out || f.Error {
		c.wsig.Notify()
	}
	e.service()
}

func (e *connEvents) OnOrder(*poller.Instance) {
	if e.conn().framed() {
		e.onWritable()
		return
	}
	e.service()
}

// OnClose 在摘除之后执行，此时才关闭 fd
func (e *connEvents) OnClose(*poller.Instance) {
	c := e.conn()
	c.closed.Store(true)
	if err := unix.Close(c.fd); err != nil {
		c.log.Debug().Err(err).Msg("close fd")
	}
	e.failAll()
	if c.framed() {
		c.srv.conns.Delete(c.ID)
		c.deliver(func() { c.srv.h.OnClose(c, c.closeErr) })
	}
	c.log.Debug().AnErr("cause", c.closeErr).Msg("conn closed")
}

// service 处理排队的异步读写请求
func (e *connEvents) service() {
	c := e.conn()
	for {
		r, n, err := e.readHead()
		if r == nil {
			break
		}
		switch {
		case len(r.p) == 0:
			c.deliver(func() { r.cb(0, true) })
		case n > 0:
			c.deliver(func() { r.cb(n, true) })
		default:
			if err == nil {
				c.ended.Store(true)
			} else {
				c.failed.Store(true)
			}
			c.deliver(func() { r.cb(0, false) })
		}
	}
	for {
		w, err := e.writeHead()
		if w == nil {
			break
		}
		if err != nil {
			c.failed.Store(true)
			c.deliver(func() { w.cb(w.off, false) })
			continue
		}
		c.deliver(func() { w.cb(w.off, true) })
	}
}

// readHead 在锁内对队首请求做一次读并出队；没有请求或尚不可读时返回 nil
func (e *connEvents) readHead() (*asyncReq, int, error) {
	c := e.conn()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reads.Length() == 0 {
		return nil, 0, nil
	}
	r := c.reads.Peek().(*asyncReq)
	var n int
	var err error
	if len(r.p) > 0 {
		n, err = unix.Read(c.fd, r.p)
		if n <= 0 && (err == unix.EAGAIN || err == unix.EINTR) {
			return nil, 0, nil
		}
	}
	c.reads.Remove()
	return r, n, err
}

// writeHead 在锁内尽量写完队首请求；写完或失败时出队返回
func (e *connEvents) writeHead() (*asyncReq, error) {
	c := e.conn()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writes.Length() == 0 {
		return nil, nil
	}
	w := c.writes.Peek().(*asyncReq)
	for w.off < len(w.p) {
		n, err := unix.Write(c.fd, w.p[w.off:])
		if n > 0 {
			w.off += n
			continue
		}
		if err == unix.EAGAIN || err == unix.EINTR {
			return nil, nil
		}
		if err == nil {
			err = unix.EPIPE
		}
		c.writes.Remove()
		return w, err
	}
	c.writes.Remove()
	return w, nil
}

// failAll 以失败完成全部未决请求
func (e *connEvents) failAll() {
	c := e.conn()
	c.mu.Lock()
	var pending []*asyncReq
	for _, q := range [...]*queue.Queue{c.reads, c.writes} {
		for q.Length() > 0 {
			pending = append(pending, q.Remove().(*asyncReq))
		}
	}
	c.mu.Unlock()
	for _, r := range pending {
		r.cb(r.off, false)
	}
}

// onReadable 读空 socket 到接收环，再切分出完整 chunk
func (e *connEvents) onReadable() {
	c := e.conn()
	buf := c.srv.scratch
	for !c.closed.Load() {
		n, err := unix.Read(c.fd, buf)
		if n > 0 {
			if n > c.rx.Free() {
				c.rx.Grow(c.rx.Len() + n)
			}
			_, _ = c.rx.Write(buf[:n])
			e.parse()
			continue
		}
		switch {
		case err == unix.EAGAIN:
			return
		case err == unix.EINTR:
			continue
		case err == nil:
			c.closeWith(nil)
		default:
			c.closeWith(err)
		}
		return
	}
}

func (e *connEvents) parse() {
	c := e.conn()
	buf := c.rx.Peek(c.rx.Len())
	consumed, err := c.parser.Parse(buf, func(payload []byte) error {
		if c.closed.Load() {
			return errStopParse
		}
		c.deliver(func() { c.srv.h.OnChunk(c, payload) })
		return nil
	})
	c.rx.Discard(consumed)
	if err != nil && !errors.Is(err, errStopParse) {
		c.log.Debug().Err(err).Msg("parse")
		c.closeWith(err)
	}
}

func (e *connEvents) onWritable() {
	c := e.conn()
	if c.closed.Load() {
		return
	}
	if _, err := c.tx.flush(c.fd); err != nil {
		c.closeWith(err)
	}
}

// newFramed 构造分帧模式连接
func newFramed(s *Server, fd int, id uint64) *Conn {
	c := newConn(s.loop, fd, id)
	c.srv = s
	c.rx = ring.New(max(s.cfg.RxRingSize, protocol.ChunkHeaderSize))
	c.parser = protocol.NewParser(s.cfg.MaxChunkSize)
	c.tx = newTxQueue()
	return c
}
