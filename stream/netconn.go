package stream

import (
	"errors"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"
)

// minPoll 是 timeout 为 0 时给 net.Conn 的最短截止时间；
// 已过期的截止时间会让 Read 在检查缓冲数据之前直接失败。
const minPoll = time.Millisecond

// NetStream 把 net.Conn 适配为原始读写能力。
// 阻塞发生在 Read/Write 自身的截止时间内，因此 WaitRead/WaitWrite 立即返回。
type NetStream struct {
	conn   net.Conn
	ended  atomic.Bool
	closed atomic.Bool
}

func NewNetStream(c net.Conn) *NetStream { return &NetStream{conn: c} }

func (s *NetStream) Conn() net.Conn { return s.conn }

func ioDeadline(timeout time.Duration) time.Time {
	if timeout < 0 {
		return time.Time{}
	}
	return time.Now().Add(max(timeout, minPoll))
}

func (s *NetStream) result(n int, err error) IoResult {
	if n > 0 {
		return IoResult(n)
	}
	switch {
	case err == nil:
		return WouldBlock
	case errors.Is(err, os.ErrDeadlineExceeded):
		return WouldBlock
	case errors.Is(err, io.EOF):
		s.ended.Store(true)
		return Ended
	}
	return Error
}

func (s *NetStream) Read(p []byte, timeout time.Duration) IoResult {
	if len(p) == 0 {
		return s.probe()
	}
	if err := s.conn.SetReadDeadline(ioDeadline(timeout)); err != nil {
		return Error
	}
	n, err := s.conn.Read(p)
	return s.result(n, err)
}

func (s *NetStream) Write(p []byte, timeout time.Duration) IoResult {
	if len(p) == 0 {
		return s.probe()
	}
	if err := s.conn.SetWriteDeadline(ioDeadline(timeout)); err != nil {
		return Error
	}
	n, err := s.conn.Write(p)
	if n == 0 && errors.Is(err, net.ErrClosed) {
		return Error
	}
	return s.result(n, err)
}

// probe 报告零长度调用的状态：已关闭为 Error，已结束为 Ended。
func (s *NetStream) probe() IoResult {
	if s.closed.Load() {
		return Error
	}
	return Ended
}

func (s *NetStream) WaitRead(time.Duration) bool  { return !s.closed.Load() }
func (s *NetStream) WaitWrite(time.Duration) bool { return !s.closed.Load() }

// IsEnded 报告是否读到了对端结束。
func (s *NetStream) IsEnded() bool { return s.ended.Load() }

func (s *NetStream) Close() error {
	s.closed.Store(true)
	return s.conn.Close()
}
