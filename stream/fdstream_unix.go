//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package stream

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/legamerdc/xio/internal/netutil"
	"github.com/legamerdc/xio/poller"
)

// FDStream 是非阻塞 fd 上的原始读写能力，等待时挂在 PipeEvent 上，
// Interrupt 可以唤醒挂起的调用方。
type FDStream struct {
	fd     int
	ev     *poller.PipeEvent
	closed atomic.Bool
}

// NewFDStream 接管 fd 并设为非阻塞。
func NewFDStream(fd int) (*FDStream, error) {
	if err := netutil.SetNonblock(fd, true); err != nil {
		return nil, err
	}
	ev, err := poller.NewPipeEvent()
	if err != nil {
		return nil, err
	}
	return &FDStream{fd: fd, ev: ev}, nil
}

// OpenFile 以 O_CLOEXEC 打开文件。
func OpenFile(path string, flag int, perm uint32) (*FDStream, error) {
	fd, err := unix.Open(path, flag|unix.O_CLOEXEC, perm)
	if err != nil {
		return nil, err
	}
	s, err := NewFDStream(fd)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return s, nil
}

// Pipe 返回一对非阻塞管道流。
func Pipe() (r, w *FDStream, err error) {
	var p [2]int
	if err = unix.Pipe(p[:]); err != nil {
		return nil, nil, err
	}
	unix.CloseOnExec(p[0])
	unix.CloseOnExec(p[1])
	if r, err = NewFDStream(p[0]); err != nil {
		unix.Close(p[0])
		unix.Close(p[1])
		return nil, nil, err
	}
	if w, err = NewFDStream(p[1]); err != nil {
		r.Close()
		unix.Close(p[1])
		return nil, nil, err
	}
	return r, w, nil
}

func (s *FDStream) Fd() int { return s.fd }

// ioResult 映射系统调用结果：EAGAIN 为 WouldBlock，读到 0 或 EPIPE 为 Ended。
func ioResult(n int, err error) IoResult {
	switch {
	case n > 0:
		return IoResult(n)
	case err == unix.EAGAIN || err == unix.EINTR:
		return WouldBlock
	case err == unix.EPIPE:
		return Ended
	case err != nil:
		return Error
	}
	return Ended
}

func (s *FDStream) Read(p []byte, _ time.Duration) IoResult {
	if s.closed.Load() {
		return Error
	}
	n, err := unix.Read(s.fd, p)
	return ioResult(n, err)
}

func (s *FDStream) Write(p []byte, _ time.Duration) IoResult {
	if s.closed.Load() {
		return Error
	}
	n, err := unix.Write(s.fd, p)
	if n == 0 && err == nil && len(p) > 0 {
		return WouldBlock
	}
	return ioResult(n, err)
}

func (s *FDStream) ReadAt(offset uint64, p []byte, _ time.Duration) IoResult {
	if s.closed.Load() {
		return Error
	}
	n, err := unix.Pread(s.fd, p, int64(offset))
	return ioResult(n, err)
}

func (s *FDStream) WriteAt(offset uint64, p []byte, _ time.Duration) IoResult {
	if s.closed.Load() {
		return Error
	}
	n, err := unix.Pwrite(s.fd, p, int64(offset))
	return ioResult(n, err)
}

// WaitRead 等待 fd 可读或被 Interrupt 唤醒；唤醒后清除中断标志。
func (s *FDStream) WaitRead(timeout time.Duration) bool {
	if s.closed.Load() {
		return false
	}
	ok := s.ev.WaitReadFD(s.fd, timeout)
	if s.ev.IsSet() {
		s.ev.Reset()
	}
	return ok
}

func (s *FDStream) WaitWrite(timeout time.Duration) bool {
	if s.closed.Load() {
		return false
	}
	ok := s.ev.WaitWriteFD(s.fd, timeout)
	if s.ev.IsSet() {
		s.ev.Reset()
	}
	return ok
}

// Interrupt 唤醒挂起在 WaitRead/WaitWrite 中的调用方。
func (s *FDStream) Interrupt() { s.ev.Set() }

func (s *FDStream) Size() uint64 {
	var st unix.Stat_t
	if err := unix.Fstat(s.fd, &st); err != nil || st.Size < 0 {
		return 0
	}
	return uint64(st.Size)
}

func (s *FDStream) Seek(offset int64, whence SeekPosition) bool {
	w := unix.SEEK_SET
	switch whence {
	case SeekCurrent:
		w = unix.SEEK_CUR
	case SeekEnd:
		w = unix.SEEK_END
	}
	_, err := unix.Seek(s.fd, offset, w)
	return err == nil
}

// Close 唤醒挂起的调用方后关闭 fd。
func (s *FDStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.ev.Set()
	err := unix.Close(s.fd)
	s.ev.Close()
	return err
}
