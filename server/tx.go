//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package server

import (
	"sync"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"
)

// txQueue 是连接的发送队列：任意 goroutine 入队，loop goroutine 在 Out 就绪时冲刷。
type txQueue struct {
	mu      sync.Mutex
	frames  *queue.Queue // []byte
	off     int          // 队首帧已写出的字节数
	pending int
}

func newTxQueue() *txQueue { return &txQueue{frames: queue.New()} }

func (t *txQueue) push(frame []byte) {
	t.mu.Lock()
	t.frames.Add(frame)
	t.pending += len(frame)
	t.mu.Unlock()
}

// Pending 返回尚未写出的字节数
func (t *txQueue) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// flush 写到 EAGAIN 或队列清空，返回是否清空
func (t *txQueue) flush(fd int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.frames.Length() > 0 {
		b := t.frames.Peek().([]byte)
		n, err := unix.Write(fd, b[t.off:])
		if n > 0 {
			t.off += n
			t.pending -= n
			if t.off == len(b) {
				t.frames.Remove()
				t.off = 0
			}
			continue
		}
		switch err {
		case unix.EAGAIN:
			return false, nil
		case unix.EINTR:
			continue
		case nil:
			return false, unix.EPIPE
		}
		return false, err
	}
	return true, nil
}
