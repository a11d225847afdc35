//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package poller

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// PipeEvent 是自管道布尔信号。两端均为非阻塞，Set 不会卡住发信号的 goroutine。
// 锁只保护标志与一次读写，不跨越阻塞等待。
type PipeEvent struct {
	mu     sync.Mutex
	rfd    int
	wfd    int
	set    bool
	closed bool
}

func NewPipeEvent() (*PipeEvent, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, err
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, err
		}
	}
	return &PipeEvent{rfd: p[0], wfd: p[1]}, nil
}

// Fd 返回读端，用于注册到多路复用器。
func (e *PipeEvent) Fd() int { return e.rfd }

// Set 仅在未置位时写入一个字节，重复调用被合并。
func (e *PipeEvent) Set() {
	e.mu.Lock()
	if !e.set && !e.closed {
		e.set = true
		var b = [1]byte{1}
		for {
			_, err := unix.Write(e.wfd, b[:])
			if err != unix.EINTR {
				break
			}
		}
	}
	e.mu.Unlock()
}

// Reset 循环读空管道后清除标志，容忍竞争写入的多余字节。
func (e *PipeEvent) Reset() {
	e.mu.Lock()
	if !e.closed {
		var buf [64]byte
		for {
			n, err := unix.Read(e.rfd, buf[:])
			if err == unix.EINTR {
				continue
			}
			if err != nil || n < len(buf) {
				break
			}
		}
	}
	e.set = false
	e.mu.Unlock()
}

func (e *PipeEvent) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// Wait 阻塞到管道可读或超时，不清除状态，调用方随后自行 Reset。
func (e *PipeEvent) Wait(timeout time.Duration) bool {
	fds := []unix.PollFd{{Fd: int32(e.rfd), Events: unix.POLLIN}}
	return pollFDs(fds, timeout) > 0
}

// WaitReadFD 等待 fd 可读，或被 Set 唤醒。
func (e *PipeEvent) WaitReadFD(fd int, timeout time.Duration) bool {
	return e.waitFD(fd, unix.POLLIN, timeout)
}

// WaitWriteFD 等待 fd 可写，或被 Set 唤醒。
func (e *PipeEvent) WaitWriteFD(fd int, timeout time.Duration) bool {
	return e.waitFD(fd, unix.POLLOUT, timeout)
}

func (e *PipeEvent) waitFD(fd int, events int16, timeout time.Duration) bool {
	fds := []unix.PollFd{
		{Fd: int32(fd), Events: events},
		{Fd: int32(e.rfd), Events: unix.POLLIN},
	}
	return pollFDs(fds, timeout) > 0
}

func (e *PipeEvent) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	err := unix.Close(e.rfd)
	if werr := unix.Close(e.wfd); err == nil {
		err = werr
	}
	return err
}

// pollFDs 在 EINTR 后按剩余预算重试，返回就绪数，出错返回 -1。
func pollFDs(fds []unix.PollFd, timeout time.Duration) int {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		ms := -1
		switch {
		case timeout == 0:
			ms = 0
		case timeout > 0:
			left := time.Until(deadline)
			if left < 0 {
				left = 0
			}
			ms = int((left + time.Millisecond - 1) / time.Millisecond)
		}
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return -1
		}
		return n
	}
}
