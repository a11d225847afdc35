//go:build linux

package poller

import (
	"golang.org/x/sys/unix"
)

// epoll 的 user data 是 64 位联合体：Fd 存槽位下标，Pad 存代数。
type epollBackend struct {
	efd    int
	events []unix.EpollEvent
}

func newBackend(maxEvents int) (backend, error) {
	efd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollBackend{efd: efd, events: make([]unix.EpollEvent, maxEvents)}, nil
}

func epollFlags(mode Mode) uint32 {
	var flag uint32 = unix.EPOLLET
	if mode&ModeIn != 0 {
		flag |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if mode&ModeOut != 0 {
		flag |= unix.EPOLLOUT
	}
	return flag
}

func (p *epollBackend) add(fd int, mode Mode, tok token) error {
	ev := &unix.EpollEvent{Events: epollFlags(mode), Fd: int32(tok.index), Pad: int32(tok.gen)}
	return unix.EpollCtl(p.efd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (p *epollBackend) del(fd int, _ Mode) error {
	return unix.EpollCtl(p.efd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollBackend) wait(cfg *Config) (int, error) {
	n, err := unix.EpollWait(p.efd, p.events, int(cfg.WaitTimeout.Milliseconds()))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (p *epollBackend) event(i int) (token, Flags) {
	ev := &p.events[i]
	tok := token{index: uint32(ev.Fd), gen: uint32(ev.Pad)}
	return tok, Flags{
		In:    ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0,
		Out:   ev.Events&unix.EPOLLOUT != 0,
		Error: ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
	}
}

func (p *epollBackend) close() error {
	return unix.Close(p.efd)
}
