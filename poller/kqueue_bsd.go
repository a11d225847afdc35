//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package poller

import (
	"sync"

	"golang.org/x/sys/unix"
)

// kqueue 的 udata 在各 BSD 上类型不一致，这里按 ident 维护 fd 到 token 的映射。
type kqueueBackend struct {
	kq     int
	mu     sync.Mutex
	tokens map[int]token
	events []unix.Kevent_t
}

func newBackend(maxEvents int) (backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueueBackend{
		kq:     kq,
		tokens: make(map[int]token),
		events: make([]unix.Kevent_t, maxEvents),
	}, nil
}

func kevents(fd int, mode Mode, flags int) []unix.Kevent_t {
	changes := make([]unix.Kevent_t, 0, 2)
	if mode&ModeIn != 0 {
		var k unix.Kevent_t
		unix.SetKevent(&k, fd, unix.EVFILT_READ, flags)
		changes = append(changes, k)
	}
	if mode&ModeOut != 0 {
		var k unix.Kevent_t
		unix.SetKevent(&k, fd, unix.EVFILT_WRITE, flags)
		changes = append(changes, k)
	}
	return changes
}

func (p *kqueueBackend) add(fd int, mode Mode, tok token) error {
	p.mu.Lock()
	p.tokens[fd] = tok
	p.mu.Unlock()
	if _, err := unix.Kevent(p.kq, kevents(fd, mode, unix.EV_ADD|unix.EV_CLEAR), nil, nil); err != nil {
		p.mu.Lock()
		delete(p.tokens, fd)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *kqueueBackend) del(fd int, mode Mode) error {
	p.mu.Lock()
	delete(p.tokens, fd)
	p.mu.Unlock()
	_, err := unix.Kevent(p.kq, kevents(fd, mode, unix.EV_DELETE), nil, nil)
	return err
}

func (p *kqueueBackend) wait(cfg *Config) (int, error) {
	ts := unix.NsecToTimespec(cfg.WaitTimeout.Nanoseconds())
	n, err := unix.Kevent(p.kq, nil, p.events, &ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// 未知 ident 返回越界 token，arena 查找时被忽略。
var unknownToken = token{index: ^uint32(0)}

func (p *kqueueBackend) event(i int) (token, Flags) {
	ev := &p.events[i]
	p.mu.Lock()
	tok, ok := p.tokens[int(ev.Ident)]
	p.mu.Unlock()
	if !ok {
		return unknownToken, Flags{}
	}
	var f Flags
	switch ev.Filter {
	case unix.EVFILT_READ:
		f.In = true
	case unix.EVFILT_WRITE:
		f.Out = true
	}
	if ev.Flags&unix.EV_ERROR != 0 || (ev.Flags&unix.EV_EOF != 0 && ev.Fflags != 0) {
		f.Error = true
	}
	return tok, f
}

func (p *kqueueBackend) close() error {
	return unix.Close(p.kq)
}
