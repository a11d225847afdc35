//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package server

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/legamerdc/xio"
	"github.com/legamerdc/xio/internal/netutil"
	"github.com/legamerdc/xio/poller"
)

// Server 在一个 Loop 上接受连接并以分帧模式服务
type Server struct {
	loop *xio.Loop
	cfg  Config
	h    Handler
	log  zerolog.Logger
	lfd  int
	inst *poller.Instance
	// 所有连接共用的读缓冲，只在 loop goroutine 中使用
	scratch []byte

	conns   sync.Map // uint64 -> *Conn
	nextID  atomic.Uint64
	stopped atomic.Bool
	done    chan struct{}
}

// Start 打开监听 fd 并注册到 loop；loop 可以在此前或此后启动
func Start(loop *xio.Loop, cfg Config, h Handler) (*Server, error) {
	if loop == nil || h == nil {
		return nil, xio.ErrInvalidArgument
	}
	lfd, err := openListener(cfg)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", cfg.ListenAddress, err)
	}
	s := &Server{
		loop:    loop,
		cfg:     cfg,
		h:       h,
		lfd:     lfd,
		scratch: make([]byte, 64<<10),
		done:    make(chan struct{}),
	}
	s.log = loop.Logger().With().Str("component", "server").Logger()
	s.inst = poller.NewInstance(lfd, (*listenerEvents)(s))
	if !loop.Attach(s.inst, poller.ModeIn) {
		unix.Close(lfd)
		return nil, ErrAttach
	}
	s.log.Debug().Stringer("addr", s.Addr()).Msg("listening")
	return s, nil
}

// Addr 返回实际监听地址，端口 0 时可据此取得分配的端口
func (s *Server) Addr() net.Addr {
	sa, err := unix.Getsockname(s.lfd)
	if err != nil {
		return nil
	}
	if a := netutil.SockaddrToTCPAddr(sa); a != nil {
		return a
	}
	return nil
}

// Len 返回当前连接数
func (s *Server) Len() int {
	n := 0
	s.conns.Range(func(any, any) bool { n++; return true })
	return n
}

// Stop 关闭监听与全部连接
func (s *Server) Stop() error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	s.loop.CloseInstance(s.inst)
	s.conns.Range(func(_, v any) bool {
		_ = v.(*Conn).Close()
		return true
	})
	return nil
}

// Done 在监听 fd 关闭后关闭
func (s *Server) Done() <-chan struct{} { return s.done }

func (s *Server) open(fd int) {
	if s.cfg.NoDelay {
		_ = netutil.SetNoDelay(fd, true)
	}
	c := newFramed(s, fd, s.nextID.Add(1))
	if !s.loop.Attach(c.inst, poller.ModeInOut) {
		unix.Close(fd)
		s.log.Debug().Int("fd", fd).Msg("attach conn failed")
		return
	}
	s.conns.Store(c.ID, c)
	c.log.Debug().Stringer("remote", c.RemoteAddr()).Msg("conn open")
	c.deliver(func() { s.h.OnOpen(c) })
}

// listenerEvents 是监听 fd 的 reactor 回调
type listenerEvents Server

func (l *listenerEvents) OnEvent(_ *poller.Instance, f poller.Flags) {
	s := (*Server)(l)
	if f.In && !s.stopped.Load() {
		s.acceptAll()
	}
}

func (l *listenerEvents) OnClose(*poller.Instance) {
	s := (*Server)(l)
	if err := unix.Close(s.lfd); err != nil {
		s.log.Debug().Err(err).Msg("close listener")
	}
	close(s.done)
}
