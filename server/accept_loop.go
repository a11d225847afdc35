//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package server

import (
	"errors"

	"golang.org/x/sys/unix"
)

// acceptAll 在监听 fd 可读时接受连接直到 EAGAIN（边缘触发必须读空）
func (s *Server) acceptAll() {
	for {
		fd, err := accept(s.lfd)
		if err != nil {
			switch {
			case errors.Is(err, unix.EAGAIN):
				return
			case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
				continue
			}
			// EMFILE 等：留待下一次就绪
			s.log.Debug().Err(err).Msg("accept")
			return
		}
		s.open(fd)
	}
}
