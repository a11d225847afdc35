//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package server

import (
	"golang.org/x/sys/unix"

	"github.com/legamerdc/xio/internal/netutil"
)

// 无 accept4：接受后再设置非阻塞与 close-on-exec
func accept(lfd int) (int, error) {
	fd, _, err := unix.Accept(lfd)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	if err := netutil.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}
