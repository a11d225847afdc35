//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package server

import (
	"net"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/legamerdc/xio/internal/netutil"
)

func sockaddr(network, address string) (int, unix.Sockaddr, error) {
	addr, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		return 0, nil, err
	}
	ip4 := addr.IP.To4()
	// tcp 未指定 IP 时按 IPv4 监听
	if strings.HasSuffix(network, "6") || (addr.IP != nil && ip4 == nil) {
		sa := &unix.SockaddrInet6{Port: addr.Port}
		copy(sa.Addr[:], addr.IP.To16())
		return unix.AF_INET6, sa, nil
	}
	sa := &unix.SockaddrInet4{Port: addr.Port}
	if ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	return unix.AF_INET, sa, nil
}

// openListener 返回非阻塞监听 fd
func openListener(cfg Config) (int, error) {
	network := cfg.ListenNetwork
	if network == "" {
		network = "tcp"
	}
	fam, sa, err := sockaddr(network, cfg.ListenAddress)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(fam, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	_ = netutil.SetReuseAddr(fd, true)
	if cfg.ReusePort {
		if err := netutil.SetReusePort(fd, true); err != nil {
			unix.Close(fd)
			return -1, err
		}
	}
	if err := netutil.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}
	backlog := cfg.Backlog
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}
