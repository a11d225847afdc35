//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd

package poller

func newBackend(int) (backend, error) { return nil, ErrPlatformNotSupported }
