//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package server

import (
	"github.com/legamerdc/xio"
)

// Handler 为分帧连接的回调，均在 loop goroutine 中执行，要求无阻塞返回。
// OnChunk 的 payload 引用接收缓冲，回调返回后不得继续持有。
type Handler interface {
	OnOpen(c *Conn)
	OnChunk(c *Conn, payload []byte)
	OnClose(c *Conn, err error)
}

type Config struct {
	ListenNetwork string
	ListenAddress string
	ReusePort     bool
	Backlog       int
	NoDelay       bool
	MaxChunkSize  uint32 // 0 表示不限制
	RxRingSize    int
}

// NewConfig 从公共配置映射服务端参数
func NewConfig(c xio.Config) Config {
	return Config{
		ListenNetwork: c.Listen.Network,
		ListenAddress: c.Listen.Address,
		ReusePort:     c.Listen.ReusePort,
		Backlog:       1024,
		NoDelay:       true,
		MaxChunkSize:  c.MaxChunkSize,
		RxRingSize:    c.RxRingSize,
	}
}
