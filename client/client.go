package client

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/proto"

	"github.com/legamerdc/xio/internal/netutil"
	"github.com/legamerdc/xio/stream"
)

type Handler interface {
	OnChunk(c *Client, payload []byte)
	OnClose(c *Client, err error)
}

type Options struct {
	DialTimeout  time.Duration
	NoDelay      bool
	RecvBuf      int // 0 表示使用系统默认
	SendBuf      int
	MaxChunkSize uint32
	Logger       zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		DialTimeout:  5 * time.Second,
		NoDelay:      true,
		MaxChunkSize: 16 << 20,
		Logger:       zerolog.Nop(),
	}
}

// Client 是基于 net.Conn 的阻塞式 chunk 客户端，写入串行化，读取由调用方或 Serve 负责
type Client struct {
	conn net.Conn
	s    *stream.NetStream
	opts Options
	log  zerolog.Logger
	mu   sync.Mutex
}

func Dial(ctx context.Context, network, address string, opts Options) (*Client, error) {
	d := net.Dialer{Timeout: opts.DialTimeout}
	nc, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	err = netutil.Control(nc, func(fd int) error {
		if opts.NoDelay {
			if err := netutil.SetNoDelay(fd, true); err != nil {
				return err
			}
		}
		if opts.RecvBuf > 0 {
			if err := netutil.SetRecvBuf(fd, opts.RecvBuf); err != nil {
				return err
			}
		}
		if opts.SendBuf > 0 {
			return netutil.SetSendBuf(fd, opts.SendBuf)
		}
		return nil
	})
	if err != nil {
		nc.Close()
		return nil, err
	}
	return &Client{
		conn: nc,
		s:    stream.NewNetStream(nc),
		opts: opts,
		log:  opts.Logger.With().Stringer("remote", nc.RemoteAddr()).Logger(),
	}, nil
}

// Stream 返回底层原始读写能力，可直接用于 stream 包的辅助函数
func (c *Client) Stream() *stream.NetStream { return c.s }

func (c *Client) WriteChunk(ctx context.Context, payload []byte, timeout time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return stream.WriteChunk(ctx, c.s, payload, timeout)
}

func (c *Client) WriteMessage(ctx context.Context, msg proto.Message, timeout time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return stream.WriteMessage(ctx, c.s, msg, timeout)
}

func (c *Client) ReadChunk(ctx context.Context, timeout time.Duration) ([]byte, bool) {
	return stream.ReadChunk(ctx, c.s, c.maxSize(), timeout)
}

func (c *Client) ReadMessage(ctx context.Context, msg proto.Message, timeout time.Duration) bool {
	return stream.ReadMessage(ctx, c.s, c.maxSize(), msg, timeout)
}

func (c *Client) maxSize() uint32 {
	if c.opts.MaxChunkSize == 0 {
		return ^uint32(0)
	}
	return c.opts.MaxChunkSize
}

// Serve 循环读取 chunk 交给 h，直到连接结束或 ctx 取消；ctx 取消时关闭连接
func (c *Client) Serve(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()
	for {
		p, ok := stream.ReadChunk(ctx, c.s, c.maxSize(), stream.Infinite)
		if !ok {
			break
		}
		h.OnChunk(c, p)
	}
	err := ctx.Err()
	if err == nil && !c.s.IsEnded() {
		err = net.ErrClosed
	}
	c.log.Debug().AnErr("cause", err).Msg("serve done")
	h.OnClose(c, err)
	return err
}

func (c *Client) Close() error { return c.s.Close() }
