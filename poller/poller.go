package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrPlatformNotSupported = errors.New("poller: platform not supported")
	ErrClosed               = errors.New("poller: closed")
)

// Mode 是实例订阅的就绪方向。
type Mode uint8

const (
	ModeIn Mode = 1 << iota
	ModeOut
	ModeInOut = ModeIn | ModeOut
)

func (m Mode) String() string {
	switch m {
	case ModeIn:
		return "in"
	case ModeOut:
		return "out"
	case ModeInOut:
		return "inout"
	}
	return "none"
}

// Flags 是一批就绪事件合并后交付给实例的标志。
type Flags struct {
	In    bool
	Out   bool
	Error bool
}

func (f Flags) any() bool { return f.In || f.Out || f.Error }

// Handler 在 reactor goroutine 中调用，要求无阻塞返回。
// 同一实例在一批事件中只回调一次。
type Handler interface {
	OnEvent(inst *Instance, f Flags)
}

// Orderer 由需要在循环步开始时处理排队请求的实例实现。
type Orderer interface {
	OnOrder(inst *Instance)
}

// Closer 在实例被摘除后于 reactor goroutine 中回调。
type Closer interface {
	OnClose(inst *Instance)
}

// Hooks 包围每一次内核等待：StepBegin 在等待前，StepEnd 在分发后。
type Hooks interface {
	StepBegin()
	StepEnd()
}

// Instance 绑定一个原始句柄与其处理者。句柄归属于流，不归属于 reactor。
type Instance struct {
	fd      int
	handler Handler
	mode    Mode
	tok     token
	closing atomic.Bool
	ordered atomic.Bool
}

func NewInstance(fd int, h Handler) *Instance {
	return &Instance{fd: fd, handler: h}
}

func (i *Instance) FD() int          { return i.fd }
func (i *Instance) Handler() Handler { return i.handler }
func (i *Instance) Mode() Mode       { return i.mode }
func (i *Instance) IsClosing() bool  { return i.closing.Load() }
func (i *Instance) IsAttached() bool { return i.tok.index != 0 }

// MarkClosing 首次调用返回 true。
func (i *Instance) MarkClosing() bool { return i.closing.CompareAndSwap(false, true) }

// MarkOrdered 合并重复的排队请求，首次调用返回 true。
func (i *Instance) MarkOrdered() bool { return i.ordered.CompareAndSwap(false, true) }

func (i *Instance) ClearOrdered() { i.ordered.Store(false) }

// Reactor 统一 epoll 与 kqueue 的实例模型。
// Attach/Detach/Wake 可在任意 goroutine 调用；Run 独占一个 goroutine。
type Reactor interface {
	ID() string
	Attach(inst *Instance, mode Mode) bool
	Detach(inst *Instance)
	Wake()
	Run(ctx context.Context, hooks Hooks) error
	Stop()
	IsRunning() bool
	Close() error
}

// Config 为 reactor 参数。
type Config struct {
	MaxEvents int
	// WaitTimeout 限制单次内核等待，保证无 I/O 时也能周期性维护。
	WaitTimeout time.Duration
	Logger      zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		MaxEvents:   1024,
		WaitTimeout: 5 * time.Second,
		Logger:      zerolog.Nop(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxEvents <= 0 {
		c.MaxEvents = d.MaxEvents
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = d.WaitTimeout
	}
	return c
}
