package xio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"

	"github.com/legamerdc/xio/poller"
)

// Loop 把一个 reactor 绑定到专属 goroutine。
// 每轮内核等待前执行排队任务与排序请求，分发之后处理关闭请求。
type Loop struct {
	cfg Config
	log zerolog.Logger
	r   poller.Reactor

	mu      sync.Mutex
	tasks   *queue.Queue // func()
	orders  *queue.Queue // *poller.Instance
	closing *queue.Queue // *poller.Instance

	started atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// NewLoop 创建未启动的 Loop
func NewLoop(cfg Config, log zerolog.Logger) (*Loop, error) {
	r, err := poller.New(cfg.PollerConfig(log))
	if err != nil {
		return nil, err
	}
	return &Loop{
		cfg:     cfg,
		log:     log.With().Str("reactor", r.ID()).Logger(),
		r:       r,
		tasks:   queue.New(),
		orders:  queue.New(),
		closing: queue.New(),
		done:    make(chan struct{}),
	}, nil
}

func (l *Loop) Config() Config { return l.cfg }

func (l *Loop) Logger() zerolog.Logger { return l.log }

func (l *Loop) Reactor() poller.Reactor { return l.r }

// Start 在专属 goroutine 中运行 reactor
func (l *Loop) Start() error {
	if l.closed.Load() {
		return ErrLoopClosed
	}
	if !l.started.CompareAndSwap(false, true) {
		return ErrLoopStarted
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	go func() {
		defer close(l.done)
		if err := l.r.Run(ctx, l); err != nil {
			l.log.Error().Err(err).Msg("loop exited")
			l.err = err
		}
	}()
	return nil
}

func (l *Loop) IsRunning() bool { return l.r.IsRunning() }

// Stop 请求 reactor 退出并等待其 goroutine 返回，ctx 到期时放弃等待
func (l *Loop) Stop(ctx context.Context) error {
	if !l.started.Load() {
		return nil
	}
	l.cancel()
	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 停止 Loop，处理剩余关闭请求后释放 reactor
func (l *Loop) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := l.Stop(context.Background()); err != nil {
		l.log.Debug().Err(err).Msg("stop")
	}
	l.StepEnd()
	return l.r.Close()
}

// AddTask 把 fn 放到 loop goroutine 中执行，Loop 关闭后返回 false
func (l *Loop) AddTask(fn func()) bool {
	if fn == nil || l.closed.Load() {
		return false
	}
	l.push(l.tasks, fn)
	return true
}

// Dispatch 在 delay 之后把 fn 投递到 loop goroutine
func (l *Loop) Dispatch(fn func(), delay time.Duration) {
	if delay <= 0 {
		l.AddTask(fn)
		return
	}
	time.AfterFunc(delay, func() { l.AddTask(fn) })
}

// RequestOrder 请求在下一轮开始时回调 inst 的 OnOrder，未处理前的重复请求合并
func (l *Loop) RequestOrder(inst *poller.Instance) {
	if inst.IsClosing() || !inst.MarkOrdered() {
		return
	}
	l.push(l.orders, inst)
}

// Attach 以 mode 把 inst 注册到 reactor
func (l *Loop) Attach(inst *poller.Instance, mode poller.Mode) bool {
	if l.closed.Load() {
		return false
	}
	return l.r.Attach(inst, mode)
}

// CloseInstance 标记 inst 为关闭中；本轮分发结束后摘除并回调 OnClose。
// 关闭中的实例不再收到事件。重复调用无效果。
func (l *Loop) CloseInstance(inst *poller.Instance) {
	if !inst.MarkClosing() {
		return
	}
	// reactor 未运行时没有下一轮，直接在调用方完成
	if !l.r.IsRunning() || l.closed.Load() {
		l.finishClose(inst)
		return
	}
	l.push(l.closing, inst)
}

func (l *Loop) push(q *queue.Queue, v any) {
	l.mu.Lock()
	q.Add(v)
	l.mu.Unlock()
	l.r.Wake()
}

// take 在锁内取出队列当前全部元素，回调在锁外执行
func (l *Loop) take(q *queue.Queue) []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := q.Length()
	if n == 0 {
		return nil
	}
	out := make([]any, n)
	for i := range out {
		out[i] = q.Remove()
	}
	return out
}

// StepBegin 实现 poller.Hooks
func (l *Loop) StepBegin() {
	for _, v := range l.take(l.tasks) {
		v.(func())()
	}
	for _, v := range l.take(l.orders) {
		inst := v.(*poller.Instance)
		inst.ClearOrdered()
		if inst.IsClosing() {
			continue
		}
		if o, ok := inst.Handler().(poller.Orderer); ok {
			o.OnOrder(inst)
		}
	}
}

// StepEnd 实现 poller.Hooks
func (l *Loop) StepEnd() {
	for _, v := range l.take(l.closing) {
		l.finishClose(v.(*poller.Instance))
	}
}

func (l *Loop) finishClose(inst *poller.Instance) {
	l.r.Detach(inst)
	if c, ok := inst.Handler().(poller.Closer); ok {
		c.OnClose(inst)
	}
}
