package poller

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// backend 是平台多路复用器，在构建时按操作系统选择。
type backend interface {
	add(fd int, mode Mode, tok token) error
	del(fd int, mode Mode) error
	// wait 返回就绪条目数；被信号中断时返回 0, nil。
	wait(cfg *Config) (int, error)
	event(i int) (token, Flags)
	close() error
}

type delivery struct {
	inst  *Instance
	flags Flags
}

type reactor struct {
	id      string
	cfg     Config
	log     zerolog.Logger
	be      backend
	wake    *PipeEvent
	arena   *arena
	running atomic.Bool
	closed  atomic.Bool

	// 仅 reactor goroutine 使用
	batch []delivery
	index map[*Instance]int
}

// New 创建 reactor：分配多路复用器、唤醒管道，并以唤醒 token 注册管道读端。
// 任一步骤失败都会回滚已分配的资源。
func New(cfg Config) (Reactor, error) {
	cfg = cfg.withDefaults()
	be, err := newBackend(cfg.MaxEvents)
	if err != nil {
		return nil, fmt.Errorf("poller: create backend: %w", err)
	}
	ev, err := NewPipeEvent()
	if err != nil {
		be.close()
		return nil, fmt.Errorf("poller: create wake pipe: %w", err)
	}
	if err := be.add(ev.Fd(), ModeIn, wakeToken); err != nil {
		ev.Close()
		be.close()
		return nil, fmt.Errorf("poller: register wake pipe: %w", err)
	}
	id := uuid.NewString()
	return &reactor{
		id:    id,
		cfg:   cfg,
		log:   cfg.Logger.With().Str("reactor", id).Logger(),
		be:    be,
		wake:  ev,
		arena: newArena(),
		index: make(map[*Instance]int),
	}, nil
}

func (r *reactor) ID() string { return r.id }

func (r *reactor) Attach(inst *Instance, mode Mode) bool {
	if r.closed.Load() {
		return false
	}
	tok := r.arena.alloc(inst)
	inst.mode = mode
	inst.tok = tok
	if err := r.be.add(inst.fd, mode, tok); err != nil {
		r.arena.release(tok)
		inst.tok = token{}
		r.log.Debug().Err(err).Int("fd", inst.fd).Stringer("mode", mode).Msg("attach failed")
		return false
	}
	return true
}

func (r *reactor) Detach(inst *Instance) {
	tok := inst.tok
	if tok.index == 0 {
		return
	}
	inst.closing.Store(true)
	if err := r.be.del(inst.fd, inst.mode); err != nil {
		r.log.Debug().Err(err).Int("fd", inst.fd).Msg("detach")
	}
	r.arena.retire(tok)
	inst.tok = token{}
}

func (r *reactor) Wake() { r.wake.Set() }

func (r *reactor) Stop() {
	r.running.Store(false)
	r.Wake()
}

func (r *reactor) IsRunning() bool { return r.running.Load() }

func (r *reactor) Run(ctx context.Context, hooks Hooks) error {
	if r.closed.Load() {
		return ErrClosed
	}
	r.running.Store(true)
	defer r.running.Store(false)
	stop := context.AfterFunc(ctx, r.Stop)
	defer stop()

	r.log.Debug().Msg("reactor running")
	for r.running.Load() {
		r.arena.drain()
		if hooks != nil {
			hooks.StepBegin()
		}
		n, err := r.be.wait(&r.cfg)
		if err != nil {
			r.log.Error().Err(err).Msg("wait")
			return err
		}
		r.dispatch(n)
		if hooks != nil {
			hooks.StepEnd()
		}
	}
	r.log.Debug().Msg("reactor stopped")
	return nil
}

func (r *reactor) dispatch(n int) {
	for i := 0; i < n; i++ {
		tok, f := r.be.event(i)
		if tok == wakeToken {
			r.wake.Reset()
			continue
		}
		inst := r.arena.lookup(tok)
		if inst == nil || inst.closing.Load() || !f.any() {
			continue
		}
		// kqueue 按过滤器分别上报，同一实例在一批内合并
		if k, ok := r.index[inst]; ok {
			d := &r.batch[k]
			d.flags.In = d.flags.In || f.In
			d.flags.Out = d.flags.Out || f.Out
			d.flags.Error = d.flags.Error || f.Error
			continue
		}
		r.index[inst] = len(r.batch)
		r.batch = append(r.batch, delivery{inst: inst, flags: f})
	}
	for i := range r.batch {
		d := r.batch[i]
		if !d.inst.closing.Load() {
			d.inst.handler.OnEvent(d.inst, d.flags)
		}
		r.batch[i] = delivery{}
	}
	r.batch = r.batch[:0]
	clear(r.index)
}

// Close 释放内核资源，须在 Run 返回后调用。
func (r *reactor) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.running.Store(false)
	werr := r.wake.Close()
	if err := r.be.close(); err != nil {
		return err
	}
	return werr
}
