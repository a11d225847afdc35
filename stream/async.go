package stream

import (
	"sync"
	"time"

	"github.com/legamerdc/xio/protocol"
)

// AsyncStream 是异步读写协作者。完成时 n 为本次传输的字节数，可少于 len(p)。
// 入队失败返回 ok=false，此时不会回调。
// cancel 撤回尚未开始传输的请求，撤回成功返回 true 且不再回调；
// 已经开始传输或已完成的请求无法撤回。
type AsyncStream interface {
	ReadAsync(p []byte, cb func(n int, ok bool)) (cancel func() bool, ok bool)
	WriteAsync(p []byte, cb func(n int, ok bool)) (cancel func() bool, ok bool)
}

// asyncOp 保证链式操作的最终回调恰好触发一次；超时后到达的完成被忽略。
// 超时时撤回当前挂起的请求，使其不再消费流上的字节。
type asyncOp struct {
	mu     sync.Mutex
	done   bool
	timer  *time.Timer
	seq    uint64
	cancel func() bool
}

func newAsyncOp(timeout time.Duration, onTimeout func()) *asyncOp {
	op := &asyncOp{}
	if timeout >= 0 {
		op.mu.Lock()
		op.timer = time.AfterFunc(timeout, func() { op.expire(onTimeout) })
		op.mu.Unlock()
	}
	return op
}

func (op *asyncOp) finished() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.done
}

// begin 在发出请求前取得序号；同步完成的请求会在返回前发出后续请求
func (op *asyncOp) begin() uint64 {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.seq++
	return op.seq
}

// track 记录序号为 seq 的请求的撤回函数；操作已结束时立即撤回
func (op *asyncOp) track(seq uint64, cancel func() bool) {
	op.mu.Lock()
	if op.done {
		op.mu.Unlock()
		cancel()
		return
	}
	if op.seq == seq {
		op.cancel = cancel
	}
	op.mu.Unlock()
}

func (op *asyncOp) expire(onTimeout func()) {
	op.mu.Lock()
	if op.done {
		op.mu.Unlock()
		return
	}
	op.done = true
	cancel := op.cancel
	op.cancel = nil
	op.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	onTimeout()
}

func (op *asyncOp) finish(f func()) {
	op.mu.Lock()
	if op.done {
		op.mu.Unlock()
		return
	}
	op.done = true
	op.cancel = nil
	t := op.timer
	op.mu.Unlock()
	if t != nil {
		t.Stop()
	}
	f()
}

func readFullyAsync(s AsyncStream, p []byte, op *asyncOp, next func(ok bool)) {
	if op.finished() {
		return
	}
	if len(p) == 0 {
		next(true)
		return
	}
	seq := op.begin()
	cancel, queued := s.ReadAsync(p, func(n int, ok bool) {
		if !ok || n <= 0 {
			next(false)
			return
		}
		readFullyAsync(s, p[min(n, len(p)):], op, next)
	})
	if !queued {
		next(false)
		return
	}
	op.track(seq, cancel)
}

func writeFullyAsync(s AsyncStream, p []byte, op *asyncOp, next func(ok bool)) {
	if op.finished() {
		return
	}
	if len(p) == 0 {
		next(true)
		return
	}
	seq := op.begin()
	cancel, queued := s.WriteAsync(p, func(n int, ok bool) {
		if !ok {
			next(false)
			return
		}
		writeFullyAsync(s, p[min(n, len(p)):], op, next)
	})
	if !queued {
		next(false)
		return
	}
	op.track(seq, cancel)
}

// ReadChunkAsync 以链式完成读取一个 chunk，分帧规则与 ReadChunk 相同。
// timeout 为整个操作的预算；cb 恰好调用一次。
func ReadChunkAsync(s AsyncStream, maxSize uint32, timeout time.Duration, cb func(payload []byte, ok bool)) {
	fail := func() { cb(nil, false) }
	op := newAsyncOp(timeout, fail)
	hdr := make([]byte, protocol.ChunkHeaderSize)
	readFullyAsync(s, hdr, op, func(ok bool) {
		if !ok {
			op.finish(fail)
			return
		}
		n, err := protocol.ChunkLength(hdr)
		if err != nil || n > maxSize {
			op.finish(fail)
			return
		}
		payload := make([]byte, n)
		readFullyAsync(s, payload, op, func(ok bool) {
			if !ok {
				op.finish(fail)
				return
			}
			op.finish(func() { cb(payload, true) })
		})
	})
}

// WriteChunkAsync 写出长度前缀与负载；cb 恰好调用一次。
func WriteChunkAsync(s AsyncStream, payload []byte, timeout time.Duration, cb func(ok bool)) {
	fail := func() { cb(false) }
	op := newAsyncOp(timeout, fail)
	frame, err := protocol.AppendChunk(make([]byte, 0, protocol.ChunkHeaderSize+len(payload)), payload)
	if err != nil {
		op.finish(fail)
		return
	}
	writeFullyAsync(s, frame, op, func(ok bool) {
		if !ok {
			op.finish(fail)
			return
		}
		op.finish(func() { cb(true) })
	})
}
