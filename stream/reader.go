package stream

import (
	"context"
	"time"
)

type rawIO func(p []byte, timeout time.Duration) IoResult

// transfer 是读满与写满共用的重试循环。
// 有进展的 Ended/WouldBlock 返回已传输字节数，不丢弃部分结果。
// wait 拒绝等待后只再尝试一次原始调用，仍然 WouldBlock 时按超时结束。
func transfer(d deadline, p []byte, io rawIO, wait func(time.Duration) bool) Outcome {
	n := 0
	refused := false
	for {
		if d.stopping() {
			return finish(n, Error, true)
		}
		m := io(p[n:], d.remaining())
		switch {
		case m > 0:
			n += int(m)
			if n >= len(p) {
				return Outcome{N: n, Status: Complete}
			}
		case m == WouldBlock:
			left := d.remaining()
			if left == 0 || refused {
				return finish(n, WouldBlock, false)
			}
			refused = !wait(left)
		default:
			return finish(n, m, false)
		}
	}
}

// zeroLength 对空缓冲只做一次原始调用，用于探测关闭或错误状态。
func zeroLength(io rawIO, p []byte) Outcome {
	switch m := io(p[:0], 0); {
	case m == Error:
		return Outcome{Status: Failed}
	case m == WouldBlock:
		return Outcome{Status: StatusTimeout}
	default:
		return Outcome{Status: Complete}
	}
}

// ReadFullyOutcome 读满 p，返回区分结束原因的结果。
func ReadFullyOutcome(ctx context.Context, r Reader, p []byte, timeout time.Duration) Outcome {
	if len(p) == 0 {
		return zeroLength(r.Read, p)
	}
	return transfer(newDeadline(ctx, timeout), p, r.Read, r.WaitRead)
}

// ReadFully 读满 p。返回值：读满时为 len(p)；有进展但提前结束或超时时为已读字节数；
// 否则为哨兵值。ctx 被取消时返回 Error。
func ReadFully(ctx context.Context, r Reader, p []byte, timeout time.Duration) IoResult {
	if len(p) == 0 {
		return r.Read(p, 0)
	}
	return ReadFullyOutcome(ctx, r, p, timeout).Result()
}

// ReadFullySegments 读取 size 字节到若干 segSize 大小的段中，共享一个截止时间。
// 遇到终止哨兵时返回已读到的段。
func ReadFullySegments(ctx context.Context, r Reader, size, segSize int, timeout time.Duration) ([][]byte, IoResult) {
	if segSize <= 0 {
		segSize = DefaultSegmentSize
	}
	if size <= 0 {
		return nil, r.Read(nil, 0)
	}
	d := newDeadline(ctx, timeout)
	segs := make([][]byte, 0, (size+segSize-1)/segSize)
	total := 0
	for total < size {
		seg := make([]byte, min(segSize, size-total))
		o := transfer(d, seg, r.Read, r.WaitRead)
		if o.N > 0 {
			segs = append(segs, seg[:o.N])
			total += o.N
		}
		if !o.OK() {
			if o.Status == Failed || o.Status == Cancelled {
				return segs, Error
			}
			if total > 0 {
				return segs, IoResult(total)
			}
			return segs, o.Result()
		}
	}
	return segs, IoResult(total)
}

// ReadBytes 读取 size 字节；提前结束时返回已读前缀。
func ReadBytes(ctx context.Context, r Reader, size int, timeout time.Duration) ([]byte, bool) {
	if size <= 0 {
		return []byte{}, r.Read(nil, 0) != Error
	}
	p := make([]byte, size)
	o := transfer(newDeadline(ctx, timeout), p, r.Read, r.WaitRead)
	if o.N == 0 {
		return nil, false
	}
	return p[:o.N], true
}

// ReadAll 以 1024 字节步长读到对端结束。
func ReadAll(ctx context.Context, r Reader, timeout time.Duration) ([]byte, bool) {
	d := newDeadline(ctx, timeout)
	var out []byte
	var buf [DefaultSegmentSize]byte
	refused := false
	for {
		if d.stopping() {
			return nil, false
		}
		m := r.Read(buf[:], d.remaining())
		switch {
		case m > 0:
			out = append(out, buf[:m]...)
		case m == Ended:
			if out == nil {
				out = []byte{}
			}
			return out, true
		case m == WouldBlock:
			left := d.remaining()
			if left == 0 || refused {
				return nil, false
			}
			refused = !r.WaitRead(left)
		default:
			return nil, false
		}
	}
}

// ReadFullyAt 从 offset 起读满 p。
func ReadFullyAt(ctx context.Context, r ReaderAt, offset uint64, p []byte, timeout time.Duration) IoResult {
	at := func(b []byte, t time.Duration) IoResult {
		return r.ReadAt(offset+uint64(len(p)-len(b)), b, t)
	}
	if len(p) == 0 {
		return r.ReadAt(offset, p, 0)
	}
	return transfer(newDeadline(ctx, timeout), p, at, r.WaitRead).Result()
}
