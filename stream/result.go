package stream

import (
	"context"
	"strconv"
	"time"
)

// IoResult 是原始读写的返回值：>0 为传输字节数，其余为哨兵值。
type IoResult int

const (
	// Ended 表示对端正常结束，不是错误。
	Ended IoResult = 0
	// Error 表示致命错误，不重试。
	Error IoResult = -1
	// WouldBlock 表示暂时不可用，也用于超时。
	WouldBlock IoResult = -2
)

// Infinite 表示不限时。0 表示只做一次非阻塞尝试。
const Infinite time.Duration = -1

func (r IoResult) String() string {
	switch {
	case r > 0:
		return strconv.Itoa(int(r))
	case r == Ended:
		return "ended"
	case r == WouldBlock:
		return "would-block"
	default:
		return "error"
	}
}

// N 返回传输字节数，哨兵值返回 0。
func (r IoResult) N() int {
	if r > 0 {
		return int(r)
	}
	return 0
}

// Status 是完整传输循环的结束原因。
type Status int

const (
	Complete Status = iota
	PartialEnded
	PartialTimeout
	StatusEnded
	StatusTimeout
	Failed
	Cancelled
)

var statusNames = [...]string{"complete", "partial-ended", "partial-timeout", "ended", "timeout", "failed", "cancelled"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}

// Outcome 区分"数据耗尽"和"时间耗尽"，N 始终是实际传输的字节数。
type Outcome struct {
	N      int
	Status Status
}

// Result 折叠为仅含字节数的 IoResult：有进展时返回字节数。
func (o Outcome) Result() IoResult {
	switch o.Status {
	case Complete, PartialEnded, PartialTimeout:
		if o.N > 0 {
			return IoResult(o.N)
		}
		return Ended
	case StatusEnded:
		return Ended
	case StatusTimeout:
		return WouldBlock
	default:
		return Error
	}
}

// OK 报告传输是否完整。
func (o Outcome) OK() bool { return o.Status == Complete }

func finish(n int, r IoResult, stopped bool) Outcome {
	switch {
	case stopped:
		return Outcome{N: n, Status: Cancelled}
	case r == Ended && n > 0:
		return Outcome{N: n, Status: PartialEnded}
	case r == Ended:
		return Outcome{Status: StatusEnded}
	case r == WouldBlock && n > 0:
		return Outcome{N: n, Status: PartialTimeout}
	case r == WouldBlock:
		return Outcome{Status: StatusTimeout}
	default:
		return Outcome{N: n, Status: Failed}
	}
}

// deadline 在多步操作开始时计算一次，每次重试前重新求剩余预算。
type deadline struct {
	ctx       context.Context
	at        time.Time
	unbounded bool
}

func newDeadline(ctx context.Context, timeout time.Duration) deadline {
	d := deadline{ctx: ctx}
	if timeout < 0 {
		d.unbounded = true
	} else {
		d.at = time.Now().Add(timeout)
	}
	if at, ok := ctx.Deadline(); ok && (d.unbounded || at.Before(d.at)) {
		d.at = at
		d.unbounded = false
	}
	return d
}

// remaining 返回剩余预算；不限时返回 Infinite，已过期返回 0。
func (d deadline) remaining() time.Duration {
	if d.unbounded {
		return Infinite
	}
	left := time.Until(d.at)
	if left < 0 {
		return 0
	}
	return left
}

func (d deadline) expired() bool {
	return !d.unbounded && !time.Now().Before(d.at)
}

func (d deadline) stopping() bool { return d.ctx.Err() != nil }
