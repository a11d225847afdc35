package stream

import (
	"context"
	"time"
)

// WriteFullyOutcome 写满 p，返回区分结束原因的结果。
func WriteFullyOutcome(ctx context.Context, w Writer, p []byte, timeout time.Duration) Outcome {
	if len(p) == 0 {
		return zeroLength(w.Write, p)
	}
	return transfer(newDeadline(ctx, timeout), p, w.Write, w.WaitWrite)
}

// WriteFully 与 ReadFully 对称。
func WriteFully(ctx context.Context, w Writer, p []byte, timeout time.Duration) IoResult {
	if len(p) == 0 {
		return w.Write(p, 0)
	}
	return WriteFullyOutcome(ctx, w, p, timeout).Result()
}

// WriteFullyAt 从 offset 起写满 p。
func WriteFullyAt(ctx context.Context, w WriterAt, offset uint64, p []byte, timeout time.Duration) IoResult {
	if len(p) == 0 {
		return w.WriteAt(offset, p, 0)
	}
	at := func(b []byte, t time.Duration) IoResult {
		return w.WriteAt(offset+uint64(len(p)-len(b)), b, t)
	}
	return transfer(newDeadline(ctx, timeout), p, at, w.WaitWrite).Result()
}

func writeAll(d deadline, w Writer, p []byte) bool {
	if len(p) == 0 {
		return true
	}
	return transfer(d, p, w.Write, w.WaitWrite).OK()
}

func readAll(d deadline, r Reader, p []byte) bool {
	if len(p) == 0 {
		return true
	}
	return transfer(d, p, r.Read, r.WaitRead).OK()
}
