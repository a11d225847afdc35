package stream

import (
	"context"
	"time"

	"github.com/legamerdc/xio/protocol"
)

// ReadCVLI 逐字节读取直到延续位清零，上限为 protocol.DefaultCVLIMaxLength。
func ReadCVLI(ctx context.Context, r Reader, e protocol.EndianType, timeout time.Duration) (uint64, bool) {
	return ReadCVLIBounded(ctx, r, e, protocol.DefaultCVLIMaxLength, timeout)
}

// ReadCVLIBounded 同 ReadCVLI；maxLen <= 0 表示不限长度。
// 终止字节之前任一字节读取失败都视为失败。
func ReadCVLIBounded(ctx context.Context, r Reader, e protocol.EndianType, maxLen int, timeout time.Duration) (uint64, bool) {
	d := newDeadline(ctx, timeout)
	acc := protocol.CVLIAccumulator{Endian: e}
	var b [1]byte
	for {
		if maxLen > 0 && acc.Len() >= maxLen {
			return 0, false
		}
		if !readAll(d, r, b[:]) {
			return 0, false
		}
		if acc.Add(b[0]) {
			return acc.Value(), true
		}
	}
}

func ReadCVLIOr(ctx context.Context, r Reader, def uint64, e protocol.EndianType, timeout time.Duration) uint64 {
	if v, ok := ReadCVLI(ctx, r, e, timeout); ok {
		return v
	}
	return def
}

func WriteCVLI(ctx context.Context, w Writer, v uint64, e protocol.EndianType, timeout time.Duration) bool {
	var buf [protocol.DefaultCVLIMaxLength]byte
	return writeAll(newDeadline(ctx, timeout), w, protocol.AppendCVLI(buf[:0], v, e))
}
