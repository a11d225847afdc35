package stream

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/legamerdc/xio/protocol"
)

// Scalar 是可按定长读写的数值类型。
type Scalar interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// ReadValue 读取一个定长数值并按 e 转换为主机值。
func ReadValue[T Scalar](ctx context.Context, r Reader, e protocol.EndianType, timeout time.Duration) (T, bool) {
	var v T
	var buf [8]byte
	b := buf[:binary.Size(v)]
	if !readAll(newDeadline(ctx, timeout), r, b) {
		return v, false
	}
	if _, err := binary.Decode(b, e.ByteOrder(), &v); err != nil {
		return v, false
	}
	return v, true
}

// ReadValueOr 失败时返回 def。
func ReadValueOr[T Scalar](ctx context.Context, r Reader, def T, e protocol.EndianType, timeout time.Duration) T {
	if v, ok := ReadValue[T](ctx, r, e, timeout); ok {
		return v
	}
	return def
}

func WriteValue[T Scalar](ctx context.Context, w Writer, v T, e protocol.EndianType, timeout time.Duration) bool {
	var buf [8]byte
	b, err := binary.Append(buf[:0], e.ByteOrder(), v)
	if err != nil {
		return false
	}
	return writeAll(newDeadline(ctx, timeout), w, b)
}

func ReadUint8(ctx context.Context, r Reader, timeout time.Duration) (uint8, bool) {
	return ReadValue[uint8](ctx, r, protocol.Little, timeout)
}

func ReadUint8Or(ctx context.Context, r Reader, def uint8, timeout time.Duration) uint8 {
	return ReadValueOr(ctx, r, def, protocol.Little, timeout)
}

func WriteUint8(ctx context.Context, w Writer, v uint8, timeout time.Duration) bool {
	return WriteValue(ctx, w, v, protocol.Little, timeout)
}
