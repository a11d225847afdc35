package protocol

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// EndianType 表示线上字节序，零值为小端。
type EndianType int

const (
	Little EndianType = iota
	Big
)

var hostEndian = func() EndianType {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], 1)
	if b[0] == 1 {
		return Little
	}
	return Big
}()

// HostEndian 返回本机字节序。
func HostEndian() EndianType { return hostEndian }

func (e EndianType) String() string {
	if e == Big {
		return "big"
	}
	return "little"
}

// ByteOrder 返回对应的 binary.ByteOrder。
func (e EndianType) ByteOrder() binary.ByteOrder {
	if e == Big {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func Swap16(v uint16) uint16 { return bits.ReverseBytes16(v) }
func Swap32(v uint32) uint32 { return bits.ReverseBytes32(v) }
func Swap64(v uint64) uint64 { return bits.ReverseBytes64(v) }

func SwapFloat32(v float32) float32 {
	return math.Float32frombits(bits.ReverseBytes32(math.Float32bits(v)))
}

func SwapFloat64(v float64) float64 {
	return math.Float64frombits(bits.ReverseBytes64(math.Float64bits(v)))
}

// ToHost16 把按内存顺序读出的值解释为 e 字节序，返回主机值。
func ToHost16(v uint16, e EndianType) uint16 {
	if e == hostEndian {
		return v
	}
	return Swap16(v)
}

func ToHost32(v uint32, e EndianType) uint32 {
	if e == hostEndian {
		return v
	}
	return Swap32(v)
}

func ToHost64(v uint64, e EndianType) uint64 {
	if e == hostEndian {
		return v
	}
	return Swap64(v)
}
