package protocol

import "errors"

// CVLI：每字节低 7 位为数据，0x80 为延续位。
// Little 先写最低 7 位组；Big 先写最高 7 位组。

// DefaultCVLIMaxLength 是 uint64 编码的最大字节数。
const DefaultCVLIMaxLength = 10

var (
	ErrCVLIIncomplete = errors.New("protocol: cvli incomplete")
	ErrCVLITooLong    = errors.New("protocol: cvli too long")
)

// CVLISize 返回 v 的编码长度。
func CVLISize(v uint64) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

// AppendCVLI 将 v 以 e 字节序编码追加到 dst。
func AppendCVLI(dst []byte, v uint64, e EndianType) []byte {
	n := CVLISize(v)
	if e == Big {
		for i := n - 1; i >= 0; i-- {
			b := byte(v>>(7*uint(i))) & 0x7F
			if i != 0 {
				b |= 0x80
			}
			dst = append(dst, b)
		}
		return dst
	}
	for i := 0; i < n; i++ {
		b := byte(v) & 0x7F
		v >>= 7
		if i != n-1 {
			b |= 0x80
		}
		dst = append(dst, b)
	}
	return dst
}

// DecodeCVLI 从 b 解码一个值，返回值与消费字节数。
// maxLen <= 0 不限制长度，超出 64 位的高位被丢弃。
func DecodeCVLI(b []byte, e EndianType, maxLen int) (uint64, int, error) {
	var acc CVLIAccumulator
	acc.Endian = e
	for i, c := range b {
		if maxLen > 0 && i >= maxLen {
			return 0, 0, ErrCVLITooLong
		}
		if acc.Add(c) {
			return acc.Value(), i + 1, nil
		}
	}
	return 0, 0, ErrCVLIIncomplete
}

// CVLIAccumulator 逐字节累积 CVLI，供流式读取使用。
type CVLIAccumulator struct {
	Endian EndianType
	value  uint64
	shift  uint
	n      int
}

// Add 吸收一个字节，遇到终止字节时返回 true。
func (a *CVLIAccumulator) Add(c byte) bool {
	if a.Endian == Big {
		a.value = a.value<<7 | uint64(c&0x7F)
	} else {
		if a.shift < 64 {
			a.value |= uint64(c&0x7F) << a.shift
		}
		a.shift += 7
	}
	a.n++
	return c&0x80 == 0
}

func (a *CVLIAccumulator) Value() uint64 { return a.value }

// Len 返回已吸收的字节数。
func (a *CVLIAccumulator) Len() int { return a.n }
