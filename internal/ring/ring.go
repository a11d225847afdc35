package ring

import (
	"errors"
)

var ErrTooLarge = errors.New("ring: write too large")

// Buffer 是单生产者单消费者环形字节缓冲，由调用方保证串行访问。
// 连接的接收路径在 reactor goroutine 中使用它。
type Buffer struct {
	buf      []byte
	mask     int
	readPos  int
	writePos int
}

func roundPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// New 返回容量向上取整为 2 的幂的环形缓冲。
func New(capacity int) *Buffer {
	c := roundPow2(capacity)
	return &Buffer{buf: make([]byte, c), mask: c - 1}
}

func (b *Buffer) Cap() int { return len(b.buf) }

func (b *Buffer) Len() int { return b.writePos - b.readPos }

func (b *Buffer) Free() int { return b.Cap() - b.Len() }

// Write 写入全部数据；超出剩余空间时返回 ErrTooLarge 且不写入。
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > b.Free() {
		return 0, ErrTooLarge
	}
	n := len(p)
	start := b.writePos & b.mask
	if end := start + n; end <= len(b.buf) {
		copy(b.buf[start:end], p)
	} else {
		l := copy(b.buf[start:], p)
		copy(b.buf, p[l:])
	}
	b.writePos += n
	return n, nil
}

// Peek 返回最多 n 字节且不前进读指针；跨越环尾时返回拷贝。
func (b *Buffer) Peek(n int) []byte {
	n = min(n, b.Len())
	if n <= 0 {
		return nil
	}
	start := b.readPos & b.mask
	if end := start + n; end <= len(b.buf) {
		return b.buf[start:end]
	}
	out := make([]byte, n)
	l := copy(out, b.buf[start:])
	copy(out[l:], b.buf)
	return out
}

// Discard 前进读指针，返回实际丢弃的字节数。
func (b *Buffer) Discard(n int) int {
	n = min(n, b.Len())
	b.readPos += n
	if b.readPos == b.writePos {
		b.readPos, b.writePos = 0, 0
	}
	return n
}

// Grow 把容量扩大到至少 capacity，保留未读数据。
func (b *Buffer) Grow(capacity int) {
	if capacity <= b.Cap() {
		return
	}
	c := roundPow2(capacity)
	n := b.Len()
	buf := make([]byte, c)
	copy(buf, b.Peek(n))
	b.buf, b.mask = buf, c-1
	b.readPos, b.writePos = 0, n
}

func (b *Buffer) Reset() { b.readPos, b.writePos = 0, 0 }
