package stream

import (
	"context"
	"math"

	"github.com/legamerdc/xio/protocol"
)

const (
	lineWindow   = 512
	stringWindow = 128
	findWindow   = 1024
)

// ReadLine 读取一行，终止符为 \r、\n 或 \r\n，返回值不含终止符。
// 读过头的字节通过 Seek 回退，流位置恰好停在终止符之后。
// 仅当到达结尾且一个字节都没读到时返回 false。
func ReadLine(ctx context.Context, r SeekableReader) (string, bool) {
	return readRecord(ctx, r, lineWindow, func(b []byte, i int) (int, bool) {
		switch b[i] {
		case '\n':
			return i + 1, true
		case '\r':
			if i+1 < len(b) {
				if b[i+1] == '\n' {
					return i + 2, true
				}
				return i + 1, true
			}
			// \r 落在窗口末尾，向前看一个字节
			if c, ok := ReadUint8(ctx, r, Infinite); ok && c != '\n' {
				r.Seek(-1, SeekCurrent)
			}
			return i + 1, true
		}
		return 0, false
	})
}

// ReadNullTerminatedString 读取到单个 0 字节为止。
func ReadNullTerminatedString(ctx context.Context, r SeekableReader) (string, bool) {
	return readRecord(ctx, r, stringWindow, func(b []byte, i int) (int, bool) {
		if b[i] == 0 {
			return i + 1, true
		}
		return 0, false
	})
}

// readRecord 按窗口读取并逐字节检查终止符；end 返回终止符之后在窗口内的位置。
func readRecord(ctx context.Context, r SeekableReader, window int, end func(b []byte, i int) (int, bool)) (string, bool) {
	var sb []byte
	buf := make([]byte, window)
	got := false
	for {
		m := r.Read(buf, Infinite)
		switch {
		case m > 0:
			got = true
			b := buf[:m]
			for i := range b {
				used, ok := end(b, i)
				if !ok {
					continue
				}
				if used < len(b) {
					r.Seek(int64(used-len(b)), SeekCurrent)
				}
				return string(append(sb, b[:i]...)), true
			}
			sb = append(sb, b...)
		case m == WouldBlock:
			if !r.WaitRead(Infinite) {
				return "", false
			}
		case m == Ended:
			if !got {
				return "", false
			}
			return string(sb), true
		default:
			return "", false
		}
		if ctx.Err() != nil {
			return "", false
		}
	}
}

func sizeToRead(r Seeker, maxSize int) int {
	size := r.Size()
	if size > math.MaxInt {
		size = math.MaxInt
	}
	if maxSize > 0 && size > uint64(maxSize) {
		size = uint64(maxSize)
	}
	return int(size)
}

// ReadAllBytes 定位到开头读取整个流，maxSize <= 0 表示不限制。
func ReadAllBytes(ctx context.Context, r SeekableReader, maxSize int) ([]byte, bool) {
	size := sizeToRead(r, maxSize)
	if size == 0 || !r.Seek(0, SeekBegin) {
		return nil, false
	}
	return ReadBytes(ctx, r, size, Infinite)
}

func ReadAllTextUTF8(ctx context.Context, r SeekableReader, maxSize int) (string, bool) {
	size := sizeToRead(r, maxSize)
	if size == 0 || !r.Seek(0, SeekBegin) {
		return "", false
	}
	return ReadTextUTF8(ctx, r, size, Infinite)
}

func ReadAllTextUTF16(ctx context.Context, r SeekableReader, e protocol.EndianType, maxSize int) (string, bool) {
	size := sizeToRead(r, maxSize)
	if size == 0 || !r.Seek(0, SeekBegin) {
		return "", false
	}
	return ReadTextUTF16(ctx, r, size, e, Infinite)
}

func ReadAllText(ctx context.Context, r SeekableReader, maxSize int) (string, Charset, bool) {
	size := sizeToRead(r, maxSize)
	if size == 0 || !r.Seek(0, SeekBegin) {
		return "", CharsetUTF8, false
	}
	return ReadText(ctx, r, size, Infinite)
}

// Find 从 start 开始向后查找 pattern，最多扫描 limit 字节，返回匹配起点的绝对偏移或 -1。
// start < 0 表示从头开始，limit < 0 表示不限制。
// 缓冲区之间携带已匹配的模式前缀长度，跨界匹配无需回读。
func Find(ctx context.Context, r SeekableReader, pattern []byte, start, limit int64) int64 {
	size := r.Size()
	if size == 0 || limit == 0 {
		return -1
	}
	var pos uint64
	if start >= 0 {
		pos = uint64(start)
		if pos >= size {
			return -1
		}
	}
	if len(pattern) == 0 {
		return int64(pos)
	}
	span := size - pos
	if limit > 0 && uint64(limit) < span {
		span = uint64(limit)
	}
	if !r.Seek(int64(pos), SeekBegin) {
		return -1
	}
	d := newDeadline(ctx, Infinite)
	var buf [findWindow]byte
	carry := 0
	for end := pos + span; pos < end; {
		n := int(min(end-pos, uint64(len(buf))))
		o := transfer(d, buf[:n], r.Read, r.WaitRead)
		if o.N <= 0 || o.Status == Failed || o.Status == Cancelled {
			return -1
		}
		at := func(j int) byte { return buf[j] }
		i, next := scan(pattern, o.N, carry, at, func(k int) byte { return pattern[k] })
		if i != noMatch {
			return int64(pos) + int64(i)
		}
		carry = next
		pos += uint64(o.N)
	}
	return -1
}

// FindBackward 从 start 向前查找，返回匹配起点的绝对偏移或 -1。
// start < 0 或越界表示从结尾开始。
func FindBackward(ctx context.Context, r SeekableReader, pattern []byte, start, limit int64) int64 {
	size := r.Size()
	if size == 0 || limit == 0 {
		return -1
	}
	pos := size
	if start >= 0 && uint64(start) < size {
		pos = uint64(start)
	}
	if len(pattern) == 0 {
		return int64(pos)
	}
	span := pos
	if limit > 0 && uint64(limit) < span {
		span = uint64(limit)
	}
	d := newDeadline(ctx, Infinite)
	np := len(pattern)
	var buf [findWindow]byte
	carry := 0
	for end := pos - span; end < pos; {
		n := int(min(pos-end, uint64(len(buf))))
		if !r.Seek(int64(pos)-int64(n), SeekBegin) {
			return -1
		}
		if o := transfer(d, buf[:n], r.Read, r.WaitRead); o.N != n {
			return -1
		}
		// 反向索引：从缓冲尾部向前比较模式的倒序
		at := func(j int) byte { return buf[n-1-j] }
		i, next := scan(pattern, n, carry, at, func(k int) byte { return pattern[np-1-k] })
		if i != noMatch {
			return int64(pos) - int64(i) - int64(np)
		}
		carry = next
		pos -= uint64(n)
	}
	return -1
}

const noMatch = math.MinInt

// scan 在长度为 n 的窗口中查找 pat，at(j) 取窗口第 j 个字节，p(k) 取模式第 k 个字节。
// carry 为上一窗口尾部已匹配的模式字节数，这些字节以模式自身代替，索引为负。
// 返回匹配起点（可能为负）与传给下一窗口的 carry。
func scan(pattern []byte, n, carry int, at func(int) byte, p func(int) byte) (int, int) {
	np := len(pattern)
	resume := carry != 0
	i := -carry
	for ; i < n; i++ {
		k := 0
		if resume {
			k = carry
			resume = false
		}
		for ; k < np; k++ {
			j := i + k
			if j >= n {
				break
			}
			var c byte
			if j >= 0 {
				c = at(j)
			} else {
				c = p(carry + j)
			}
			if c != p(k) {
				break
			}
		}
		if k == np {
			return i, 0
		}
		if i+k == n {
			return noMatch, k
		}
	}
	return noMatch, 0
}
